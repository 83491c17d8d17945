package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/cache"
	"github.com/ni30kp/lula-Task/internal/errs"
	"github.com/ni30kp/lula-Task/internal/llm"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/internal/store"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

const similarKeyspace = "similar"

// CandidateSource supplies historical issues to rank. The production
// implementation is the Postgres store.
type CandidateSource interface {
	NearestIssues(ctx context.Context, vec []float32, excludeIssueID, customerID string, sameCustomerOnly bool, limit int) ([]store.Candidate, error)
	RecentCandidates(ctx context.Context, excludeIssueID, customerID string, sameCustomerOnly bool, limit int) ([]store.Candidate, error)
	SetIssueEmbedding(ctx context.Context, issueID string, vec []float32) error
}

// Config tunes the engine.
type Config struct {
	TopK           int
	MinScore       float64
	CandidateLimit int
	CacheTTL       time.Duration
}

// Query describes one similarity search.
type Query struct {
	IssueID          string
	CustomerID       string
	Text             string
	Category         string
	SameCustomerOnly bool
}

// Engine ranks historical issues by closeness to new issue text.
type Engine struct {
	source   CandidateSource
	embedder llm.Embedder
	cache    *cache.Cache
	cfg      Config
	logger   *logger.Logger
}

// New creates a similarity engine. A nil embedder selects the lexical
// path permanently; a nil cache disables result caching.
func New(source CandidateSource, embedder llm.Embedder, c *cache.Cache, cfg Config, log *logger.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 200
	}
	return &Engine{source: source, embedder: embedder, cache: c, cfg: cfg, logger: log}
}

// FindSimilar returns at most TopK candidates with score >= MinScore,
// ranked by score descending with ties broken by recency. The boolean
// reports whether the engine had to fall back to lexical scoring because
// the embedder failed. Store unavailability is returned as an error for
// the orchestrator to absorb.
func (e *Engine) FindSimilar(ctx context.Context, q Query) ([]model.SimilarIssue, bool, error) {
	fp := Fingerprint(q.Text)
	cacheKey := fmt.Sprintf("%s:%s:%t", fp, q.CustomerID, q.SameCustomerOnly)

	if e.cache != nil {
		var cached []model.SimilarIssue
		if e.cache.GetJSON(ctx, similarKeyspace, cacheKey, &cached) {
			return cached, false, nil
		}
	}

	results, degraded, err := e.search(ctx, q)
	if err != nil {
		return nil, degraded, err
	}

	if e.cache != nil && !degraded {
		e.cache.SetJSON(ctx, similarKeyspace, cacheKey, results, e.cfg.CacheTTL)
	}
	return results, degraded, nil
}

func (e *Engine) search(ctx context.Context, q Query) ([]model.SimilarIssue, bool, error) {
	queryTF := termFreqs(Tokenize(q.Text))

	if e.embedder != nil {
		results, err := e.semantic(ctx, q, queryTF)
		if err == nil {
			return results, false, nil
		}
		var unavailable *errs.SubsystemUnavailable
		if errors.As(err, &unavailable) {
			return nil, false, err // store failure, nothing to fall back to
		}
		e.logger.Warn("embedder unavailable, falling back to lexical scoring",
			zap.String("issue_id", q.IssueID), zap.Error(err))
	}

	results, err := e.lexical(ctx, q, queryTF)
	if err != nil {
		return nil, e.embedder != nil, err
	}
	return results, e.embedder != nil, nil
}

func (e *Engine) semantic(ctx context.Context, q Query, queryTF map[string]int) ([]model.SimilarIssue, error) {
	vecs, err := e.embedder.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding: expected 1 vector, got %d", len(vecs))
	}

	// Persist the query embedding so this issue becomes searchable for
	// future analyses. Best effort.
	if err := e.source.SetIssueEmbedding(ctx, q.IssueID, vecs[0]); err != nil {
		e.logger.Warn("failed to store issue embedding", zap.String("issue_id", q.IssueID), zap.Error(err))
	}

	cands, err := e.source.NearestIssues(ctx, vecs[0], q.IssueID, q.CustomerID, q.SameCustomerOnly, e.cfg.CandidateLimit)
	if err != nil {
		return nil, errs.Unavailable("similarity-store", err)
	}
	return e.rank(q, queryTF, cands), nil
}

func (e *Engine) lexical(ctx context.Context, q Query, queryTF map[string]int) ([]model.SimilarIssue, error) {
	cands, err := e.source.RecentCandidates(ctx, q.IssueID, q.CustomerID, q.SameCustomerOnly, e.cfg.CandidateLimit)
	if err != nil {
		return nil, errs.Unavailable("similarity-store", err)
	}
	for i := range cands {
		candTF := termFreqs(Tokenize(cands[i].Title + " " + cands[i].Description))
		cands[i].Score = lexicalCosine(queryTF, candTF)
	}
	return e.rank(q, queryTF, cands), nil
}

// rank filters below-threshold candidates, sorts by score with recency
// tie-breaks, caps at TopK, and attaches deterministic reasons.
func (e *Engine) rank(q Query, queryTF map[string]int, cands []store.Candidate) []model.SimilarIssue {
	kept := cands[:0]
	for _, c := range cands {
		if c.IssueID == q.IssueID {
			continue
		}
		if c.Score >= e.cfg.MinScore {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})
	if len(kept) > e.cfg.TopK {
		kept = kept[:e.cfg.TopK]
	}

	out := make([]model.SimilarIssue, len(kept))
	for i, c := range kept {
		out[i] = model.SimilarIssue{
			IssueID:    c.IssueID,
			Title:      c.Title,
			Score:      model.ClampScore(c.Score),
			Reason:     e.reason(q, queryTF, c),
			Status:     c.Status,
			Resolution: c.Resolution,
			CreatedAt:  c.CreatedAt,
		}
	}
	return out
}

// reason derives a deterministic explanation from the dominant shared
// terms and category match, not from free-form model text.
func (e *Engine) reason(q Query, queryTF map[string]int, c store.Candidate) string {
	candTF := termFreqs(Tokenize(c.Title + " " + c.Description))
	terms := overlapTerms(queryTF, candTF, 3)

	var parts []string
	if len(terms) > 0 {
		parts = append(parts, "shared terms: "+strings.Join(terms, ", "))
	}
	if q.Category != "" && strings.EqualFold(q.Category, c.Category) {
		parts = append(parts, "same category: "+c.Category)
	}
	if len(parts) == 0 {
		return "overall text similarity"
	}
	return strings.Join(parts, "; ")
}
