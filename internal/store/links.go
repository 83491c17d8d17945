package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/ni30kp/lula-Task/internal/model"
)

// Candidate is a historical issue considered by the similarity engine.
type Candidate struct {
	IssueID     string
	Title       string
	Description string
	Category    string
	Status      model.IssueStatus
	Resolution  string
	CreatedAt   time.Time

	// Cosine similarity to the query embedding, only set on the
	// semantic search path.
	Score float64
}

// SetIssueEmbedding stores the issue text embedding used for vector search.
func (s *Store) SetIssueEmbedding(ctx context.Context, issueID string, vec []float32) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE issues SET embedding = $2, updated_at = now() WHERE id = $1
	`, issueID, pgvector.NewVector(vec))
	return mapWriteErr("issue", err)
}

// NearestIssues runs a cosine vector search over stored issue embeddings,
// excluding the source issue. The returned score is 1 - cosine distance.
func (s *Store) NearestIssues(ctx context.Context, vec []float32, excludeIssueID, customerID string, sameCustomerOnly bool, limit int) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, category, status, COALESCE(resolution, ''), created_at,
		       1 - (embedding <=> $1) AS score
		FROM issues
		WHERE embedding IS NOT NULL
		  AND id <> $2
		  AND ($4 = false OR customer_id = $3)
		ORDER BY embedding <=> $1, created_at DESC
		LIMIT $5
	`, pgvector.NewVector(vec), excludeIssueID, customerID, sameCustomerOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// RecentCandidates returns the most recent issues for the lexical fallback
// path, excluding the source issue.
func (s *Store) RecentCandidates(ctx context.Context, excludeIssueID, customerID string, sameCustomerOnly bool, limit int) ([]Candidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, category, status, COALESCE(resolution, ''), created_at,
		       0::float8 AS score
		FROM issues
		WHERE id <> $1
		  AND ($3 = false OR customer_id = $2)
		ORDER BY created_at DESC
		LIMIT $4
	`, excludeIssueID, customerID, sameCustomerOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("recent candidates: %w", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

type candidateRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanCandidates(rows candidateRows) ([]Candidate, error) {
	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.IssueID, &c.Title, &c.Description, &c.Category,
			&c.Status, &c.Resolution, &c.CreatedAt, &c.Score); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Score = model.ClampScore(c.Score)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceSimilarLinks atomically swaps the similar-issue link set for a
// source issue: delete then insert in one transaction, capped by the
// caller at top-K.
func (s *Store) ReplaceSimilarLinks(ctx context.Context, sourceIssueID string, links []model.SimilarIssueLink) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM similar_issue_links WHERE source_issue_id = $1
	`, sourceIssueID); err != nil {
		return fmt.Errorf("delete links: %w", err)
	}

	for _, l := range links {
		if l.SimilarIssueID == sourceIssueID {
			continue // never link an issue to itself
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO similar_issue_links (source_issue_id, similar_issue_id, score, reason, created_at)
			VALUES ($1, $2, $3, $4, now())
		`, sourceIssueID, l.SimilarIssueID, model.ClampScore(l.Score), l.Reason); err != nil {
			return mapWriteErr("similar_issue_link", err)
		}
	}

	return tx.Commit(ctx)
}
