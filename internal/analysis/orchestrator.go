// Package analysis hosts the deadline orchestrator: the synchronous
// entry point that fans out to history lookup, severity classification,
// and similarity search under a shared wall-clock budget and merges
// whatever arrives in time into a best-effort response.
package analysis

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/errs"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/internal/recommend"
	"github.com/ni30kp/lula-Task/internal/similarity"
	"github.com/ni30kp/lula-Task/pkg/logger"
	"github.com/ni30kp/lula-Task/pkg/metrics"
)

// HistoryProvider fetches a customer's aggregate track record.
type HistoryProvider interface {
	CustomerHistory(ctx context.Context, customerID string) (*model.CustomerHistory, error)
}

// Classifier assigns a severity. The boolean reports whether the model
// pass ran; false means the rule-only fallback was used.
type Classifier interface {
	Classify(ctx context.Context, text, category string) (model.SeverityAssessment, bool)
}

// SimilarityFinder ranks historical issues against the query text. The
// boolean reports lexical fallback due to embedder unavailability.
type SimilarityFinder interface {
	FindSimilar(ctx context.Context, q similarity.Query) ([]model.SimilarIssue, bool, error)
}

// Synthesizer builds ranked recommendation drafts.
type Synthesizer interface {
	Synthesize(now time.Time, in recommend.Input) []model.Recommendation
}

// Persister writes analysis side effects to the store.
type Persister interface {
	UpdateIssueAssessment(ctx context.Context, issueID string, severity model.Severity, confidence float64) error
	ReplaceSimilarLinks(ctx context.Context, sourceIssueID string, links []model.SimilarIssueLink) error
	InsertRecommendations(ctx context.Context, recs []model.Recommendation) error
}

// Config tunes the orchestrator's budget.
type Config struct {
	// Deadline is the default overall wall-clock budget.
	Deadline time.Duration

	// MaxBudget caps caller-supplied deadline overrides.
	MaxBudget time.Duration

	// SynthesisReserve is held back from the fan-out window so the
	// synthesizer and persistence always get a slice of the budget.
	SynthesisReserve time.Duration

	// TopK caps the persisted similar-issue link set.
	TopK int
}

// Orchestrator coordinates one analysis request end to end.
type Orchestrator struct {
	history    HistoryProvider
	classifier Classifier
	finder     SimilarityFinder
	synth      Synthesizer
	persist    Persister
	cfg        Config
	logger     *logger.Logger
}

// New creates an orchestrator.
func New(history HistoryProvider, classifier Classifier, finder SimilarityFinder, synth Synthesizer, persist Persister, cfg Config, log *logger.Logger) *Orchestrator {
	if cfg.Deadline <= 0 {
		cfg.Deadline = 15 * time.Second
	}
	if cfg.MaxBudget <= 0 {
		cfg.MaxBudget = 2 * cfg.Deadline
	}
	if cfg.SynthesisReserve <= 0 || cfg.SynthesisReserve >= cfg.Deadline {
		cfg.SynthesisReserve = cfg.Deadline / 8
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Orchestrator{
		history:    history,
		classifier: classifier,
		finder:     finder,
		synth:      synth,
		persist:    persist,
		cfg:        cfg,
		logger:     log,
	}
}

type historyOut struct {
	history *model.CustomerHistory
	err     error
}

type severityOut struct {
	assessment model.SeverityAssessment
	modelRan   bool
}

type similarOut struct {
	matches  []model.SimilarIssue
	degraded bool
	err      error
}

// Analyze runs the full pipeline for one issue. It always returns before
// the overall deadline; sub-system failures and timeouts degrade the
// result instead of failing the request. Only malformed input and
// integrity violations during persistence are reported as errors.
func (o *Orchestrator) Analyze(ctx context.Context, req model.AnalyzeRequest) (*model.AnalysisResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	start := time.Now()
	budget := o.budget(req.Deadline)

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	fanoutWindow := budget - o.cfg.SynthesisReserve
	fanCtx, fanCancel := context.WithTimeout(ctx, fanoutWindow)
	defer fanCancel()

	text := strings.TrimSpace(req.Title + " " + req.Description)

	// Buffered channels so branches that finish after the window
	// elapses never block; their results are simply discarded.
	histCh := make(chan historyOut, 1)
	sevCh := make(chan severityOut, 1)
	simCh := make(chan similarOut, 1)

	go func() {
		h, err := o.history.CustomerHistory(fanCtx, req.CustomerID)
		histCh <- historyOut{history: h, err: err}
	}()
	go func() {
		a, modelRan := o.classifier.Classify(fanCtx, text, req.Category)
		sevCh <- severityOut{assessment: a, modelRan: modelRan}
	}()
	go func() {
		matches, degraded, err := o.finder.FindSimilar(fanCtx, similarity.Query{
			IssueID:          req.IssueID,
			CustomerID:       req.CustomerID,
			Text:             text,
			Category:         req.Category,
			SameCustomerOnly: req.SameCustomerOnly,
		})
		simCh <- similarOut{matches: matches, degraded: degraded, err: err}
	}()

	result := &model.AnalysisResult{
		IssueID:  req.IssueID,
		Severity: model.SeverityNormal,
	}
	var degraded []model.Subsystem
	var severityOK, similarOK bool

	for pending := 3; pending > 0; {
		select {
		case out := <-histCh:
			histCh = nil
			pending--
			if out.err != nil {
				o.logger.Warn("history lookup failed", zap.String("issue_id", req.IssueID), zap.Error(out.err))
				degraded = append(degraded, model.SubsystemHistory)
				break
			}
			result.CustomerHistory = out.history

		case out := <-sevCh:
			sevCh = nil
			pending--
			severityOK = true
			result.Severity = out.assessment.Severity
			result.ConfidenceScore = out.assessment.Confidence
			if !out.modelRan {
				degraded = append(degraded, model.SubsystemSeverity)
			}

		case out := <-simCh:
			simCh = nil
			pending--
			if out.err != nil {
				o.logger.Warn("similarity search failed", zap.String("issue_id", req.IssueID), zap.Error(out.err))
				degraded = append(degraded, model.SubsystemSimilarity)
				break
			}
			similarOK = true
			result.SimilarIssues = out.matches
			if out.degraded {
				degraded = append(degraded, model.SubsystemSimilarity)
			}

		case <-fanCtx.Done():
			// Window elapsed: mark every branch still outstanding as
			// unavailable and move on with what we have.
			if histCh != nil {
				degraded = append(degraded, model.SubsystemHistory)
			}
			if sevCh != nil {
				degraded = append(degraded, model.SubsystemSeverity)
			}
			if simCh != nil {
				degraded = append(degraded, model.SubsystemSimilarity)
			}
			pending = 0
		}
	}

	result.Recommendations = o.synth.Synthesize(time.Now(), recommend.Input{
		IssueID:  req.IssueID,
		Severity: model.SeverityAssessment{Severity: result.Severity, Confidence: result.ConfidenceScore},
		Similar:  result.SimilarIssues,
		History:  result.CustomerHistory,
	})

	if err := o.persistResult(ctx, req.IssueID, result, severityOK, similarOK); err != nil {
		if errs.IsIntegrity(err) {
			return nil, err
		}
		o.logger.Warn("failed to persist analysis", zap.String("issue_id", req.IssueID), zap.Error(err))
		degraded = append(degraded, model.SubsystemPersistence)
	}

	result.DegradedParts = degraded
	result.Degraded = len(degraded) > 0
	result.ElapsedMs = time.Since(start).Milliseconds()

	for _, sub := range degraded {
		metrics.AnalysisDegradedTotal.WithLabelValues(string(sub)).Inc()
	}
	metrics.RecordAnalysis(result.Degraded, time.Since(start).Seconds())

	o.logger.Info("analysis completed",
		zap.String("issue_id", req.IssueID),
		zap.String("severity", string(result.Severity)),
		zap.Float64("confidence", result.ConfidenceScore),
		zap.Int("similar_issues", len(result.SimilarIssues)),
		zap.Int("recommendations", len(result.Recommendations)),
		zap.Bool("degraded", result.Degraded),
		zap.Int64("elapsed_ms", result.ElapsedMs),
	)
	return result, nil
}

// persistResult writes severity, the replaced link set, and the new
// recommendations. Rule-only (degraded) assessments are persisted, but
// a branch that never produced a result leaves its stored state alone:
// a timed-out classifier must not overwrite a real assessment with the
// placeholder severity, and a similarity outage must not wipe existing
// links.
func (o *Orchestrator) persistResult(ctx context.Context, issueID string, result *model.AnalysisResult, severityOK, similarOK bool) error {
	if severityOK {
		if err := o.persist.UpdateIssueAssessment(ctx, issueID, result.Severity, result.ConfidenceScore); err != nil {
			return err
		}
	}

	if similarOK {
		links := make([]model.SimilarIssueLink, 0, len(result.SimilarIssues))
		for _, sim := range result.SimilarIssues {
			if len(links) == o.cfg.TopK {
				break
			}
			links = append(links, model.SimilarIssueLink{
				SourceIssueID:  issueID,
				SimilarIssueID: sim.IssueID,
				Score:          sim.Score,
				Reason:         sim.Reason,
			})
		}
		if err := o.persist.ReplaceSimilarLinks(ctx, issueID, links); err != nil {
			return err
		}
	}

	return o.persist.InsertRecommendations(ctx, result.Recommendations)
}

func (o *Orchestrator) budget(override time.Duration) time.Duration {
	if override <= 0 {
		return o.cfg.Deadline
	}
	if override > o.cfg.MaxBudget {
		return o.cfg.MaxBudget
	}
	return override
}

func validate(req model.AnalyzeRequest) error {
	if strings.TrimSpace(req.IssueID) == "" {
		return errs.InputInvalid("issue_id is required")
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return errs.InputInvalid("customer_id is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return errs.InputInvalid("description is required")
	}
	return nil
}
