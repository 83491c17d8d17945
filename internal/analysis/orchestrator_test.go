package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ni30kp/lula-Task/internal/errs"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/internal/recommend"
	"github.com/ni30kp/lula-Task/internal/similarity"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

type fakeHistory struct {
	history *model.CustomerHistory
	err     error
	delay   time.Duration
}

func (f *fakeHistory) CustomerHistory(ctx context.Context, customerID string) (*model.CustomerHistory, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.history, f.err
}

type fakeClassifier struct {
	assessment model.SeverityAssessment
	modelRan   bool
	delay      time.Duration
}

func (f *fakeClassifier) Classify(ctx context.Context, text, category string) (model.SeverityAssessment, bool) {
	// Sleeps through cancellation so a slow classifier never races the
	// orchestrator's deadline arm in tests.
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.assessment, f.modelRan
}

type fakeFinder struct {
	matches  []model.SimilarIssue
	degraded bool
	err      error
	delay    time.Duration
}

func (f *fakeFinder) FindSimilar(ctx context.Context, q similarity.Query) ([]model.SimilarIssue, bool, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
	return f.matches, f.degraded, f.err
}

type fakePersister struct {
	assessmentErr error
	linksErr      error
	recsErr       error

	assessmentSaved bool
	linksSaved      []model.SimilarIssueLink
	linksCalled     bool
	recsSaved       []model.Recommendation
}

func (f *fakePersister) UpdateIssueAssessment(ctx context.Context, issueID string, severity model.Severity, confidence float64) error {
	if f.assessmentErr != nil {
		return f.assessmentErr
	}
	f.assessmentSaved = true
	return nil
}

func (f *fakePersister) ReplaceSimilarLinks(ctx context.Context, sourceIssueID string, links []model.SimilarIssueLink) error {
	if f.linksErr != nil {
		return f.linksErr
	}
	f.linksCalled = true
	f.linksSaved = links
	return nil
}

func (f *fakePersister) InsertRecommendations(ctx context.Context, recs []model.Recommendation) error {
	if f.recsErr != nil {
		return f.recsErr
	}
	f.recsSaved = recs
	return nil
}

func orchLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func newTestOrchestrator(t *testing.T, h HistoryProvider, c Classifier, f SimilarityFinder, p Persister, cfg Config) *Orchestrator {
	t.Helper()
	return New(h, c, f, recommend.New(recommend.Config{ReuseThreshold: 0.55}), p, cfg, orchLogger(t))
}

func validRequest() model.AnalyzeRequest {
	return model.AnalyzeRequest{
		IssueID:     "issue-1",
		CustomerID:  "cust-1",
		Title:       "Cannot login",
		Description: "Login fails with error 401 for all users",
		Category:    "Authentication",
	}
}

func TestAnalyzeRejectsInvalidInput(t *testing.T) {
	o := newTestOrchestrator(t, &fakeHistory{}, &fakeClassifier{}, &fakeFinder{}, &fakePersister{}, Config{})

	for _, req := range []model.AnalyzeRequest{
		{CustomerID: "c", Description: "d"},
		{IssueID: "i", Description: "d"},
		{IssueID: "i", CustomerID: "c", Description: "   "},
	} {
		_, err := o.Analyze(context.Background(), req)
		assert.ErrorIs(t, err, errs.ErrInputInvalid)
	}
}

func TestAnalyzeHappyPathPersistsEverything(t *testing.T) {
	similar := []model.SimilarIssue{
		{
			IssueID:    "old-1",
			Title:      "Login fails with 401",
			Score:      0.93,
			Reason:     "shared terms: login, 401",
			Status:     model.StatusResolved,
			Resolution: "Cleared stale session cache",
			CreatedAt:  time.Now().Add(-24 * time.Hour),
		},
	}
	persister := &fakePersister{}
	o := newTestOrchestrator(t,
		&fakeHistory{history: &model.CustomerHistory{CustomerID: "cust-1", TotalIssues: 4}},
		&fakeClassifier{assessment: model.SeverityAssessment{Severity: model.SeverityHigh, Confidence: 0.9}, modelRan: true},
		&fakeFinder{matches: similar},
		persister,
		Config{Deadline: 2 * time.Second, SynthesisReserve: 200 * time.Millisecond},
	)

	got, err := o.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	assert.False(t, got.Degraded)
	assert.Empty(t, got.DegradedParts)
	assert.Equal(t, model.SeverityHigh, got.Severity)
	assert.InDelta(t, 0.9, got.ConfidenceScore, 1e-9)
	require.NotNil(t, got.CustomerHistory)
	assert.Equal(t, 4, got.CustomerHistory.TotalIssues)
	require.Len(t, got.SimilarIssues, 1)
	assert.NotEmpty(t, got.Recommendations)

	// The top recommendation reuses the proven fix with high confidence.
	top := got.Recommendations[0]
	assert.Equal(t, model.TemplateSolution, top.Type)
	assert.GreaterOrEqual(t, top.ConfidenceScore, 0.8)

	assert.True(t, persister.assessmentSaved)
	require.Len(t, persister.linksSaved, 1)
	assert.Equal(t, "issue-1", persister.linksSaved[0].SourceIssueID)
	assert.Equal(t, "old-1", persister.linksSaved[0].SimilarIssueID)
	assert.Equal(t, got.Recommendations, persister.recsSaved)
}

func TestAnalyzeAllBranchesTimeoutStillAnswers(t *testing.T) {
	slow := 5 * time.Second
	persister := &fakePersister{}
	o := newTestOrchestrator(t,
		&fakeHistory{delay: slow},
		&fakeClassifier{delay: slow},
		&fakeFinder{delay: slow},
		persister,
		Config{Deadline: 300 * time.Millisecond, SynthesisReserve: 100 * time.Millisecond},
	)

	start := time.Now()
	got, err := o.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second, "must answer within the budget")
	assert.True(t, got.Degraded)
	assert.ElementsMatch(t,
		[]model.Subsystem{model.SubsystemHistory, model.SubsystemSeverity, model.SubsystemSimilarity},
		got.DegradedParts)
	assert.Equal(t, model.SeverityNormal, got.Severity)
	assert.NotEmpty(t, got.Recommendations, "baseline greeting survives total degradation")

	// Neither branch produced a result, so neither write happens: the
	// placeholder severity stays out of the store and links are kept.
	assert.False(t, persister.assessmentSaved)
	assert.False(t, persister.linksCalled)
}

func TestAnalyzeSeverityTimeoutKeepsStoredAssessment(t *testing.T) {
	persister := &fakePersister{}
	o := newTestOrchestrator(t,
		&fakeHistory{history: &model.CustomerHistory{CustomerID: "cust-1"}},
		&fakeClassifier{delay: 5 * time.Second},
		&fakeFinder{matches: []model.SimilarIssue{{IssueID: "old-1", Score: 0.8}}},
		persister,
		Config{Deadline: 300 * time.Millisecond, SynthesisReserve: 100 * time.Millisecond},
	)

	got, err := o.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Contains(t, got.DegradedParts, model.SubsystemSeverity)
	assert.Equal(t, model.SeverityNormal, got.Severity)
	assert.False(t, persister.assessmentSaved, "placeholder severity must not overwrite a stored assessment")

	// The branches that did finish still persist.
	assert.True(t, persister.linksCalled)
	assert.Equal(t, got.Recommendations, persister.recsSaved)
}

func TestAnalyzeSimilarityErrorDegradesAndKeepsLinks(t *testing.T) {
	persister := &fakePersister{}
	o := newTestOrchestrator(t,
		&fakeHistory{history: &model.CustomerHistory{}},
		&fakeClassifier{assessment: model.SeverityAssessment{Severity: model.SeverityNormal, Confidence: 0.7}, modelRan: true},
		&fakeFinder{err: errs.Unavailable("similarity-store", errors.New("connection refused"))},
		persister,
		Config{Deadline: time.Second, SynthesisReserve: 100 * time.Millisecond},
	)

	got, err := o.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, got.Degraded)
	assert.Contains(t, got.DegradedParts, model.SubsystemSimilarity)
	assert.False(t, persister.linksCalled, "a failed similarity pass must not wipe existing links")
}

func TestAnalyzeRuleOnlySeverityIsDegraded(t *testing.T) {
	o := newTestOrchestrator(t,
		&fakeHistory{history: &model.CustomerHistory{}},
		&fakeClassifier{assessment: model.SeverityAssessment{Severity: model.SeverityHigh, Confidence: 0.4}, modelRan: false},
		&fakeFinder{},
		&fakePersister{},
		Config{Deadline: time.Second, SynthesisReserve: 100 * time.Millisecond},
	)

	got, err := o.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	assert.True(t, got.Degraded)
	assert.Contains(t, got.DegradedParts, model.SubsystemSeverity)
	assert.Equal(t, model.SeverityHigh, got.Severity)
}

func TestAnalyzeIntegrityViolationFails(t *testing.T) {
	persister := &fakePersister{
		assessmentErr: &errs.DataIntegrityViolation{Entity: "issue", Err: errors.New("fk violation")},
	}
	o := newTestOrchestrator(t,
		&fakeHistory{history: &model.CustomerHistory{}},
		&fakeClassifier{assessment: model.SeverityAssessment{Severity: model.SeverityNormal, Confidence: 0.5}, modelRan: true},
		&fakeFinder{},
		persister,
		Config{Deadline: time.Second, SynthesisReserve: 100 * time.Millisecond},
	)

	_, err := o.Analyze(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, errs.IsIntegrity(err))
}

func TestAnalyzeTransientPersistErrorDegrades(t *testing.T) {
	persister := &fakePersister{assessmentErr: errors.New("connection reset")}
	o := newTestOrchestrator(t,
		&fakeHistory{history: &model.CustomerHistory{}},
		&fakeClassifier{assessment: model.SeverityAssessment{Severity: model.SeverityNormal, Confidence: 0.5}, modelRan: true},
		&fakeFinder{},
		persister,
		Config{Deadline: time.Second, SynthesisReserve: 100 * time.Millisecond},
	)

	got, err := o.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Contains(t, got.DegradedParts, model.SubsystemPersistence)
}

func TestAnalyzeLinksCappedAtTopK(t *testing.T) {
	var similar []model.SimilarIssue
	for i := 0; i < 8; i++ {
		similar = append(similar, model.SimilarIssue{
			IssueID: string(rune('a' + i)),
			Score:   0.9 - float64(i)*0.01,
		})
	}
	persister := &fakePersister{}
	o := newTestOrchestrator(t,
		&fakeHistory{history: &model.CustomerHistory{}},
		&fakeClassifier{assessment: model.SeverityAssessment{Severity: model.SeverityNormal, Confidence: 0.5}, modelRan: true},
		&fakeFinder{matches: similar},
		persister,
		Config{Deadline: time.Second, SynthesisReserve: 100 * time.Millisecond, TopK: 5},
	)

	_, err := o.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Len(t, persister.linksSaved, 5)
}

func TestAnalyzeDeadlineOverrideCapped(t *testing.T) {
	o := newTestOrchestrator(t, &fakeHistory{}, &fakeClassifier{}, &fakeFinder{}, &fakePersister{},
		Config{Deadline: 15 * time.Second, MaxBudget: 30 * time.Second})

	assert.Equal(t, 15*time.Second, o.budget(0))
	assert.Equal(t, 10*time.Second, o.budget(10*time.Second))
	assert.Equal(t, 30*time.Second, o.budget(time.Minute))
}
