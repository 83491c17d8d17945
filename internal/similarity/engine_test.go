package similarity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ni30kp/lula-Task/internal/errs"
	"github.com/ni30kp/lula-Task/internal/store"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

type fakeSource struct {
	nearest    []store.Candidate
	nearestErr error
	recent     []store.Candidate
	recentErr  error

	embeddingSet bool
}

func (f *fakeSource) NearestIssues(ctx context.Context, vec []float32, excludeIssueID, customerID string, sameCustomerOnly bool, limit int) ([]store.Candidate, error) {
	return f.nearest, f.nearestErr
}

func (f *fakeSource) RecentCandidates(ctx context.Context, excludeIssueID, customerID string, sameCustomerOnly bool, limit int) ([]store.Candidate, error) {
	return f.recent, f.recentErr
}

func (f *fakeSource) SetIssueEmbedding(ctx context.Context, issueID string, vec []float32) error {
	f.embeddingSet = true
	return nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func engineLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func TestFindSimilarSemanticPath(t *testing.T) {
	now := time.Now()
	source := &fakeSource{nearest: []store.Candidate{
		{IssueID: "old-1", Title: "login error 401", Score: 0.91, CreatedAt: now.Add(-time.Hour)},
		{IssueID: "old-2", Title: "slow dashboard", Score: 0.40, CreatedAt: now.Add(-2 * time.Hour)},
		{IssueID: "old-3", Title: "unrelated", Score: 0.10, CreatedAt: now},
	}}
	e := New(source, &fakeEmbedder{}, nil, Config{TopK: 5, MinScore: 0.35}, engineLogger(t))

	got, degraded, err := e.FindSimilar(context.Background(), Query{IssueID: "new", Text: "login error 401"})
	require.NoError(t, err)
	assert.False(t, degraded)
	require.Len(t, got, 2)
	assert.Equal(t, "old-1", got[0].IssueID)
	assert.Equal(t, "old-2", got[1].IssueID)
	assert.True(t, source.embeddingSet)
}

func TestFindSimilarEmbedderFailureFallsBackLexical(t *testing.T) {
	now := time.Now()
	source := &fakeSource{recent: []store.Candidate{
		{IssueID: "old-1", Title: "Cannot login", Description: "error 401 on login page", CreatedAt: now},
		{IssueID: "old-2", Title: "Billing question", Description: "invoice totals look wrong", CreatedAt: now},
	}}
	e := New(source, &fakeEmbedder{err: errors.New("rate limited")}, nil, Config{TopK: 5, MinScore: 0.3}, engineLogger(t))

	got, degraded, err := e.FindSimilar(context.Background(), Query{IssueID: "new", Text: "cannot login error 401"})
	require.NoError(t, err)
	assert.True(t, degraded)
	require.Len(t, got, 1)
	assert.Equal(t, "old-1", got[0].IssueID)
}

func TestFindSimilarNoEmbedderIsNotDegraded(t *testing.T) {
	source := &fakeSource{recent: []store.Candidate{}}
	e := New(source, nil, nil, Config{TopK: 5, MinScore: 0.3}, engineLogger(t))

	_, degraded, err := e.FindSimilar(context.Background(), Query{IssueID: "new", Text: "anything at all"})
	require.NoError(t, err)
	assert.False(t, degraded)
}

func TestFindSimilarStoreFailurePropagates(t *testing.T) {
	source := &fakeSource{nearestErr: errors.New("connection refused")}
	e := New(source, &fakeEmbedder{}, nil, Config{TopK: 5, MinScore: 0.3}, engineLogger(t))

	_, _, err := e.FindSimilar(context.Background(), Query{IssueID: "new", Text: "login error"})
	require.Error(t, err)
	var unavailable *errs.SubsystemUnavailable
	assert.ErrorAs(t, err, &unavailable)
}

func TestRankExcludesSelfAndCapsTopK(t *testing.T) {
	now := time.Now()
	var cands []store.Candidate
	cands = append(cands, store.Candidate{IssueID: "self", Score: 0.99, CreatedAt: now})
	for i := 0; i < 10; i++ {
		cands = append(cands, store.Candidate{
			IssueID:   string(rune('a' + i)),
			Score:     0.9,
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	e := New(&fakeSource{}, nil, nil, Config{TopK: 3, MinScore: 0.5}, engineLogger(t))

	got := e.rank(Query{IssueID: "self"}, nil, cands)
	require.Len(t, got, 3)
	for _, sim := range got {
		assert.NotEqual(t, "self", sim.IssueID)
	}
	// Equal scores rank by recency.
	assert.Equal(t, "a", got[0].IssueID)
	assert.Equal(t, "b", got[1].IssueID)
	assert.Equal(t, "c", got[2].IssueID)
}

func TestReasonSharedTermsAndCategory(t *testing.T) {
	e := New(&fakeSource{}, nil, nil, Config{}, engineLogger(t))
	queryTF := termFreqs(Tokenize("cannot login error 401"))
	c := store.Candidate{
		Title:       "Login failure",
		Description: "user sees error 401 at login",
		Category:    "Authentication",
	}

	got := e.reason(Query{Category: "Authentication"}, queryTF, c)
	assert.Contains(t, got, "shared terms:")
	assert.Contains(t, got, "login")
	assert.Contains(t, got, "same category: Authentication")

	// No overlap at all falls back to the generic reason.
	empty := e.reason(Query{}, termFreqs(nil), store.Candidate{Title: "zzz"})
	assert.Equal(t, "overall text similarity", empty)
}
