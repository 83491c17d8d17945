package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ni30kp/lula-Task/internal/jobs"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

type fakeStore struct {
	issue      *model.Issue
	getErr     error
	appended   []*model.ConversationMessage
	summary    *model.ConversationSummary
	usedCount  int
	usedFound  bool
	recs       []model.Recommendation
	enqueueNew bool

	statusSet     model.IssueStatus
	resolutionSet string
}

func (f *fakeStore) EnsureCustomer(ctx context.Context, id, name string) error { return nil }

func (f *fakeStore) CreateIssue(ctx context.Context, issue *model.Issue) error {
	f.issue = issue
	return nil
}

func (f *fakeStore) UpdateIssueStatus(ctx context.Context, issueID string, status model.IssueStatus, resolution string) (*model.Issue, error) {
	if f.issue == nil {
		return nil, nil
	}
	f.statusSet = status
	f.resolutionSet = resolution
	updated := *f.issue
	updated.Status = status
	if resolution != "" {
		updated.Resolution = resolution
	}
	return &updated, nil
}

func (f *fakeStore) GetIssue(ctx context.Context, id string) (*model.Issue, error) {
	return f.issue, f.getErr
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg *model.ConversationMessage) error {
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeStore) GetSummary(ctx context.Context, issueID string) (*model.ConversationSummary, error) {
	return f.summary, nil
}

func (f *fakeStore) MarkRecommendationUsed(ctx context.Context, id string) (int, bool, error) {
	return f.usedCount, f.usedFound, nil
}

func (f *fakeStore) RecommendationsForIssue(ctx context.Context, issueID string) ([]model.Recommendation, error) {
	return f.recs, nil
}

func (f *fakeStore) CreateOrResetSummary(ctx context.Context, issueID string, maxRetries int) (bool, error) {
	return f.enqueueNew, nil
}

type noopPublisher struct{ published int }

func (n *noopPublisher) PublishSummarizeJob(ctx context.Context, job *model.SummarizeJob) error {
	n.published++
	return nil
}

func handlerLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func doRequest(t *testing.T, h http.HandlerFunc, method, target, issueID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", issueID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func openIssue() *model.Issue {
	return &model.Issue{
		ID:         "i1",
		CustomerID: "c1",
		Title:      "Cannot login",
		Status:     model.StatusOpen,
		CreatedAt:  time.Now(),
	}
}

func TestAppendMessageValidation(t *testing.T) {
	h := NewMessageHandler(&fakeStore{issue: openIssue()}, handlerLogger(t))

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"valid customer message", map[string]any{"sender": "CUSTOMER", "body": "still broken"}, http.StatusCreated},
		{"lowercase sender accepted", map[string]any{"sender": "support", "body": "on it"}, http.StatusCreated},
		{"unknown sender", map[string]any{"sender": "BOT", "body": "hi"}, http.StatusBadRequest},
		{"empty body", map[string]any{"sender": "CUSTOMER", "body": ""}, http.StatusBadRequest},
		{"sentiment out of range", map[string]any{"sender": "CUSTOMER", "body": "hi", "sentiment": 1.5}, http.StatusBadRequest},
		{"sentiment in range", map[string]any{"sender": "CUSTOMER", "body": "hi", "sentiment": -0.4}, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, h.Append, http.MethodPost, "/api/v1/issues/i1/messages", "i1", tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAppendMessageUnknownIssue(t *testing.T) {
	h := NewMessageHandler(&fakeStore{issue: nil}, handlerLogger(t))

	rec := doRequest(t, h.Append, http.MethodPost, "/api/v1/issues/nope/messages", "nope",
		map[string]any{"sender": "CUSTOMER", "body": "hello"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationClosedAccepted(t *testing.T) {
	store := &fakeStore{issue: openIssue(), enqueueNew: true}
	pub := &noopPublisher{}
	h := NewSummaryHandler(store, jobs.NewEnqueuer(store, pub, 3, handlerLogger(t)), handlerLogger(t))

	rec := doRequest(t, h.ConversationClosed, http.MethodPost, "/api/v1/issues/i1/conversation-closed", "i1", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, pub.published)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["scheduled"])
}

func TestConversationClosedCoalesced(t *testing.T) {
	store := &fakeStore{issue: openIssue(), enqueueNew: false}
	pub := &noopPublisher{}
	h := NewSummaryHandler(store, jobs.NewEnqueuer(store, pub, 3, handlerLogger(t)), handlerLogger(t))

	rec := doRequest(t, h.ConversationClosed, http.MethodPost, "/api/v1/issues/i1/conversation-closed", "i1", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, pub.published)
}

func TestGetSummaryStates(t *testing.T) {
	t.Run("no summary", func(t *testing.T) {
		h := NewSummaryHandler(&fakeStore{}, nil, handlerLogger(t))
		rec := doRequest(t, h.GetSummary, http.MethodGet, "/api/v1/issues/i1/summary", "i1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("pending summary polls", func(t *testing.T) {
		h := NewSummaryHandler(&fakeStore{summary: &model.ConversationSummary{
			IssueID: "i1", Status: model.SummaryPending,
		}}, nil, handlerLogger(t))
		rec := doRequest(t, h.GetSummary, http.MethodGet, "/api/v1/issues/i1/summary", "i1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "PENDING")
	})
}

func TestUpdateStatusResolves(t *testing.T) {
	store := &fakeStore{issue: openIssue()}
	h := NewIssueHandler(store, nil, handlerLogger(t))

	rec := doRequest(t, h.UpdateStatus, http.MethodPut, "/api/v1/issues/i1/status", "i1",
		map[string]string{"status": "RESOLVED", "resolution": "Cleared stale session cache"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusResolved, store.statusSet)
	assert.Equal(t, "Cleared stale session cache", store.resolutionSet)
	assert.Contains(t, rec.Body.String(), `"status":"RESOLVED"`)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	store := &fakeStore{issue: openIssue()}
	h := NewIssueHandler(store, nil, handlerLogger(t))

	rec := doRequest(t, h.UpdateStatus, http.MethodPut, "/api/v1/issues/i1/status", "i1",
		map[string]string{"status": "ARCHIVED"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.statusSet)
}

func TestUpdateStatusUnknownIssue(t *testing.T) {
	h := NewIssueHandler(&fakeStore{}, nil, handlerLogger(t))

	rec := doRequest(t, h.UpdateStatus, http.MethodPut, "/api/v1/issues/nope/status", "nope",
		map[string]string{"status": "CLOSED"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkRecommendationUsed(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		h := NewRecommendationHandler(&fakeStore{usedFound: true, usedCount: 3}, handlerLogger(t))
		rec := doRequest(t, h.MarkUsed, http.MethodPost, "/api/v1/recommendations/r1/used", "r1", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"used_count":3`)
	})

	t.Run("missing", func(t *testing.T) {
		h := NewRecommendationHandler(&fakeStore{usedFound: false}, handlerLogger(t))
		rec := doRequest(t, h.MarkUsed, http.MethodPost, "/api/v1/recommendations/r1/used", "r1", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
