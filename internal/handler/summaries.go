package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/jobs"
	"github.com/ni30kp/lula-Task/internal/middleware"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

// SummaryStore is the store surface the summary handlers need.
type SummaryStore interface {
	GetIssue(ctx context.Context, id string) (*model.Issue, error)
	GetSummary(ctx context.Context, issueID string) (*model.ConversationSummary, error)
}

// SummaryHandler exposes the summarization pipeline: the close event that
// schedules a job and the status query for its result.
type SummaryHandler struct {
	store    SummaryStore
	enqueuer *jobs.Enqueuer
	logger   *logger.Logger
}

// NewSummaryHandler creates a summary handler.
func NewSummaryHandler(store SummaryStore, enqueuer *jobs.Enqueuer, log *logger.Logger) *SummaryHandler {
	return &SummaryHandler{store: store, enqueuer: enqueuer, logger: log}
}

// ConversationClosed handles POST /api/v1/issues/{id}/conversation-closed.
// Always 202 on success: the summary is produced asynchronously and a
// repeat close event coalesces with the in-flight job.
func (h *SummaryHandler) ConversationClosed(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")

	ctx := r.Context()
	issue, err := h.store.GetIssue(ctx, issueID)
	if err != nil {
		h.logger.WithIssue(middleware.GetCorrelationID(ctx), issueID).Error("get issue failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	scheduled, err := h.enqueuer.OnConversationClosed(ctx, issueID)
	if err != nil {
		h.logger.WithIssue(middleware.GetCorrelationID(ctx), issueID).Error("enqueue summarize job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to schedule summarization")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"issue_id":  issueID,
		"scheduled": scheduled,
	})
}

// GetSummary handles GET /api/v1/issues/{id}/summary. A non-terminal
// summary answers with its current status so callers can poll.
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")

	ctx := r.Context()
	sum, err := h.store.GetSummary(ctx, issueID)
	if err != nil {
		h.logger.WithIssue(middleware.GetCorrelationID(ctx), issueID).Error("get summary failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sum == nil {
		writeError(w, http.StatusNotFound, "no summary for issue")
		return
	}

	writeJSON(w, http.StatusOK, sum)
}
