package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/middleware"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

// RecommendationStore is the store surface the recommendation handler needs.
type RecommendationStore interface {
	MarkRecommendationUsed(ctx context.Context, id string) (int, bool, error)
	RecommendationsForIssue(ctx context.Context, issueID string) ([]model.Recommendation, error)
}

// RecommendationHandler exposes stored recommendations and usage feedback.
type RecommendationHandler struct {
	store  RecommendationStore
	logger *logger.Logger
}

// NewRecommendationHandler creates a recommendation handler.
func NewRecommendationHandler(store RecommendationStore, log *logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{store: store, logger: log}
}

// MarkUsed handles POST /api/v1/recommendations/{id}/used, the feedback
// signal that an agent actually sent this template.
func (h *RecommendationHandler) MarkUsed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	count, found, err := h.store.MarkRecommendationUsed(r.Context(), id)
	if err != nil {
		h.logger.With(zap.String("correlation_id", middleware.GetCorrelationID(r.Context()))).
			Error("mark recommendation used failed", zap.String("recommendation_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "recommendation not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"used_count": count,
	})
}

// ListForIssue handles GET /api/v1/issues/{id}/recommendations.
func (h *RecommendationHandler) ListForIssue(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")

	ctx := r.Context()
	recs, err := h.store.RecommendationsForIssue(ctx, issueID)
	if err != nil {
		h.logger.WithIssue(middleware.GetCorrelationID(ctx), issueID).Error("list recommendations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if recs == nil {
		recs = []model.Recommendation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"issue_id":        issueID,
		"recommendations": recs,
	})
}
