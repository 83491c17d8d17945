// Package handler implements the HTTP API surface.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/analysis"
	"github.com/ni30kp/lula-Task/internal/errs"
	"github.com/ni30kp/lula-Task/internal/middleware"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

// IssueStore is the store surface the issue handlers need.
type IssueStore interface {
	EnsureCustomer(ctx context.Context, id, name string) error
	CreateIssue(ctx context.Context, issue *model.Issue) error
	GetIssue(ctx context.Context, id string) (*model.Issue, error)
	UpdateIssueStatus(ctx context.Context, issueID string, status model.IssueStatus, resolution string) (*model.Issue, error)
}

// IssueHandler handles issue intake and analysis endpoints.
type IssueHandler struct {
	store        IssueStore
	orchestrator *analysis.Orchestrator
	logger       *logger.Logger
}

// NewIssueHandler creates an issue handler.
func NewIssueHandler(store IssueStore, orchestrator *analysis.Orchestrator, log *logger.Logger) *IssueHandler {
	return &IssueHandler{store: store, orchestrator: orchestrator, logger: log}
}

type createIssueRequest struct {
	ID           string `json:"id,omitempty"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name,omitempty"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category,omitempty"`
}

// Create handles POST /api/v1/issues.
func (h *IssueHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createIssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateCustomerID(strings.TrimSpace(req.CustomerID)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateTitle(strings.TrimSpace(req.Title)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := middleware.ValidateDescription(strings.TrimSpace(req.Description)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.ID == "" {
		req.ID = uuid.Must(uuid.NewV7()).String()
	}

	ctx := r.Context()
	if err := h.store.EnsureCustomer(ctx, req.CustomerID, req.CustomerName); err != nil {
		h.writeStoreError(w, r, "ensure customer", err)
		return
	}

	now := time.Now().UTC()
	issue := &model.Issue{
		ID:          req.ID,
		CustomerID:  req.CustomerID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Severity:    model.SeverityNormal,
		Status:      model.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.store.CreateIssue(ctx, issue); err != nil {
		h.writeStoreError(w, r, "create issue", err)
		return
	}

	writeJSON(w, http.StatusCreated, issue)
}

type analyzeRequest struct {
	DeadlineMs       int64 `json:"deadline_ms,omitempty"`
	SameCustomerOnly bool  `json:"same_customer_only,omitempty"`
}

// Analyze handles POST /api/v1/issues/{id}/analyze.
func (h *IssueHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")

	var req analyzeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ctx := r.Context()
	issue, err := h.store.GetIssue(ctx, issueID)
	if err != nil {
		h.writeStoreError(w, r, "get issue", err)
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	result, err := h.orchestrator.Analyze(ctx, model.AnalyzeRequest{
		IssueID:          issue.ID,
		CustomerID:       issue.CustomerID,
		Title:            issue.Title,
		Description:      issue.Description,
		Category:         issue.Category,
		Deadline:         time.Duration(req.DeadlineMs) * time.Millisecond,
		SameCustomerOnly: req.SameCustomerOnly,
	})
	if err != nil {
		switch {
		case errs.IsInput(err):
			writeError(w, http.StatusBadRequest, err.Error())
		case errs.IsIntegrity(err):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			h.logger.WithIssue(middleware.GetCorrelationID(ctx), issueID).Error("analysis failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type updateStatusRequest struct {
	Status     model.IssueStatus `json:"status"`
	Resolution string            `json:"resolution,omitempty"`
}

// UpdateStatus handles PUT /api/v1/issues/{id}/status. Moving an issue
// to RESOLVED records its resolution time and refreshes the customer's
// average.
func (h *IssueHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Status {
	case model.StatusOpen, model.StatusInProgress, model.StatusResolved, model.StatusClosed:
	default:
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	issue, err := h.store.UpdateIssueStatus(r.Context(), issueID, req.Status, strings.TrimSpace(req.Resolution))
	if err != nil {
		h.writeStoreError(w, r, "update issue status", err)
		return
	}
	if issue == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}

	writeJSON(w, http.StatusOK, issue)
}

func (h *IssueHandler) writeStoreError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errs.IsIntegrity(err) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.logger.With(zap.String("correlation_id", middleware.GetCorrelationID(r.Context()))).
		Error(op+" failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
