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

	"github.com/ni30kp/lula-Task/internal/errs"
	"github.com/ni30kp/lula-Task/internal/middleware"
	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
)

// MessageStore is the store surface the message handler needs.
type MessageStore interface {
	GetIssue(ctx context.Context, id string) (*model.Issue, error)
	AppendMessage(ctx context.Context, msg *model.ConversationMessage) error
}

// MessageHandler appends conversation messages to an issue thread.
type MessageHandler struct {
	store  MessageStore
	logger *logger.Logger
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(store MessageStore, log *logger.Logger) *MessageHandler {
	return &MessageHandler{store: store, logger: log}
}

type appendMessageRequest struct {
	Sender    string   `json:"sender"`
	Body      string   `json:"body"`
	Sentiment *float64 `json:"sentiment,omitempty"`
}

// Append handles POST /api/v1/issues/{id}/messages.
func (h *MessageHandler) Append(w http.ResponseWriter, r *http.Request) {
	issueID := chi.URLParam(r, "id")

	var req appendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sender := model.MessageSender(strings.ToUpper(strings.TrimSpace(req.Sender)))
	if sender != model.SenderCustomer && sender != model.SenderSupport {
		writeError(w, http.StatusBadRequest, "sender must be CUSTOMER or SUPPORT")
		return
	}
	if err := middleware.ValidateMessageBody(strings.TrimSpace(req.Body)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Sentiment != nil && (*req.Sentiment < -1 || *req.Sentiment > 1) {
		writeError(w, http.StatusBadRequest, "sentiment must be in [-1,1]")
		return
	}

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

	msg := &model.ConversationMessage{
		ID:        uuid.Must(uuid.NewV7()).String(),
		IssueID:   issueID,
		Sender:    sender,
		Body:      req.Body,
		Sentiment: req.Sentiment,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.store.AppendMessage(ctx, msg); err != nil {
		if errs.IsIntegrity(err) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.logger.WithIssue(middleware.GetCorrelationID(ctx), issueID).Error("append message failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}
