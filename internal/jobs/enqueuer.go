// Package jobs implements the asynchronous summarization pipeline: the
// idempotent enqueuer triggered by conversation-closed events, the
// summarizer that turns a transcript into a structured summary, and the
// worker pool that drains the JetStream queue.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
	"github.com/ni30kp/lula-Task/pkg/metrics"
)

// EnqueueStore is the store surface the enqueuer needs.
type EnqueueStore interface {
	CreateOrResetSummary(ctx context.Context, issueID string, maxRetries int) (bool, error)
}

// JobPublisher publishes summarization jobs to the queue.
type JobPublisher interface {
	PublishSummarizeJob(ctx context.Context, job *model.SummarizeJob) error
}

// Enqueuer reacts to conversation-closed events by scheduling a
// summarization job, at most one in flight per issue.
type Enqueuer struct {
	store      EnqueueStore
	publisher  JobPublisher
	maxRetries int
	logger     *logger.Logger
}

// NewEnqueuer creates an enqueuer.
func NewEnqueuer(store EnqueueStore, publisher JobPublisher, maxRetries int, log *logger.Logger) *Enqueuer {
	return &Enqueuer{store: store, publisher: publisher, maxRetries: maxRetries, logger: log}
}

// OnConversationClosed schedules a summarization job for the issue. The
// store row is the dedupe point: repeated close events while a job is
// pending or processing coalesce into the existing one, and a completed
// summary is never regenerated. Returns true when a new job was queued.
func (e *Enqueuer) OnConversationClosed(ctx context.Context, issueID string) (bool, error) {
	created, err := e.store.CreateOrResetSummary(ctx, issueID, e.maxRetries)
	if err != nil {
		return false, err
	}
	if !created {
		e.logger.Debug("summarization already scheduled", zap.String("issue_id", issueID))
		metrics.RecordJobTransition("coalesced")
		return false, nil
	}

	job := &model.SummarizeJob{IssueID: issueID, EnqueuedAt: time.Now().UTC()}
	if err := e.publisher.PublishSummarizeJob(ctx, job); err != nil {
		// The PENDING row stays behind; a stale-claim sweep or the next
		// close event will re-publish it.
		e.logger.Error("failed to publish summarize job", zap.String("issue_id", issueID), zap.Error(err))
		return false, err
	}

	metrics.RecordJobTransition("enqueued")
	e.logger.Info("summarize job enqueued", zap.String("issue_id", issueID))
	return true, nil
}
