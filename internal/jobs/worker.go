package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ni30kp/lula-Task/internal/model"
	"github.com/ni30kp/lula-Task/pkg/logger"
	"github.com/ni30kp/lula-Task/pkg/metrics"
)

// WorkerStore is the store surface the worker pool needs. Complete and
// fail both carry the claim timestamp so a worker whose lease was stolen
// cannot touch the new claimant's row.
type WorkerStore interface {
	ClaimSummary(ctx context.Context, issueID string, lease time.Duration) (*model.ConversationSummary, bool, error)
	CompleteSummary(ctx context.Context, issueID string, claimedAt time.Time, summary string, keyPoints, actionItems []string, sentiment model.SentimentLabel) (bool, error)
	FailSummary(ctx context.Context, issueID string, claimedAt time.Time, maxRetries int) (int, bool, error)
	MessagesForIssue(ctx context.Context, issueID string) ([]model.ConversationMessage, error)
}

// Notifier announces finished summaries on the side channel.
type Notifier interface {
	PublishSummaryCompleted(issueID string) error
}

// PoolConfig tunes the worker pool.
type PoolConfig struct {
	Workers    int
	MaxRetries int

	// ClaimLease bounds how long a PROCESSING claim is honored before
	// another worker may steal the job.
	ClaimLease time.Duration

	// JobTimeout bounds one summarization attempt.
	JobTimeout time.Duration

	// BackoffBase and BackoffMax shape the retry delay: base doubled
	// per prior attempt, capped at max.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// jobMsg is the slice of jetstream.Msg the pool touches, split out so
// tests can feed synthetic messages.
type jobMsg interface {
	Data() []byte
	Ack() error
	NakWithDelay(delay time.Duration) error
	Term() error
}

// Pool consumes summarization jobs from the durable JetStream consumer
// and drives each through the claim/process/complete state machine.
type Pool struct {
	store      WorkerStore
	summarizer *Summarizer
	notifier   Notifier
	cfg        PoolConfig
	logger     *logger.Logger
}

// NewPool creates a worker pool.
func NewPool(store WorkerStore, summarizer *Summarizer, notifier Notifier, cfg PoolConfig, log *logger.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Minute
	}
	return &Pool{store: store, summarizer: summarizer, notifier: notifier, cfg: cfg, logger: log}
}

// Run fetches from the consumer with cfg.Workers concurrent loops until
// the context is canceled.
func (p *Pool) Run(ctx context.Context, consumer jetstream.Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		worker := i
		g.Go(func() error {
			p.logger.Info("summarize worker started", zap.Int("worker", worker))
			return p.fetchLoop(ctx, consumer)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) fetchLoop(ctx context.Context, consumer jetstream.Consumer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if errors.Is(err, jetstream.ErrNoMessages) {
				continue
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for msg := range batch.Messages() {
			p.Process(ctx, msg)
		}
	}
}

// Process drives one queued message through the job state machine. All
// outcomes are absorbed here; the message itself carries the verdict
// back to JetStream (ack, delayed nak, or terminate).
func (p *Pool) Process(ctx context.Context, msg jobMsg) {
	var job model.SummarizeJob
	if err := json.Unmarshal(msg.Data(), &job); err != nil || job.IssueID == "" {
		p.logger.Error("malformed summarize job, terminating", zap.Error(err))
		_ = msg.Term()
		return
	}

	log := p.logger.With(zap.String("issue_id", job.IssueID))

	claimed, ok, err := p.store.ClaimSummary(ctx, job.IssueID, p.cfg.ClaimLease)
	if err != nil {
		log.Warn("claim failed, will retry", zap.Error(err))
		_ = msg.NakWithDelay(p.cfg.BackoffBase)
		return
	}
	if !ok {
		// Another worker holds the claim, or the summary is already
		// terminal. Either way this delivery is done.
		log.Debug("job not claimable, acking")
		_ = msg.Ack()
		return
	}
	metrics.RecordJobTransition("claimed")

	var claimedAt time.Time
	if claimed.ClaimedAt != nil {
		claimedAt = *claimed.ClaimedAt
	}

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	out, err := p.process(jobCtx, job.IssueID)
	cancel()
	if err != nil {
		p.fail(ctx, msg, log, job.IssueID, claimedAt, claimed.RetryCount, err)
		return
	}

	done, err := p.store.CompleteSummary(ctx, job.IssueID, claimedAt, out.Summary, out.KeyPoints, out.ActionItems, out.Sentiment)
	if err != nil {
		p.fail(ctx, msg, log, job.IssueID, claimedAt, claimed.RetryCount, err)
		return
	}
	if !done {
		// Lease was stolen mid-flight; the stealing worker owns the
		// outcome now.
		log.Warn("claim lost before completion, acking")
		_ = msg.Ack()
		return
	}

	metrics.RecordJobTransition("completed")
	metrics.SummaryJobDuration.Observe(time.Since(start).Seconds())
	if err := p.notifier.PublishSummaryCompleted(job.IssueID); err != nil {
		log.Warn("summary completed notification failed", zap.Error(err))
	}
	log.Info("summary completed",
		zap.String("sentiment", string(out.Sentiment)),
		zap.Duration("took", time.Since(start)))
	_ = msg.Ack()
}

func (p *Pool) process(ctx context.Context, issueID string) (*SummaryOutput, error) {
	messages, err := p.store.MessagesForIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return p.summarizer.Summarize(ctx, issueID, messages)
}

func (p *Pool) fail(ctx context.Context, msg jobMsg, log *logger.Logger, issueID string, claimedAt time.Time, priorRetries int, cause error) {
	retryCount, terminal, err := p.store.FailSummary(ctx, issueID, claimedAt, p.cfg.MaxRetries)
	if err != nil {
		log.Error("failed to record job failure", zap.Error(err), zap.NamedError("cause", cause))
		_ = msg.NakWithDelay(p.backoff(priorRetries))
		return
	}

	if terminal {
		metrics.RecordJobTransition("exhausted")
		log.Error("summarize job failed permanently",
			zap.Int("retries", retryCount), zap.Error(cause))
		_ = msg.Term()
		return
	}

	delay := p.backoff(retryCount)
	metrics.RecordJobTransition("retried")
	log.Warn("summarize job failed, scheduling retry",
		zap.Int("retry", retryCount), zap.Duration("delay", delay), zap.Error(cause))
	_ = msg.NakWithDelay(delay)
}

// backoff returns the delay before the next attempt: base doubled per
// completed retry, capped.
func (p *Pool) backoff(retries int) time.Duration {
	delay := p.cfg.BackoffBase
	for i := 0; i < retries && delay < p.cfg.BackoffMax; i++ {
		delay *= 2
	}
	if delay > p.cfg.BackoffMax {
		delay = p.cfg.BackoffMax
	}
	return delay
}
