package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/ni30kp/lula-Task/internal/model"
)

const (
	// StreamName is the name of the summarization jobs stream.
	StreamName = "SUPPORT_JOBS"

	// SubjectPrefix is the prefix for all job subjects.
	SubjectPrefix = "support.jobs"

	// ConsumerName is the durable consumer shared by the worker pool.
	ConsumerName = "summarize-workers"

	// SummaryCompletedSubject is the side channel notified when a
	// summary finishes.
	SummaryCompletedSubject = "support.events.summary.completed"
)

// StreamManager handles JetStream stream operations for the job pipeline.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the jobs stream exists with proper configuration.
// WorkQueue retention drops a message once a worker acks it.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Description: "Conversation summarization jobs",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// SummarizeSubject returns the subject for one issue's summarization job.
func SummarizeSubject(issueID string) string {
	return fmt.Sprintf("%s.summarize.%s", SubjectPrefix, issueID)
}

// PublishSummarizeJob publishes a summarization job to JetStream.
func (m *StreamManager) PublishSummarizeJob(ctx context.Context, job *model.SummarizeJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if _, err := m.client.JetStream().Publish(ctx, SummarizeSubject(job.IssueID), data); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}
	return nil
}

// SummarizeConsumer creates or updates the durable consumer the worker
// pool fetches from. AckWait is the transport-level lease: a worker that
// dies mid-job gets its message redelivered after AckWait.
func (m *StreamManager) SummarizeConsumer(ctx context.Context, ackWait time.Duration, maxDeliver int) (jetstream.Consumer, error) {
	consumer, err := m.client.JetStream().CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       ConsumerName,
		FilterSubject: fmt.Sprintf("%s.summarize.>", SubjectPrefix),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return consumer, nil
}

// PublishSummaryCompleted notifies the side channel that an issue's
// summary is ready. Core NATS, fire and forget.
func (m *StreamManager) PublishSummaryCompleted(issueID string) error {
	data, err := json.Marshal(map[string]string{"issue_id": issueID})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return m.client.Conn().Publish(SummaryCompletedSubject, data)
}
