package model

import (
	"time"
)

// SummaryStatus is the processing state of a conversation summary job.
type SummaryStatus string

const (
	SummaryPending    SummaryStatus = "PENDING"
	SummaryProcessing SummaryStatus = "PROCESSING"
	SummaryCompleted  SummaryStatus = "COMPLETED"
	SummaryFailed     SummaryStatus = "FAILED"
)

// Terminal reports whether the status admits no further worker activity.
// A FAILED summary is terminal only once its retries are exhausted; that
// check lives in the store, which knows the retry count.
func (s SummaryStatus) Terminal() bool {
	return s == SummaryCompleted || s == SummaryFailed
}

// SentimentLabel is the aggregate sentiment of a conversation.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// ConversationSummary is the post-hoc summary of a closed conversation.
// At most one exists per issue; only the job pipeline mutates it.
type ConversationSummary struct {
	ID      string        `json:"id"`
	IssueID string        `json:"issue_id"`
	Status  SummaryStatus `json:"status"`

	Summary     string         `json:"summary,omitempty"`
	KeyPoints   []string       `json:"key_points,omitempty"`
	ActionItems []string       `json:"action_items,omitempty"`
	Sentiment   SentimentLabel `json:"sentiment,omitempty"`

	RetryCount int        `json:"retry_count"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SummarizeJob is the queued unit of work for one issue's summary.
type SummarizeJob struct {
	IssueID    string    `json:"issue_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
