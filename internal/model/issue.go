// Package model defines data structures for the support intelligence platform.
package model

import (
	"time"
)

// Severity is the assessed urgency of an issue.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityNormal Severity = "NORMAL"
	SeverityHigh   Severity = "HIGH"
)

// Level returns the ordinal position of a severity, LOW=0 through HIGH=2.
// Unknown values map to NORMAL.
func (s Severity) Level() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityHigh:
		return 2
	default:
		return 1
	}
}

// Valid reports whether s is one of the known severity labels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityNormal, SeverityHigh:
		return true
	}
	return false
}

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

const (
	StatusOpen       IssueStatus = "OPEN"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusResolved   IssueStatus = "RESOLVED"
	StatusClosed     IssueStatus = "CLOSED"
)

// Issue is a customer support issue.
type Issue struct {
	ID          string      `json:"id"`
	CustomerID  string      `json:"customer_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Severity    Severity    `json:"severity"`
	Status      IssueStatus `json:"status"`

	// Set by the analysis pipeline; probability of the assigned severity.
	ConfidenceScore float64 `json:"confidence_score"`

	// Hours from open to resolution, set when the issue is resolved.
	ResolutionHours *float64 `json:"resolution_hours,omitempty"`

	// Short description of how the issue was resolved, reused as a
	// solution template for similar new issues.
	Resolution string `json:"resolution,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageSender tags who authored a conversation message.
type MessageSender string

const (
	SenderCustomer MessageSender = "CUSTOMER"
	SenderSupport  MessageSender = "SUPPORT"
)

// ConversationMessage is a single append-only message on an issue thread.
type ConversationMessage struct {
	ID      string        `json:"id"`
	IssueID string        `json:"issue_id"`
	Sender  MessageSender `json:"sender"`
	Body    string        `json:"body"`

	// Per-message sentiment in [-1,1], when a scorer has run.
	Sentiment *float64 `json:"sentiment,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SimilarIssueLink is a directed similarity relation between two issues.
// The link set for a source issue is replaced wholesale on each analysis
// run and never exceeds the configured top-K.
type SimilarIssueLink struct {
	SourceIssueID  string    `json:"source_issue_id"`
	SimilarIssueID string    `json:"similar_issue_id"`
	Score          float64   `json:"score"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// ClampScore clamps a confidence or similarity score to [0,1].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
