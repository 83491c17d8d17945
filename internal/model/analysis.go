package model

import (
	"time"
)

// Subsystem names the fan-out branches of the analysis pipeline, used to
// report which branches degraded.
type Subsystem string

const (
	SubsystemHistory     Subsystem = "history"
	SubsystemSeverity    Subsystem = "severity"
	SubsystemSimilarity  Subsystem = "similarity"
	SubsystemPersistence Subsystem = "persistence"
)

// AnalyzeRequest is the input to a synchronous issue analysis.
type AnalyzeRequest struct {
	IssueID     string `json:"issue_id"`
	CustomerID  string `json:"customer_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`

	// Optional override of the overall wall-clock budget. Zero means the
	// configured default; values above the configured maximum are capped.
	Deadline time.Duration `json:"-"`

	// Restrict the similarity candidate set to this customer's own issues.
	SameCustomerOnly bool `json:"same_customer_only,omitempty"`
}

// SimilarIssue is one ranked similarity match.
type SimilarIssue struct {
	IssueID    string      `json:"issue_id"`
	Title      string      `json:"title"`
	Score      float64     `json:"score"`
	Reason     string      `json:"reason"`
	Status     IssueStatus `json:"status"`
	Resolution string      `json:"resolution,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}

// SeverityAssessment is the classifier output.
type SeverityAssessment struct {
	Severity   Severity `json:"severity"`
	Confidence float64  `json:"confidence"`
}

// AnalysisResult is the response of the deadline orchestrator. When any
// fan-out branch timed out or failed, Degraded is true and DegradedParts
// names the branches that were substituted with fallbacks.
type AnalysisResult struct {
	IssueID         string           `json:"issue_id"`
	Severity        Severity         `json:"severity"`
	ConfidenceScore float64          `json:"confidence_score"`
	SimilarIssues   []SimilarIssue   `json:"similar_issues"`
	Recommendations []Recommendation `json:"recommendations"`
	CustomerHistory *CustomerHistory `json:"customer_history,omitempty"`
	Degraded        bool             `json:"degraded"`
	DegradedParts   []Subsystem      `json:"degraded_parts,omitempty"`
	ElapsedMs       int64            `json:"elapsed_ms"`
}
