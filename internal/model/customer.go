package model

import (
	"time"
)

// Customer is an account that files issues. Customers are never deleted,
// only updated by issue lifecycle events.
type Customer struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	VIP                bool      `json:"vip"`
	TotalIssues        int       `json:"total_issues"`
	AvgResolutionHours float64   `json:"avg_resolution_hours"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CustomerHistory is the aggregate view of a customer's track record used
// by the analysis pipeline. A customer the store has never seen yields the
// zero value: a new customer with no history, not an error.
type CustomerHistory struct {
	CustomerID         string  `json:"customer_id"`
	Name               string  `json:"name"`
	VIP                bool    `json:"vip"`
	TotalIssues        int     `json:"total_issues"`
	ResolvedIssues     int     `json:"resolved_issues"`
	HighSeverityIssues int     `json:"high_severity_issues"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`

	RecentIssues []RecentIssue `json:"recent_issues,omitempty"`
}

// RecentIssue is a compact view of a customer's recent issue.
type RecentIssue struct {
	IssueID   string      `json:"issue_id"`
	Title     string      `json:"title"`
	Category  string      `json:"category"`
	Severity  Severity    `json:"severity"`
	Status    IssueStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}
