package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ni30kp/lula-Task/internal/model"
)

// EnsureCustomer inserts a customer row if it does not exist. First-time
// customers start with zero history.
func (s *Store) EnsureCustomer(ctx context.Context, id, name string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO customers (id, name, vip, total_issues, avg_resolution_hours, created_at, updated_at)
		VALUES ($1, $2, false, 0, 0, now(), now())
		ON CONFLICT (id) DO NOTHING
	`, id, name)
	return mapWriteErr("customer", err)
}

// CreateIssue inserts a new issue and bumps the owning customer's counter.
func (s *Store) CreateIssue(ctx context.Context, issue *model.Issue) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO issues (id, customer_id, title, description, category, severity, status, confidence_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, issue.ID, issue.CustomerID, issue.Title, issue.Description, issue.Category,
		issue.Severity, issue.Status, issue.ConfidenceScore, issue.CreatedAt)
	if err != nil {
		return mapWriteErr("issue", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE customers SET total_issues = total_issues + 1, updated_at = now() WHERE id = $1
	`, issue.CustomerID)
	if err != nil {
		return mapWriteErr("customer", err)
	}

	return tx.Commit(ctx)
}

// GetIssue fetches one issue by id.
func (s *Store) GetIssue(ctx context.Context, id string) (*model.Issue, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, customer_id, title, description, category, severity, status,
		       confidence_score, resolution_hours, COALESCE(resolution, ''), created_at, updated_at
		FROM issues WHERE id = $1
	`, id)

	var issue model.Issue
	err := row.Scan(&issue.ID, &issue.CustomerID, &issue.Title, &issue.Description,
		&issue.Category, &issue.Severity, &issue.Status, &issue.ConfidenceScore,
		&issue.ResolutionHours, &issue.Resolution, &issue.CreatedAt, &issue.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &issue, nil
}

// UpdateIssueAssessment persists the pipeline's severity verdict onto the
// issue record. Degraded verdicts are written too, best effort.
func (s *Store) UpdateIssueAssessment(ctx context.Context, issueID string, severity model.Severity, confidence float64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE issues SET severity = $2, confidence_score = $3, updated_at = now()
		WHERE id = $1 AND status <> 'CLOSED'
	`, issueID, severity, model.ClampScore(confidence))
	return mapWriteErr("issue", err)
}

// UpdateIssueStatus moves an issue through its lifecycle. Resolving an
// issue stamps its resolution time in hours and folds it into the
// customer's running average. Returns nil when the issue does not exist.
func (s *Store) UpdateIssueStatus(ctx context.Context, issueID string, status model.IssueStatus, resolution string) (*model.Issue, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT customer_id, status, created_at FROM issues WHERE id = $1 FOR UPDATE
	`, issueID)

	var customerID string
	var prevStatus model.IssueStatus
	var createdAt time.Time
	err = row.Scan(&customerID, &prevStatus, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock issue: %w", err)
	}

	var resolutionHours *float64
	if status == model.StatusResolved && prevStatus != model.StatusResolved {
		hours := time.Since(createdAt).Hours()
		resolutionHours = &hours
	}

	_, err = tx.Exec(ctx, `
		UPDATE issues
		SET status = $2,
		    resolution = COALESCE(NULLIF($3, ''), resolution),
		    resolution_hours = COALESCE($4, resolution_hours),
		    updated_at = now()
		WHERE id = $1
	`, issueID, status, resolution, resolutionHours)
	if err != nil {
		return nil, mapWriteErr("issue", err)
	}

	if resolutionHours != nil {
		_, err = tx.Exec(ctx, `
			UPDATE customers
			SET avg_resolution_hours = (
			        SELECT COALESCE(AVG(resolution_hours), 0)
			        FROM issues
			        WHERE customer_id = $1 AND resolution_hours IS NOT NULL
			    ),
			    updated_at = now()
			WHERE id = $1
		`, customerID)
		if err != nil {
			return nil, mapWriteErr("customer", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetIssue(ctx, issueID)
}

// CustomerHistory aggregates a customer's track record over the last 30
// days. An unknown customer yields empty history, not an error.
func (s *Store) CustomerHistory(ctx context.Context, customerID string) (*model.CustomerHistory, error) {
	hist := &model.CustomerHistory{CustomerID: customerID}

	row := s.pool.QueryRow(ctx, `
		SELECT name, vip, total_issues, avg_resolution_hours FROM customers WHERE id = $1
	`, customerID)
	err := row.Scan(&hist.Name, &hist.VIP, &hist.TotalIssues, &hist.AvgResolutionHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return hist, nil
	}
	if err != nil {
		return nil, fmt.Errorf("customer: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, category, severity, status, created_at
		FROM issues
		WHERE customer_id = $1 AND created_at >= now() - interval '30 days'
		ORDER BY created_at DESC
		LIMIT 10
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("recent issues: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ri model.RecentIssue
		if err := rows.Scan(&ri.IssueID, &ri.Title, &ri.Category, &ri.Severity, &ri.Status, &ri.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent issue: %w", err)
		}
		if ri.Status == model.StatusResolved || ri.Status == model.StatusClosed {
			hist.ResolvedIssues++
		}
		if ri.Severity == model.SeverityHigh {
			hist.HighSeverityIssues++
		}
		hist.RecentIssues = append(hist.RecentIssues, ri)
	}
	return hist, rows.Err()
}

// AppendMessage appends a conversation message to an issue thread.
func (s *Store) AppendMessage(ctx context.Context, msg *model.ConversationMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversation_messages (id, issue_id, sender, body, sentiment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.IssueID, msg.Sender, msg.Body, msg.Sentiment, msg.CreatedAt)
	return mapWriteErr("conversation_message", err)
}

// MessagesForIssue returns the issue's messages ordered by creation time.
func (s *Store) MessagesForIssue(ctx context.Context, issueID string) ([]model.ConversationMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, issue_id, sender, body, sentiment, created_at
		FROM conversation_messages
		WHERE issue_id = $1
		ORDER BY created_at ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.ConversationMessage
	for rows.Next() {
		var m model.ConversationMessage
		if err := rows.Scan(&m.ID, &m.IssueID, &m.Sender, &m.Body, &m.Sentiment, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
