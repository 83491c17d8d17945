package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ni30kp/lula-Task/internal/model"
)

// CreateOrResetSummary is the idempotent enqueue primitive. It creates a
// PENDING summary row for the issue when none exists, re-arms a terminal
// FAILED row (retries exhausted) back to PENDING, and coalesces in every
// other case: a non-terminal row means a job is already in flight, a
// COMPLETED row means the summary already exists. Returns true when a new
// job should be published.
func (s *Store) CreateOrResetSummary(ctx context.Context, issueID string, maxRetries int) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var status model.SummaryStatus
	var retryCount int
	err = tx.QueryRow(ctx, `
		SELECT status, retry_count FROM conversation_summaries
		WHERE issue_id = $1 FOR UPDATE
	`, issueID).Scan(&status, &retryCount)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_summaries (id, issue_id, status, retry_count, created_at, updated_at)
			VALUES ($1, $2, 'PENDING', 0, now(), now())
		`, uuid.Must(uuid.NewV7()).String(), issueID)
		if err != nil {
			return false, mapWriteErr("conversation_summary", err)
		}
	case err != nil:
		return false, fmt.Errorf("select summary: %w", err)
	case status == model.SummaryFailed && retryCount >= maxRetries:
		// Terminal failure: a fresh close event re-arms the job.
		_, err = tx.Exec(ctx, `
			UPDATE conversation_summaries
			SET status = 'PENDING', retry_count = 0, claimed_at = NULL, updated_at = now()
			WHERE issue_id = $1
		`, issueID)
		if err != nil {
			return false, fmt.Errorf("reset summary: %w", err)
		}
	default:
		// In flight or already completed: coalesce.
		return false, tx.Commit(ctx)
	}

	return true, tx.Commit(ctx)
}

// ClaimSummary transitions a PENDING job to PROCESSING with a claim
// timestamp. A PROCESSING row whose claim is older than the lease is
// treated as abandoned and may be re-claimed. Returns false when nothing
// was claimable.
func (s *Store) ClaimSummary(ctx context.Context, issueID string, lease time.Duration) (*model.ConversationSummary, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE conversation_summaries
		SET status = 'PROCESSING', claimed_at = now(), updated_at = now()
		WHERE issue_id = $1
		  AND (status = 'PENDING'
		       OR (status = 'PROCESSING' AND claimed_at < now() - $2::interval))
		RETURNING id, issue_id, status, retry_count, claimed_at, created_at, updated_at
	`, issueID, lease)

	var sum model.ConversationSummary
	err := row.Scan(&sum.ID, &sum.IssueID, &sum.Status, &sum.RetryCount,
		&sum.ClaimedAt, &sum.CreatedAt, &sum.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("claim summary: %w", err)
	}
	return &sum, true, nil
}

// CompleteSummary persists the generated summary and transitions the job
// to COMPLETED. The conditional update matches on both status and the
// claim timestamp this worker obtained, so a worker whose lease was
// stolen and re-claimed cannot overwrite the new claimant's row.
func (s *Store) CompleteSummary(ctx context.Context, issueID string, claimedAt time.Time, summary string, keyPoints, actionItems []string, sentiment model.SentimentLabel) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversation_summaries
		SET status = 'COMPLETED', summary = $3, key_points = $4, action_items = $5,
		    sentiment = $6, updated_at = now()
		WHERE issue_id = $1 AND status = 'PROCESSING' AND claimed_at = $2
	`, issueID, claimedAt, summary, keyPoints, actionItems, sentiment)
	if err != nil {
		return false, fmt.Errorf("complete summary: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// FailSummary records a failed attempt: retry count goes up by exactly one
// and the job returns to PENDING while retries remain, otherwise it parks
// as terminal FAILED. Matching on the claim timestamp keeps a worker with
// a stolen lease from charging its failure to the new claimant. Returns
// the new retry count and whether the job is now terminal.
func (s *Store) FailSummary(ctx context.Context, issueID string, claimedAt time.Time, maxRetries int) (int, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE conversation_summaries
		SET retry_count = retry_count + 1,
		    status = CASE WHEN retry_count + 1 >= $3 THEN 'FAILED' ELSE 'PENDING' END,
		    claimed_at = NULL,
		    updated_at = now()
		WHERE issue_id = $1 AND status = 'PROCESSING' AND claimed_at = $2
		RETURNING retry_count, status
	`, issueID, claimedAt, maxRetries)

	var retryCount int
	var status model.SummaryStatus
	err := row.Scan(&retryCount, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("fail summary: %w", err)
	}
	return retryCount, status == model.SummaryFailed, nil
}

// GetSummary answers the summary status query.
func (s *Store) GetSummary(ctx context.Context, issueID string) (*model.ConversationSummary, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, issue_id, status, COALESCE(summary, ''), key_points, action_items,
		       COALESCE(sentiment, ''), retry_count, claimed_at, created_at, updated_at
		FROM conversation_summaries WHERE issue_id = $1
	`, issueID)

	var sum model.ConversationSummary
	err := row.Scan(&sum.ID, &sum.IssueID, &sum.Status, &sum.Summary,
		&sum.KeyPoints, &sum.ActionItems, &sum.Sentiment, &sum.RetryCount,
		&sum.ClaimedAt, &sum.CreatedAt, &sum.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get summary: %w", err)
	}
	return &sum, nil
}
