package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ni30kp/lula-Task/internal/model"
)

// InsertRecommendations appends synthesized recommendations for an issue.
func (s *Store) InsertRecommendations(ctx context.Context, recs []model.Recommendation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range recs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recommendations (id, issue_id, type, tone, template, confidence_score, reasoning, used_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8)
		`, r.ID, r.IssueID, r.Type, r.Tone, r.Template,
			model.ClampScore(r.ConfidenceScore), r.Reasoning, r.CreatedAt); err != nil {
			return mapWriteErr("recommendation", err)
		}
	}

	return tx.Commit(ctx)
}

// MarkRecommendationUsed increments the usage counter for a recommendation
// an agent actually sent. The boolean reports whether the id existed.
func (s *Store) MarkRecommendationUsed(ctx context.Context, id string) (int, bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE recommendations SET used_count = used_count + 1 WHERE id = $1
		RETURNING used_count
	`, id)

	var count int
	err := row.Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("mark used: %w", err)
	}
	return count, true, nil
}

// RecommendationsForIssue returns stored recommendations ranked by
// confidence descending, ties broken by recency.
func (s *Store) RecommendationsForIssue(ctx context.Context, issueID string) ([]model.Recommendation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, issue_id, type, tone, template, confidence_score, reasoning, used_count, created_at
		FROM recommendations
		WHERE issue_id = $1
		ORDER BY confidence_score DESC, created_at DESC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("recommendations: %w", err)
	}
	defer rows.Close()

	var recs []model.Recommendation
	for rows.Next() {
		var r model.Recommendation
		if err := rows.Scan(&r.ID, &r.IssueID, &r.Type, &r.Tone, &r.Template,
			&r.ConfidenceScore, &r.Reasoning, &r.UsedCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recommendation: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
