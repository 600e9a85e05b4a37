package repository

import (
	"context"
	"fmt"

	"learnquest/internal/database"
	"learnquest/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ActivityRepository handles the append-only activity result log
type ActivityRepository struct {
	db database.DBTX
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db database.DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create inserts an activity result and sets its ID
func (r *ActivityRepository) Create(ctx context.Context, result *models.ActivityResult) error {
	query := `
		INSERT INTO activity_results (child_id, user_id, activity_id, subject, score, time_taken_seconds, topic, difficulty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		result.ChildID,
		result.UserID,
		result.ActivityID,
		string(result.Subject),
		result.Score,
		result.TimeTakenSeconds,
		result.Topic,
		string(result.Difficulty),
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity result: %w", err)
	}
	result.ID = id
	return nil
}

// ListByChild returns a child's most recent activity results
func (r *ActivityRepository) ListByChild(ctx context.Context, childID string, limit int) ([]models.ActivityResult, error) {
	query := `
		SELECT id, child_id, user_id, activity_id, subject, score, time_taken_seconds, topic, difficulty, created_at
		FROM activity_results
		WHERE child_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, childID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity results: %w", err)
	}
	defer rows.Close()

	var results []models.ActivityResult
	for rows.Next() {
		var result models.ActivityResult
		var subject, difficulty string
		err := rows.Scan(
			&result.ID,
			&result.ChildID,
			&result.UserID,
			&result.ActivityID,
			&subject,
			&result.Score,
			&result.TimeTakenSeconds,
			&result.Topic,
			&difficulty,
			&result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity result: %w", err)
		}
		result.Subject = models.Subject(subject)
		result.Difficulty = models.Difficulty(difficulty)
		results = append(results, result)
	}

	return results, rows.Err()
}

// SubjectSummaries returns per-subject activity counts and average scores for a child
func (r *ActivityRepository) SubjectSummaries(ctx context.Context, childID string) ([]models.SubjectSummary, error) {
	query := `
		SELECT subject, COUNT(*), COALESCE(AVG(score), 0)
		FROM activity_results
		WHERE child_id = ?
		GROUP BY subject
		ORDER BY subject
	`
	rows, err := r.db.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subject summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.SubjectSummary
	for rows.Next() {
		var summary models.SubjectSummary
		var subject string
		if err := rows.Scan(&subject, &summary.Activities, &summary.AverageScore); err != nil {
			return nil, fmt.Errorf("failed to scan subject summary: %w", err)
		}
		summary.Subject = models.Subject(subject)
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}
