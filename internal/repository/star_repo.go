package repository

import (
	"context"
	"fmt"

	"learnquest/internal/database"
	"learnquest/internal/models"
)

// StarRepository handles the star ledger
type StarRepository struct {
	db database.DBTX
}

// NewStarRepository creates a new star repository
func NewStarRepository(db database.DBTX) *StarRepository {
	return &StarRepository{db: db}
}

// Create inserts a star record and sets its ID
func (r *StarRepository) Create(ctx context.Context, star *models.StarRecord) error {
	query := `
		INSERT INTO stars (child_id, activity_id, amount, subject, reason, is_perfect, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		star.ChildID,
		star.ActivityID,
		star.Amount,
		string(star.Subject),
		star.Reason,
		star.IsPerfect,
		star.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert star record: %w", err)
	}
	star.ID = id
	return nil
}

// ListByChild returns a child's star records, newest first. A limit <= 0 returns all of them.
func (r *StarRepository) ListByChild(ctx context.Context, childID string, limit int) ([]models.StarRecord, error) {
	query := `
		SELECT id, child_id, activity_id, amount, subject, reason, is_perfect, created_at
		FROM stars
		WHERE child_id = ?
		ORDER BY created_at DESC, id DESC
	`
	args := []interface{}{childID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stars: %w", err)
	}
	defer rows.Close()

	var stars []models.StarRecord
	for rows.Next() {
		var star models.StarRecord
		var subject string
		err := rows.Scan(
			&star.ID,
			&star.ChildID,
			&star.ActivityID,
			&star.Amount,
			&subject,
			&star.Reason,
			&star.IsPerfect,
			&star.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan star record: %w", err)
		}
		star.Subject = models.Subject(subject)
		stars = append(stars, star)
	}

	return stars, rows.Err()
}

// Totals sums a child's stars overall and per subject
func (r *StarRepository) Totals(ctx context.Context, childID string) (total, maths, english int, err error) {
	query := `
		SELECT
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(CASE WHEN subject = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN subject = ? THEN amount ELSE 0 END), 0)
		FROM stars
		WHERE child_id = ?
	`
	err = r.db.QueryRowContext(ctx, query, string(models.SubjectMaths), string(models.SubjectEnglish), childID).Scan(&total, &maths, &english)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to sum stars: %w", err)
	}
	return total, maths, english, nil
}
