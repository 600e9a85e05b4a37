package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learnquest/internal/database"
	"learnquest/internal/models"
)

// LevelRepository handles the per-child aggregate row in child_levels.
// Streak writes are compare-and-swap on the version column.
type LevelRepository struct {
	db database.DBTX
}

// NewLevelRepository creates a new level repository
func NewLevelRepository(db database.DBTX) *LevelRepository {
	return &LevelRepository{db: db}
}

// Get returns the aggregate for a child, or nil if the child has none yet
func (r *LevelRepository) Get(ctx context.Context, childID string) (*models.ChildLevel, error) {
	query := `
		SELECT child_id, current_level, current_title, total_stars, total_badges,
		       maths_level, english_level, streak_days, longest_streak,
		       last_activity_date, version, updated_at
		FROM child_levels
		WHERE child_id = ?
	`
	level := &models.ChildLevel{}
	var lastActivity sql.NullString
	err := r.db.QueryRowContext(ctx, query, childID).Scan(
		&level.ChildID,
		&level.CurrentLevel,
		&level.CurrentTitle,
		&level.TotalStars,
		&level.TotalBadges,
		&level.MathsLevel,
		&level.EnglishLevel,
		&level.StreakDays,
		&level.LongestStreak,
		&lastActivity,
		&level.Version,
		&level.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child level: %w", err)
	}
	if lastActivity.Valid {
		level.LastActivityDate = lastActivity.String
	}
	return level, nil
}

// CreateIfAbsent inserts the aggregate row. It returns false when a row for
// the child already exists, in which case nothing is written.
func (r *LevelRepository) CreateIfAbsent(ctx context.Context, level *models.ChildLevel) (bool, error) {
	query := r.db.GetDialect().InsertIgnoreQuery("child_levels",
		"child_id", "current_level", "current_title", "total_stars", "total_badges",
		"maths_level", "english_level", "streak_days", "longest_streak",
		"last_activity_date", "version", "updated_at")

	var lastActivity interface{}
	if level.LastActivityDate != "" {
		lastActivity = level.LastActivityDate
	}
	if level.Version == 0 {
		level.Version = 1
	}

	result, err := r.db.ExecContext(ctx, query,
		level.ChildID, level.CurrentLevel, level.CurrentTitle, level.TotalStars, level.TotalBadges,
		level.MathsLevel, level.EnglishLevel, level.StreakDays, level.LongestStreak,
		lastActivity, level.Version, level.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create child level: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateStreak writes streak fields only if the row is still at expectedVersion.
// It returns false when another writer got there first.
func (r *LevelRepository) UpdateStreak(ctx context.Context, childID string, expectedVersion int64, streakDays, longestStreak int, lastActivityDate string, updatedAt time.Time) (bool, error) {
	query := `
		UPDATE child_levels
		SET streak_days = ?, longest_streak = ?, last_activity_date = ?, version = version + 1, updated_at = ?
		WHERE child_id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query, streakDays, longestStreak, lastActivityDate, updatedAt, childID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to update streak: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateTotals writes the ledger-derived columns only if the row is still at
// expectedVersion. It returns false when another writer got there first.
func (r *LevelRepository) UpdateTotals(ctx context.Context, level *models.ChildLevel, expectedVersion int64) (bool, error) {
	query := `
		UPDATE child_levels
		SET current_level = ?, current_title = ?, total_stars = ?, total_badges = ?,
		    maths_level = ?, english_level = ?, version = version + 1, updated_at = ?
		WHERE child_id = ? AND version = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		level.CurrentLevel, level.CurrentTitle, level.TotalStars, level.TotalBadges,
		level.MathsLevel, level.EnglishLevel, level.UpdatedAt, level.ChildID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to update child level totals: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ListChildIDs returns every child that appears in the aggregate or the ledgers
func (r *LevelRepository) ListChildIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT child_id FROM child_levels
		UNION
		SELECT child_id FROM stars
		UNION
		SELECT child_id FROM earned_badges
		ORDER BY child_id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list child ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan child id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
