package repository

import (
	"context"
	"fmt"
	"time"

	"learnquest/internal/database"
	"learnquest/internal/models"
)

// BadgeRepository handles badge definitions and earned badges
type BadgeRepository struct {
	db database.DBTX
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(db database.DBTX) *BadgeRepository {
	return &BadgeRepository{db: db}
}

const badgeColumns = "id, name, description, subject, level, required_achievement, required_value, icon"

func scanBadge(row rowScanner, badge *models.BadgeDefinition) error {
	var subject, kind string
	err := row.Scan(
		&badge.ID,
		&badge.Name,
		&badge.Description,
		&subject,
		&badge.Level,
		&kind,
		&badge.RequiredValue,
		&badge.Icon,
	)
	if err != nil {
		return err
	}
	badge.Subject = models.Subject(subject)
	badge.RequiredAchievement = models.AchievementKind(kind)
	return nil
}

// ListDefinitions returns every badge definition
func (r *BadgeRepository) ListDefinitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	query := "SELECT " + badgeColumns + " FROM badge_types ORDER BY subject, level, required_value, id"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query badge types: %w", err)
	}
	defer rows.Close()

	var badges []models.BadgeDefinition
	for rows.Next() {
		var badge models.BadgeDefinition
		if err := scanBadge(rows, &badge); err != nil {
			return nil, fmt.Errorf("failed to scan badge type: %w", err)
		}
		badges = append(badges, badge)
	}

	return badges, rows.Err()
}

// UpsertDefinition creates a badge definition or overwrites the existing one with the same ID
func (r *BadgeRepository) UpsertDefinition(ctx context.Context, badge models.BadgeDefinition) error {
	insert := r.db.GetDialect().InsertIgnoreQuery("badge_types",
		"id", "name", "description", "subject", "level", "required_achievement", "required_value", "icon")
	_, err := r.db.ExecContext(ctx, insert,
		badge.ID, badge.Name, badge.Description, string(badge.Subject),
		badge.Level, string(badge.RequiredAchievement), badge.RequiredValue, badge.Icon)
	if err != nil {
		return fmt.Errorf("failed to insert badge type %s: %w", badge.ID, err)
	}

	update := `
		UPDATE badge_types
		SET name = ?, description = ?, subject = ?, level = ?, required_achievement = ?, required_value = ?, icon = ?
		WHERE id = ?
	`
	_, err = r.db.ExecContext(ctx, update,
		badge.Name, badge.Description, string(badge.Subject), badge.Level,
		string(badge.RequiredAchievement), badge.RequiredValue, badge.Icon, badge.ID)
	if err != nil {
		return fmt.Errorf("failed to update badge type %s: %w", badge.ID, err)
	}
	return nil
}

// ListEarned returns the badges a child has earned
func (r *BadgeRepository) ListEarned(ctx context.Context, childID string) ([]models.EarnedBadge, error) {
	query := `
		SELECT id, child_id, badge_id, earned_at
		FROM earned_badges
		WHERE child_id = ?
		ORDER BY earned_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned badges: %w", err)
	}
	defer rows.Close()

	var earned []models.EarnedBadge
	for rows.Next() {
		var badge models.EarnedBadge
		if err := rows.Scan(&badge.ID, &badge.ChildID, &badge.BadgeID, &badge.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned badge: %w", err)
		}
		earned = append(earned, badge)
	}

	return earned, rows.Err()
}

// ListEarnedWithDefinitions returns a child's earned badges joined with their definitions, newest first
func (r *BadgeRepository) ListEarnedWithDefinitions(ctx context.Context, childID string) ([]models.EarnedBadgeWithDefinition, error) {
	query := `
		SELECT eb.id, eb.child_id, eb.badge_id, eb.earned_at,
		       bt.id, bt.name, bt.description, bt.subject, bt.level, bt.required_achievement, bt.required_value, bt.icon
		FROM earned_badges eb
		JOIN badge_types bt ON bt.id = eb.badge_id
		WHERE eb.child_id = ?
		ORDER BY eb.earned_at DESC, eb.id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to query earned badges: %w", err)
	}
	defer rows.Close()

	var earned []models.EarnedBadgeWithDefinition
	for rows.Next() {
		var item models.EarnedBadgeWithDefinition
		var subject, kind string
		err := rows.Scan(
			&item.ID, &item.ChildID, &item.BadgeID, &item.EarnedAt,
			&item.Badge.ID, &item.Badge.Name, &item.Badge.Description, &subject,
			&item.Badge.Level, &kind, &item.Badge.RequiredValue, &item.Badge.Icon,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan earned badge: %w", err)
		}
		item.Badge.Subject = models.Subject(subject)
		item.Badge.RequiredAchievement = models.AchievementKind(kind)
		earned = append(earned, item)
	}

	return earned, rows.Err()
}

// Award records that a child earned a badge. It returns false without error
// when the child already holds the badge.
func (r *BadgeRepository) Award(ctx context.Context, childID, badgeID string, earnedAt time.Time) (bool, error) {
	query := r.db.GetDialect().InsertIgnoreQuery("earned_badges", "child_id", "badge_id", "earned_at")
	result, err := r.db.ExecContext(ctx, query, childID, badgeID, earnedAt)
	if err != nil {
		return false, fmt.Errorf("failed to award badge %s: %w", badgeID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// CountEarned returns how many badges a child holds
func (r *BadgeRepository) CountEarned(ctx context.Context, childID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM earned_badges WHERE child_id = ?", childID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count earned badges: %w", err)
	}
	return count, nil
}
