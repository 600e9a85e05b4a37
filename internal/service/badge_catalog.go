package service

import (
	"context"
	"fmt"
	"time"

	"learnquest/internal/caching"
	"learnquest/internal/models"
	"learnquest/internal/repository"
)

const (
	badgeCatalogKey = "badge_types:all"
	badgeCatalogTTL = 5 * time.Minute
)

// BadgeCatalog serves badge definitions through the cache
type BadgeCatalog struct {
	badges *repository.BadgeRepository
	cache  caching.Cache
}

// NewBadgeCatalog creates a catalog. cache may be nil.
func NewBadgeCatalog(badges *repository.BadgeRepository, cache caching.Cache) *BadgeCatalog {
	return &BadgeCatalog{badges: badges, cache: cache}
}

// Definitions returns every badge definition
func (c *BadgeCatalog) Definitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	return caching.UseCache(ctx, c.cache, badgeCatalogKey, badgeCatalogTTL, func() ([]models.BadgeDefinition, error) {
		return c.badges.ListDefinitions(ctx)
	})
}

// Seed upserts the given definitions and drops the cached catalog
func (c *BadgeCatalog) Seed(ctx context.Context, defs []models.BadgeDefinition) error {
	for _, def := range defs {
		if def.Level < 1 || def.Level > 3 {
			return fmt.Errorf("badge %s has level %d: %w", def.ID, def.Level, ErrInvalidInput)
		}
		if err := c.badges.UpsertDefinition(ctx, def); err != nil {
			return err
		}
	}
	return c.Invalidate(ctx)
}

// Invalidate drops the cached catalog
func (c *BadgeCatalog) Invalidate(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.Delete(ctx, badgeCatalogKey); err != nil && !caching.IsMiss(err) {
		return fmt.Errorf("failed to invalidate badge catalog: %w", err)
	}
	return nil
}

// DefaultBadges is the built-in catalog loaded by `questctl seed-badges`
func DefaultBadges() []models.BadgeDefinition {
	tiered := func(id, name, desc string, subject models.Subject, kind models.AchievementKind, icon string, values [3]int) []models.BadgeDefinition {
		out := make([]models.BadgeDefinition, 0, 3)
		for i, v := range values {
			out = append(out, models.BadgeDefinition{
				ID:                  fmt.Sprintf("%s-%d", id, i+1),
				Name:                fmt.Sprintf("%s %s", name, []string{"Bronze", "Silver", "Gold"}[i]),
				Description:         fmt.Sprintf(desc, v),
				Subject:             subject,
				Level:               i + 1,
				RequiredAchievement: kind,
				RequiredValue:       v,
				Icon:                icon,
			})
		}
		return out
	}

	defs := []models.BadgeDefinition{{
		ID:                  "first-steps",
		Name:                "First Steps",
		Description:         "Complete your first activity",
		Subject:             models.SubjectGeneral,
		Level:               1,
		RequiredAchievement: models.AchievementActivitiesCompleted,
		RequiredValue:       1,
		Icon:                "👣",
	}}
	defs = append(defs, tiered("busy-learner", "Busy Learner", "Complete %d activities", models.SubjectGeneral, models.AchievementActivitiesCompleted, "📚", [3]int{10, 25, 50})...)
	defs = append(defs, tiered("star-collector", "Star Collector", "Collect %d stars", models.SubjectGeneral, models.AchievementTotalStars, "⭐", [3]int{50, 150, 300})...)
	defs = append(defs, tiered("on-fire", "On Fire", "Learn %d days in a row", models.SubjectGeneral, models.AchievementStreakDays, "🔥", [3]int{3, 7, 30})...)
	defs = append(defs, tiered("perfectionist", "Perfectionist", "Score 100%% on %d activities", models.SubjectGeneral, models.AchievementPerfectScore, "💯", [3]int{1, 5, 10})...)
	defs = append(defs, tiered("number-ninja", "Number Ninja", "Complete %d maths activities", models.SubjectMaths, models.AchievementSubjectActivities, "🔢", [3]int{5, 15, 30})...)
	defs = append(defs, tiered("word-wizard", "Word Wizard", "Complete %d English activities", models.SubjectEnglish, models.AchievementSubjectActivities, "📝", [3]int{5, 15, 30})...)
	return defs
}
