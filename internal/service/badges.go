package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
)

// BadgeStats are the figures badge requirements are tested against
type BadgeStats struct {
	TotalStars        int
	Activities        int
	StreakDays        int
	PerfectScores     int
	SubjectActivities map[models.Subject]int
}

// NewBadgeStats derives stats from the aggregate row (nil if absent) and the star ledger
func NewBadgeStats(level *models.ChildLevel, stars []models.StarRecord) BadgeStats {
	stats := BadgeStats{
		Activities:        len(stars),
		SubjectActivities: make(map[models.Subject]int),
	}
	if level != nil {
		stats.TotalStars = level.TotalStars
		stats.StreakDays = level.StreakDays
	}
	for _, s := range stars {
		if s.IsPerfect {
			stats.PerfectScores++
		}
		stats.SubjectActivities[s.Subject]++
	}
	return stats
}

// Qualifies reports whether stats meet a badge's requirement.
// Unknown achievement kinds never qualify.
func Qualifies(def models.BadgeDefinition, stats BadgeStats) bool {
	switch def.RequiredAchievement {
	case models.AchievementTotalStars:
		return stats.TotalStars >= def.RequiredValue
	case models.AchievementActivitiesCompleted:
		return stats.Activities >= def.RequiredValue
	case models.AchievementStreakDays:
		return stats.StreakDays >= def.RequiredValue
	case models.AchievementPerfectScore:
		return stats.PerfectScores >= def.RequiredValue
	case models.AchievementSubjectActivities:
		if !def.Subject.IsActivitySubject() {
			return false
		}
		return stats.SubjectActivities[def.Subject] >= def.RequiredValue
	default:
		return false
	}
}

// BadgeEvaluator awards any badges a child newly qualifies for
type BadgeEvaluator struct {
	catalog    *BadgeCatalog
	badges     *repository.BadgeRepository
	stars      *repository.StarRepository
	aggregates *AggregateService
	log        *logger.Logger
	now        func() time.Time
}

// NewBadgeEvaluator creates a new badge evaluator
func NewBadgeEvaluator(catalog *BadgeCatalog, badges *repository.BadgeRepository, stars *repository.StarRepository, aggregates *AggregateService, log *logger.Logger) *BadgeEvaluator {
	return &BadgeEvaluator{
		catalog:    catalog,
		badges:     badges,
		stars:      stars,
		aggregates: aggregates,
		log:        log,
		now:        time.Now,
	}
}

// EvaluateBadges tests every unearned badge and awards the ones that pass.
// A failed award does not stop the others; all failures are joined into the returned error.
func (e *BadgeEvaluator) EvaluateBadges(ctx context.Context, childID string) ([]models.Event, error) {
	defs, err := e.catalog.Definitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load badge catalog: %w", err)
	}
	earned, err := e.badges.ListEarned(ctx, childID)
	if err != nil {
		return nil, err
	}
	level, err := e.aggregates.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	stars, err := e.stars.ListByChild(ctx, childID, 0)
	if err != nil {
		return nil, err
	}

	held := make(map[string]struct{}, len(earned))
	for _, b := range earned {
		held[b.BadgeID] = struct{}{}
	}
	stats := NewBadgeStats(level, stars)

	var (
		events []models.Event
		errs   []error
	)
	now := e.now().UTC()
	for _, def := range defs {
		if _, ok := held[def.ID]; ok {
			continue
		}
		if !Qualifies(def, stats) {
			continue
		}

		inserted, err := e.badges.Award(ctx, childID, def.ID, now)
		if err != nil {
			e.log.Warn("badge award failed", "child_id", childID, "badge_id", def.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		if !inserted {
			continue
		}

		badge := def
		events = append(events, models.Event{
			Kind:       models.EventBadgeEarned,
			ChildID:    childID,
			Badge:      &badge,
			OccurredAt: now,
		})
	}

	if len(events) > 0 {
		if _, _, err := e.aggregates.Refresh(ctx, childID); err != nil {
			e.log.Warn("badge total refresh failed", "child_id", childID, "error", err)
		}
	}
	return events, errors.Join(errs...)
}
