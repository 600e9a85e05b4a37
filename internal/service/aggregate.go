package service

import (
	"context"
	"fmt"
	"time"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
)

// ReconcileReport summarises a ReconcileAll run
type ReconcileReport struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// AggregateService keeps child_levels in step with the star and badge ledgers
type AggregateService struct {
	levels *repository.LevelRepository
	stars  *repository.StarRepository
	badges *repository.BadgeRepository
	log    *logger.Logger
	now    func() time.Time
}

// NewAggregateService creates a new aggregate service
func NewAggregateService(levels *repository.LevelRepository, stars *repository.StarRepository, badges *repository.BadgeRepository, log *logger.Logger) *AggregateService {
	return &AggregateService{
		levels: levels,
		stars:  stars,
		badges: badges,
		log:    log,
		now:    time.Now,
	}
}

// Get returns the aggregate row for a child, or nil if the child has none yet
func (s *AggregateService) Get(ctx context.Context, childID string) (*models.ChildLevel, error) {
	return s.levels.Get(ctx, childID)
}

// Ensure returns the aggregate row for a child, creating a zeroed one if needed
func (s *AggregateService) Ensure(ctx context.Context, childID string) (*models.ChildLevel, error) {
	level, err := s.levels.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	if level != nil {
		return level, nil
	}

	if _, err := s.levels.CreateIfAbsent(ctx, newChildLevel(childID, s.now())); err != nil {
		return nil, err
	}
	level, err = s.levels.Get(ctx, childID)
	if err != nil {
		return nil, err
	}
	if level == nil {
		return nil, fmt.Errorf("child level for %s missing after create", childID)
	}
	return level, nil
}

// Totals reads the ledger-derived totals for a child
func (s *AggregateService) Totals(ctx context.Context, childID string) (models.ChildTotals, error) {
	total, maths, english, err := s.stars.Totals(ctx, childID)
	if err != nil {
		return models.ChildTotals{}, err
	}
	badges, err := s.badges.CountEarned(ctx, childID)
	if err != nil {
		return models.ChildTotals{}, err
	}
	return models.ChildTotals{
		TotalStars:   total,
		MathsStars:   maths,
		EnglishStars: english,
		TotalBadges:  badges,
	}, nil
}

// Refresh recomputes the child's totals from the ledgers and writes them.
// It returns the row as it was before and after the refresh. The write is
// compare-and-swap on the row version, so totals read before a concurrent
// award never overwrite the newer ones.
func (s *AggregateService) Refresh(ctx context.Context, childID string) (*models.ChildLevel, *models.ChildLevel, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		before, err := s.Ensure(ctx, childID)
		if err != nil {
			return nil, nil, err
		}
		totals, err := s.Totals(ctx, childID)
		if err != nil {
			return nil, nil, err
		}

		after := *before
		applyTotals(&after, totals)
		if sameTotals(before, &after) {
			return before, &after, nil
		}

		after.UpdatedAt = s.now().UTC()
		ok, err := s.levels.UpdateTotals(ctx, &after, before.Version)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			after.Version++
			return before, &after, nil
		}
		s.log.Debug("totals update lost race, retrying", "child_id", childID, "attempt", attempt+1)
	}

	return nil, nil, fmt.Errorf("failed to refresh totals for %s: %w", childID, ErrConflict)
}

// RebuildAggregate recomputes one child's aggregate and reports whether it had drifted
func (s *AggregateService) RebuildAggregate(ctx context.Context, childID string) (*models.ChildLevel, bool, error) {
	before, after, err := s.Refresh(ctx, childID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to rebuild aggregate for %s: %w", childID, err)
	}
	return after, !sameTotals(before, after), nil
}

// ReconcileAll rebuilds the aggregate of every child found in the ledgers.
// A failure for one child is logged and counted, and the run continues.
func (s *AggregateService) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	ids, err := s.levels.ListChildIDs(ctx)
	if err != nil {
		return report, err
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		_, drifted, err := s.RebuildAggregate(ctx, id)
		if err != nil {
			report.Failed++
			s.log.Error("reconcile failed", "child_id", id, "error", err)
			continue
		}
		if drifted {
			report.Repaired++
			s.log.Info("reconciled drifted aggregate", "child_id", id)
		}
	}
	return report, nil
}

func newChildLevel(childID string, now time.Time) *models.ChildLevel {
	level, title := LevelFor(0)
	return &models.ChildLevel{
		ChildID:      childID,
		CurrentLevel: level,
		CurrentTitle: title,
		MathsLevel:   level,
		EnglishLevel: level,
		UpdatedAt:    now.UTC(),
	}
}

func applyTotals(level *models.ChildLevel, totals models.ChildTotals) {
	level.TotalStars = totals.TotalStars
	level.TotalBadges = totals.TotalBadges
	level.CurrentLevel, level.CurrentTitle = LevelFor(totals.TotalStars)
	level.MathsLevel, _ = LevelFor(totals.MathsStars)
	level.EnglishLevel, _ = LevelFor(totals.EnglishStars)
}

func sameTotals(a, b *models.ChildLevel) bool {
	return a.TotalStars == b.TotalStars &&
		a.TotalBadges == b.TotalBadges &&
		a.CurrentLevel == b.CurrentLevel &&
		a.CurrentTitle == b.CurrentTitle &&
		a.MathsLevel == b.MathsLevel &&
		a.EnglishLevel == b.EnglishLevel
}
