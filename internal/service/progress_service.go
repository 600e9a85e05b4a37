package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"learnquest/internal/models"
	"learnquest/internal/repository"
)

const recentStarsLimit = 20

// Progress is the dashboard view of one child
type Progress struct {
	Level       *models.ChildLevel                 `json:"level"`
	Badges      []models.EarnedBadgeWithDefinition `json:"badges"`
	RecentStars []models.StarRecord                `json:"recent_stars"`
	Subjects    []models.SubjectSummary            `json:"subjects"`
}

// ProgressService answers read-only progress queries
type ProgressService struct {
	levels     *repository.LevelRepository
	badges     *repository.BadgeRepository
	stars      *repository.StarRepository
	activities *repository.ActivityRepository
}

// NewProgressService creates a new progress service
func NewProgressService(levels *repository.LevelRepository, badges *repository.BadgeRepository, stars *repository.StarRepository, activities *repository.ActivityRepository) *ProgressService {
	return &ProgressService{
		levels:     levels,
		badges:     badges,
		stars:      stars,
		activities: activities,
	}
}

// GetProgress loads the aggregate, badges, recent stars and subject summaries in parallel.
// A child with no activity gets a level-one aggregate that is not persisted.
func (s *ProgressService) GetProgress(ctx context.Context, childID string) (*Progress, error) {
	var p Progress
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		level, err := s.levels.Get(ctx, childID)
		if err != nil {
			return err
		}
		if level == nil {
			level = newChildLevel(childID, time.Now())
			level.Version = 0
		}
		p.Level = level
		return nil
	})
	g.Go(func() error {
		badges, err := s.badges.ListEarnedWithDefinitions(ctx, childID)
		p.Badges = badges
		return err
	})
	g.Go(func() error {
		stars, err := s.stars.ListByChild(ctx, childID, recentStarsLimit)
		p.RecentStars = stars
		return err
	})
	g.Go(func() error {
		subjects, err := s.activities.SubjectSummaries(ctx, childID)
		p.Subjects = subjects
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if p.Badges == nil {
		p.Badges = []models.EarnedBadgeWithDefinition{}
	}
	if p.RecentStars == nil {
		p.RecentStars = []models.StarRecord{}
	}
	if p.Subjects == nil {
		p.Subjects = []models.SubjectSummary{}
	}
	return &p, nil
}

// ListStars returns a child's star ledger, newest first
func (s *ProgressService) ListStars(ctx context.Context, childID string, limit int) ([]models.StarRecord, error) {
	return s.stars.ListByChild(ctx, childID, limit)
}

// ListBadges returns a child's earned badges with their definitions
func (s *ProgressService) ListBadges(ctx context.Context, childID string) ([]models.EarnedBadgeWithDefinition, error) {
	return s.badges.ListEarnedWithDefinitions(ctx, childID)
}
