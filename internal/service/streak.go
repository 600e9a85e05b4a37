package service

import (
	"context"
	"fmt"
	"time"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
)

// DateLayout is the stored form of last_activity_date
const DateLayout = "2006-01-02"

// maxWriteAttempts bounds compare-and-swap retries on child_levels
const maxWriteAttempts = 5

// StreakMilestones are the streak lengths that produce a milestone event
var StreakMilestones = []int{3, 7, 14, 30}

// StreakState is the streak part of a child's aggregate
type StreakState struct {
	StreakDays       int
	LongestStreak    int
	LastActivityDate string
}

// NextStreak applies one day of activity to a streak. The second return value
// is false when today was already counted and nothing should be written.
func NextStreak(prev StreakState, today time.Time) (StreakState, bool) {
	todayStr := today.Format(DateLayout)
	yesterday := today.AddDate(0, 0, -1).Format(DateLayout)

	switch prev.LastActivityDate {
	case "":
		return StreakState{StreakDays: 1, LongestStreak: max(prev.LongestStreak, 1), LastActivityDate: todayStr}, true
	case todayStr:
		return prev, false
	case yesterday:
		next := prev.StreakDays + 1
		return StreakState{StreakDays: next, LongestStreak: max(prev.LongestStreak, next), LastActivityDate: todayStr}, true
	default:
		return StreakState{StreakDays: 1, LongestStreak: max(prev.LongestStreak, 1), LastActivityDate: todayStr}, true
	}
}

// IsStreakMilestone reports whether a streak length is one of StreakMilestones
func IsStreakMilestone(days int) bool {
	for _, m := range StreakMilestones {
		if days == m {
			return true
		}
	}
	return false
}

// StreakUpdater tracks consecutive active days per child
type StreakUpdater struct {
	levels   *repository.LevelRepository
	location *time.Location
	log      *logger.Logger
	now      func() time.Time
}

// NewStreakUpdater creates a streak updater that decides "today" in loc
func NewStreakUpdater(levels *repository.LevelRepository, loc *time.Location, log *logger.Logger) *StreakUpdater {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakUpdater{
		levels:   levels,
		location: loc,
		log:      log,
		now:      time.Now,
	}
}

// Today returns the current calendar date in the updater's zone
func (u *StreakUpdater) Today() string {
	return u.now().In(u.location).Format(DateLayout)
}

// UpdateStreak records activity for today. Writes are compare-and-swap on the
// aggregate version and are retried when another writer wins.
func (u *StreakUpdater) UpdateStreak(ctx context.Context, childID string) ([]models.Event, error) {
	now := u.now()
	today := now.In(u.location)

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current, err := u.levels.Get(ctx, childID)
		if err != nil {
			return nil, err
		}

		if current == nil {
			row := newChildLevel(childID, now)
			row.StreakDays = 1
			row.LongestStreak = 1
			row.LastActivityDate = today.Format(DateLayout)
			created, err := u.levels.CreateIfAbsent(ctx, row)
			if err != nil {
				return nil, err
			}
			if created {
				return nil, nil
			}
			continue
		}

		next, changed := NextStreak(StreakState{
			StreakDays:       current.StreakDays,
			LongestStreak:    current.LongestStreak,
			LastActivityDate: current.LastActivityDate,
		}, today)
		if !changed {
			return nil, nil
		}

		ok, err := u.levels.UpdateStreak(ctx, childID, current.Version,
			next.StreakDays, next.LongestStreak, next.LastActivityDate, now.UTC())
		if err != nil {
			return nil, err
		}
		if !ok {
			u.log.Debug("streak update lost race, retrying", "child_id", childID, "attempt", attempt+1)
			continue
		}

		if next.StreakDays > current.StreakDays && IsStreakMilestone(next.StreakDays) {
			return []models.Event{{
				Kind:       models.EventStreakMilestone,
				ChildID:    childID,
				StreakDays: next.StreakDays,
				OccurredAt: now.UTC(),
			}}, nil
		}
		return nil, nil
	}

	return nil, fmt.Errorf("failed to update streak for %s: %w", childID, ErrConflict)
}
