package service

import (
	"context"
	"fmt"
	"time"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
)

// ReasonPerfectScore is the reason recorded for a score of exactly 100
const ReasonPerfectScore = "perfect score"

// StarAward is the outcome of scoring one activity
type StarAward struct {
	Amount    int
	Reason    string
	IsPerfect bool
}

// StarsFor maps an activity score to a star award. Scores are not clamped:
// anything above 100 lands in the top bucket and anything negative in the bottom one.
func StarsFor(score int) StarAward {
	switch {
	case score == 100:
		return StarAward{Amount: 5, Reason: ReasonPerfectScore, IsPerfect: true}
	case score >= 90:
		return StarAward{Amount: 5, Reason: "Excellent score"}
	case score >= 75:
		return StarAward{Amount: 4, Reason: "Great score"}
	case score >= 60:
		return StarAward{Amount: 3, Reason: "Good score"}
	case score >= 40:
		return StarAward{Amount: 2, Reason: "Decent effort"}
	default:
		return StarAward{Amount: 1, Reason: "Completion"}
	}
}

// StarEvaluator awards stars for completed activities
type StarEvaluator struct {
	stars      *repository.StarRepository
	aggregates *AggregateService
	log        *logger.Logger
	now        func() time.Time
}

// NewStarEvaluator creates a new star evaluator
func NewStarEvaluator(stars *repository.StarRepository, aggregates *AggregateService, log *logger.Logger) *StarEvaluator {
	return &StarEvaluator{
		stars:      stars,
		aggregates: aggregates,
		log:        log,
		now:        time.Now,
	}
}

// AwardStars records the star award for an activity and refreshes the child's totals.
// Only a failed insert is returned as an error; the totals are rebuilt from the
// ledger later if the refresh fails.
func (e *StarEvaluator) AwardStars(ctx context.Context, childID, activityID string, subject models.Subject, score int) ([]models.Event, error) {
	award := StarsFor(score)
	record := &models.StarRecord{
		ChildID:    childID,
		ActivityID: activityID,
		Amount:     award.Amount,
		Subject:    subject,
		Reason:     award.Reason,
		IsPerfect:  award.IsPerfect,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.stars.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to award stars: %w", err)
	}

	events := []models.Event{{
		Kind:       models.EventStarsAwarded,
		ChildID:    childID,
		Stars:      record.Amount,
		Reason:     record.Reason,
		OccurredAt: record.CreatedAt,
	}}

	before, after, err := e.aggregates.Refresh(ctx, childID)
	if err != nil {
		e.log.Warn("star totals refresh failed", "child_id", childID, "error", err)
		return events, nil
	}
	if after.CurrentLevel > before.CurrentLevel {
		events = append(events, models.Event{
			Kind:       models.EventLevelUp,
			ChildID:    childID,
			Level:      after.CurrentLevel,
			Title:      after.CurrentTitle,
			OccurredAt: record.CreatedAt,
		})
	}
	return events, nil
}
