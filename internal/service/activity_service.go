package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
	"learnquest/internal/validation"
)

const notifyTimeout = 30 * time.Second

// Locker serialises work per key. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// Notifier receives the events produced by an activity completion
type Notifier interface {
	Notify(ctx context.Context, childID string, events []models.Event) error
}

// ActivityInput is a completed activity as reported by the client
type ActivityInput struct {
	ChildID          string            `json:"child_id"`
	UserID           string            `json:"user_id"`
	ActivityID       string            `json:"activity_id"`
	Subject          models.Subject    `json:"subject"`
	Score            int               `json:"score"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
	Topic            string            `json:"topic"`
	Difficulty       models.Difficulty `json:"difficulty"`
}

// Validate checks the identifying and enumerated fields. Score and time are
// stored as given.
func (in ActivityInput) Validate() error {
	for _, id := range []struct{ field, value string }{
		{"child_id", in.ChildID},
		{"user_id", in.UserID},
		{"activity_id", in.ActivityID},
	} {
		if err := validation.ValidateID(id.field, id.value); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidInput)
		}
	}
	switch {
	case !in.Subject.IsActivitySubject():
		return fmt.Errorf("subject %q is not English or Maths: %w", in.Subject, ErrInvalidInput)
	case !in.Difficulty.IsValid():
		return fmt.Errorf("difficulty %q is not easy, medium or hard: %w", in.Difficulty, ErrInvalidInput)
	}
	return nil
}

// ActivityOutcome is everything that happened as a result of one completion
type ActivityOutcome struct {
	ActivityResultID int64              `json:"activity_result_id"`
	Events           []models.Event     `json:"events"`
	Level            *models.ChildLevel `json:"level,omitempty"`
	Errors           []string           `json:"errors,omitempty"`
}

// ActivityService records completed activities and runs the reward pipeline
type ActivityService struct {
	activities *repository.ActivityRepository
	stars      *StarEvaluator
	streaks    *StreakUpdater
	badges     *BadgeEvaluator
	aggregates *AggregateService
	locker     Locker
	notifier   Notifier
	log        *logger.Logger
	now        func() time.Time

	// pending tracks notifier deliveries still in flight
	pending sync.WaitGroup
}

// NewActivityService creates the activity completion service. locker and notifier may be nil.
func NewActivityService(
	activities *repository.ActivityRepository,
	stars *StarEvaluator,
	streaks *StreakUpdater,
	badges *BadgeEvaluator,
	aggregates *AggregateService,
	locker Locker,
	notifier Notifier,
	log *logger.Logger,
) *ActivityService {
	return &ActivityService{
		activities: activities,
		stars:      stars,
		streaks:    streaks,
		badges:     badges,
		aggregates: aggregates,
		locker:     locker,
		notifier:   notifier,
		log:        log,
		now:        time.Now,
	}
}

// CompleteActivity stores the result and then awards stars, updates the streak
// and evaluates badges. Only validation and the result insert are fatal; a
// failing reward step is logged, listed in Errors and the next step still runs.
func (s *ActivityService) CompleteActivity(ctx context.Context, in ActivityInput) (*ActivityOutcome, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	result := &models.ActivityResult{
		ChildID:          in.ChildID,
		UserID:           in.UserID,
		ActivityID:       in.ActivityID,
		Subject:          in.Subject,
		Score:            in.Score,
		TimeTakenSeconds: in.TimeTakenSeconds,
		Topic:            in.Topic,
		Difficulty:       in.Difficulty,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.activities.Create(ctx, result); err != nil {
		return nil, err
	}

	outcome := &ActivityOutcome{ActivityResultID: result.ID, Events: []models.Event{}}
	log := s.log.With("child_id", in.ChildID, "activity_result_id", result.ID)

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, "child:"+in.ChildID)
		if err != nil {
			log.Warn("child lock unavailable, continuing unlocked", "error", err)
		} else {
			defer unlock()
		}
	}

	steps := []struct {
		name string
		run  func() ([]models.Event, error)
	}{
		{"stars", func() ([]models.Event, error) {
			return s.stars.AwardStars(ctx, in.ChildID, in.ActivityID, in.Subject, in.Score)
		}},
		{"streak", func() ([]models.Event, error) {
			return s.streaks.UpdateStreak(ctx, in.ChildID)
		}},
		{"badges", func() ([]models.Event, error) {
			return s.badges.EvaluateBadges(ctx, in.ChildID)
		}},
	}
	for _, step := range steps {
		events, err := step.run()
		outcome.Events = append(outcome.Events, events...)
		if err != nil {
			log.Error("reward step failed", "step", step.name, "error", err)
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", step.name, err))
		}
	}

	level, err := s.aggregates.Get(ctx, in.ChildID)
	if err != nil {
		log.Warn("failed to read aggregate after completion", "error", err)
	}
	outcome.Level = level

	s.dispatch(ctx, in.ChildID, outcome.Events)
	return outcome, nil
}

// Wait blocks until every dispatched notification has finished or timed out
func (s *ActivityService) Wait() {
	s.pending.Wait()
}

// dispatch hands events to the notifier without waiting for delivery
func (s *ActivityService) dispatch(ctx context.Context, childID string, events []models.Event) {
	if s.notifier == nil || len(events) == 0 {
		return
	}
	batch := append([]models.Event(nil), events...)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, childID, batch); err != nil {
			s.log.Warn("event notification failed", "child_id", childID, "error", err)
		}
	}()
}
