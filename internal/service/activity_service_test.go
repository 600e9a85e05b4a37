package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"learnquest/internal/models"
)

func TestActivityInputValidate(t *testing.T) {
	valid := activityInput("child-1", models.SubjectMaths, 80)

	tests := []struct {
		name   string
		mutate func(*ActivityInput)
	}{
		{"missing child", func(in *ActivityInput) { in.ChildID = " " }},
		{"missing user", func(in *ActivityInput) { in.UserID = "" }},
		{"missing activity", func(in *ActivityInput) { in.ActivityID = "" }},
		{"general subject", func(in *ActivityInput) { in.Subject = models.SubjectGeneral }},
		{"unknown subject", func(in *ActivityInput) { in.Subject = "Science" }},
		{"bad difficulty", func(in *ActivityInput) { in.Difficulty = "extreme" }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if err := in.Validate(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Validate() error = %v, want ErrInvalidInput", err)
			}
		})
	}

	outOfRange := valid
	outOfRange.Score = 140
	outOfRange.TimeTakenSeconds = -5
	if err := outOfRange.Validate(); err != nil {
		t.Errorf("score and time are stored as given, got %v", err)
	}
}

func TestCompleteActivityRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := activityInput("child-1", "Art", 80)
	if _, err := env.activities.CompleteActivity(ctx, in); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("CompleteActivity() error = %v, want ErrInvalidInput", err)
	}
	results, _ := env.activityRepo.ListByChild(ctx, "child-1", 10)
	if len(results) != 0 {
		t.Errorf("invalid input was stored: %+v", results)
	}
}

// Scenario: a child with no stars scores 95
func TestCompleteActivityFirstExcellentScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	outcome, err := env.activities.CompleteActivity(ctx, activityInput("child-1", models.SubjectMaths, 95))
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	if outcome.ActivityResultID == 0 {
		t.Error("expected activity result id")
	}
	if len(outcome.Errors) != 0 {
		t.Errorf("unexpected step errors: %v", outcome.Errors)
	}

	stars, _ := env.starRepo.ListByChild(ctx, "child-1", 0)
	if len(stars) != 1 || stars[0].Amount != 5 || stars[0].Reason != "Excellent score" || stars[0].IsPerfect {
		t.Fatalf("stars = %+v, want one 5-star Excellent score", stars)
	}
	if outcome.Level == nil || outcome.Level.TotalStars != 5 {
		t.Fatalf("outcome level = %+v, want 5 total stars", outcome.Level)
	}
	if outcome.Level.StreakDays != 1 || outcome.Level.LastActivityDate != "2024-05-10" {
		t.Errorf("streak = %d on %s, want 1 on 2024-05-10", outcome.Level.StreakDays, outcome.Level.LastActivityDate)
	}

	delivered := env.notifier.wait(t)
	if len(eventsOfKind(delivered, models.EventStarsAwarded)) != 1 {
		t.Errorf("notifier got %+v", delivered)
	}
}

// Scenario: a score of exactly 100
func TestCompleteActivityPerfectScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	outcome, err := env.activities.CompleteActivity(ctx, activityInput("child-1", models.SubjectEnglish, 100))
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	awarded := eventsOfKind(outcome.Events, models.EventStarsAwarded)
	if len(awarded) != 1 || awarded[0].Reason != "perfect score" || awarded[0].Stars != 5 {
		t.Fatalf("events = %+v", outcome.Events)
	}
	stars, _ := env.starRepo.ListByChild(ctx, "child-1", 0)
	if len(stars) != 1 || !stars[0].IsPerfect {
		t.Errorf("stars = %+v, want one perfect record", stars)
	}
}

// Scenario: six-day streak extended to seven
func TestCompleteActivitySevenDayMilestone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.levelRepo.CreateIfAbsent(ctx, &models.ChildLevel{
		ChildID: "child-1", CurrentLevel: 1, CurrentTitle: "Curious Beginner",
		MathsLevel: 1, EnglishLevel: 1, StreakDays: 6, LongestStreak: 6,
		LastActivityDate: "2024-05-09", UpdatedAt: env.now,
	})
	if err != nil || !created {
		t.Fatalf("CreateIfAbsent() = %v, %v", created, err)
	}

	outcome, err := env.activities.CompleteActivity(ctx, activityInput("child-1", models.SubjectMaths, 70))
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	milestones := eventsOfKind(outcome.Events, models.EventStreakMilestone)
	if len(milestones) != 1 || milestones[0].StreakDays != 7 {
		t.Fatalf("events = %+v, want a 7-day milestone", outcome.Events)
	}
	if outcome.Level.StreakDays != 7 || outcome.Level.LongestStreak != 7 {
		t.Errorf("level = %+v", outcome.Level)
	}
}

// Scenario: crossing 50 stars earns the badge once
func TestCompleteActivityEarnsBadgeOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	collector := badge(models.SubjectGeneral, models.AchievementTotalStars, 50)
	collector.ID = "star-collector-1"
	env.seedBadges(t, collector)
	env.addStars(t, "child-1", models.SubjectMaths, 5, 5, 5, 5, 5, 5, 5, 5, 5)

	outcome, err := env.activities.CompleteActivity(ctx, activityInput("child-1", models.SubjectMaths, 92))
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	earned := eventsOfKind(outcome.Events, models.EventBadgeEarned)
	if len(earned) != 1 || earned[0].Badge.ID != "star-collector-1" {
		t.Fatalf("events = %+v", outcome.Events)
	}
	if outcome.Level.TotalStars != 50 || outcome.Level.TotalBadges != 1 {
		t.Errorf("level = %+v", outcome.Level)
	}

	outcome, err = env.activities.CompleteActivity(ctx, activityInput("child-1", models.SubjectMaths, 10))
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	if got := eventsOfKind(outcome.Events, models.EventBadgeEarned); len(got) != 0 {
		t.Errorf("badge awarded twice: %+v", got)
	}
	count, _ := env.badgeRepo.CountEarned(ctx, "child-1")
	if count != 1 {
		t.Errorf("CountEarned() = %d, want 1", count)
	}
}

func TestCompleteActivityContinuesPastFailedStep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.db.ExecContext(ctx, "DROP TABLE earned_badges"); err != nil {
		t.Fatalf("failed to drop table: %v", err)
	}

	outcome, err := env.activities.CompleteActivity(ctx, activityInput("child-1", models.SubjectMaths, 80))
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	if len(outcome.Errors) != 1 || !strings.HasPrefix(outcome.Errors[0], "badges:") {
		t.Fatalf("Errors = %v, want a single badges failure", outcome.Errors)
	}
	if len(eventsOfKind(outcome.Events, models.EventStarsAwarded)) != 1 {
		t.Errorf("stars step did not run: %+v", outcome.Events)
	}
	if outcome.Level == nil || outcome.Level.StreakDays != 1 {
		t.Errorf("streak step did not run: %+v", outcome.Level)
	}
}

type failingLocker struct{}

func (failingLocker) Lock(ctx context.Context, key string) (func(), error) {
	return nil, errors.New("redis down")
}

func TestCompleteActivityRunsWithoutLock(t *testing.T) {
	env := newTestEnv(t)
	env.activities.locker = failingLocker{}

	outcome, err := env.activities.CompleteActivity(context.Background(), activityInput("child-1", models.SubjectEnglish, 65))
	if err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	if len(outcome.Errors) != 0 || outcome.Level == nil || outcome.Level.TotalStars != 3 {
		t.Errorf("outcome = %+v", outcome)
	}
}

type gatedNotifier struct {
	started chan struct{}
	release chan struct{}
}

func (n *gatedNotifier) Notify(ctx context.Context, childID string, events []models.Event) error {
	n.started <- struct{}{}
	<-n.release
	return nil
}

func TestWaitDrainsInFlightNotifications(t *testing.T) {
	env := newTestEnv(t)
	gate := &gatedNotifier{started: make(chan struct{}, 1), release: make(chan struct{})}
	env.activities.notifier = gate

	if _, err := env.activities.CompleteActivity(context.Background(), activityInput("child-1", models.SubjectMaths, 95)); err != nil {
		t.Fatalf("CompleteActivity() error = %v", err)
	}
	select {
	case <-gate.started:
	case <-time.After(5 * time.Second):
		t.Fatal("notifier was not called")
	}

	drained := make(chan struct{})
	go func() {
		env.activities.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("Wait returned while a notification was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after the notification finished")
	}
}
