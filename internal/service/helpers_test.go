package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"learnquest/internal/database"
	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
	"learnquest/internal/testutil"
)

type testEnv struct {
	db           *database.DB
	activityRepo *repository.ActivityRepository
	starRepo     *repository.StarRepository
	badgeRepo    *repository.BadgeRepository
	levelRepo    *repository.LevelRepository

	aggregates *AggregateService
	catalog    *BadgeCatalog
	stars      *StarEvaluator
	streaks    *StreakUpdater
	badges     *BadgeEvaluator
	activities *ActivityService
	progress   *ProgressService

	notifier *recordingNotifier
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	log := logger.NewNop()

	env := &testEnv{
		db:           db,
		activityRepo: repository.NewActivityRepository(db),
		starRepo:     repository.NewStarRepository(db),
		badgeRepo:    repository.NewBadgeRepository(db),
		levelRepo:    repository.NewLevelRepository(db),
		notifier:     newRecordingNotifier(),
		now:          time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	env.aggregates = NewAggregateService(env.levelRepo, env.starRepo, env.badgeRepo, log)
	env.catalog = NewBadgeCatalog(env.badgeRepo, nil)
	env.stars = NewStarEvaluator(env.starRepo, env.aggregates, log)
	env.streaks = NewStreakUpdater(env.levelRepo, time.UTC, log)
	env.badges = NewBadgeEvaluator(env.catalog, env.badgeRepo, env.starRepo, env.aggregates, log)
	env.activities = NewActivityService(env.activityRepo, env.stars, env.streaks, env.badges, env.aggregates, nil, env.notifier, log)
	env.progress = NewProgressService(env.levelRepo, env.badgeRepo, env.starRepo, env.activityRepo)

	clock := func() time.Time { return env.now }
	env.aggregates.now = clock
	env.stars.now = clock
	env.streaks.now = clock
	env.badges.now = clock
	env.activities.now = clock
	return env
}

func (e *testEnv) advanceDays(n int) {
	e.now = e.now.AddDate(0, 0, n)
}

func (e *testEnv) seedBadges(t *testing.T, defs ...models.BadgeDefinition) {
	t.Helper()
	if err := e.catalog.Seed(context.Background(), defs); err != nil {
		t.Fatalf("failed to seed badges: %v", err)
	}
}

func (e *testEnv) addStars(t *testing.T, childID string, subject models.Subject, amounts ...int) {
	t.Helper()
	for _, amount := range amounts {
		err := e.starRepo.Create(context.Background(), &models.StarRecord{
			ChildID: childID, ActivityID: "seed", Amount: amount, Subject: subject,
			Reason: "seed", CreatedAt: e.now,
		})
		if err != nil {
			t.Fatalf("failed to seed star: %v", err)
		}
	}
}

func activityInput(childID string, subject models.Subject, score int) ActivityInput {
	return ActivityInput{
		ChildID:          childID,
		UserID:           "parent-1",
		ActivityID:       "activity-1",
		Subject:          subject,
		Score:            score,
		TimeTakenSeconds: 120,
		Topic:            "fractions",
		Difficulty:       models.DifficultyMedium,
	}
}

func eventsOfKind(events []models.Event, kind models.EventKind) []models.Event {
	var out []models.Event
	for _, e := range events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Event
	calls  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{calls: make(chan struct{}, 16)}
}

func (n *recordingNotifier) Notify(ctx context.Context, childID string, events []models.Event) error {
	n.mu.Lock()
	n.events = append(n.events, events...)
	n.mu.Unlock()
	n.calls <- struct{}{}
	return nil
}

func (n *recordingNotifier) wait(t *testing.T) []models.Event {
	t.Helper()
	select {
	case <-n.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("notifier was not called")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Event(nil), n.events...)
}
