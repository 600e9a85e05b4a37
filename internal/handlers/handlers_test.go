package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/repository"
	"learnquest/internal/security"
	"learnquest/internal/service"
	"learnquest/internal/testutil"
)

const (
	testSecret = "test-secret"
	childID    = "7f9c24e5-2c4b-4f65-9a4e-1f8f7f3c9b10"
	userID     = "parent-1"
)

type apiFixture struct {
	handler       http.Handler
	token         string
	notifications *repository.NotificationRepository
}

func newAPI(t *testing.T, limiter security.Limiter) *apiFixture {
	t.Helper()
	db := testutil.NewDB(t)
	log := logger.NewNop()

	activityRepo := repository.NewActivityRepository(db)
	starRepo := repository.NewStarRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	levelRepo := repository.NewLevelRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	contactRepo := repository.NewContactRepository(db)

	aggregates := service.NewAggregateService(levelRepo, starRepo, badgeRepo, log)
	catalog := service.NewBadgeCatalog(badgeRepo, nil)
	if err := catalog.Seed(context.Background(), service.DefaultBadges()); err != nil {
		t.Fatalf("failed to seed badges: %v", err)
	}
	activities := service.NewActivityService(
		activityRepo,
		service.NewStarEvaluator(starRepo, aggregates, log),
		service.NewStreakUpdater(levelRepo, time.UTC, log),
		service.NewBadgeEvaluator(catalog, badgeRepo, starRepo, aggregates, log),
		aggregates,
		nil,
		nil,
		log,
	)

	m := NewMiddleware(security.NewTokenVerifier(testSecret), limiter, log)
	router := NewRouter(m,
		NewActivityHandler(activities, log),
		NewProgressHandler(service.NewProgressService(levelRepo, badgeRepo, starRepo, activityRepo), aggregates, catalog, log),
		NewNotificationHandler(service.NewNotificationService(notificationRepo, contactRepo), log),
		NewHealthHandler(db, log),
	)

	token, err := security.IssueToken(testSecret, userID, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return &apiFixture{handler: router, token: token, notifications: notificationRepo}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func activityBody(score int) map[string]interface{} {
	return map[string]interface{}{
		"activity_id":        "fractions-1",
		"subject":            "Maths",
		"score":              score,
		"time_taken_seconds": 90,
		"topic":              "fractions",
		"difficulty":         "easy",
	}
}

func TestCompleteActivityEndpoint(t *testing.T) {
	api := newAPI(t, nil)

	rec := api.do(t, "POST", "/api/children/"+childID+"/activities", activityBody(100))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	var outcome service.ActivityOutcome
	if err := json.NewDecoder(rec.Body).Decode(&outcome); err != nil {
		t.Fatalf("failed to decode outcome: %v", err)
	}
	if outcome.ActivityResultID == 0 || outcome.Level == nil || outcome.Level.TotalStars != 5 {
		t.Fatalf("outcome = %+v", outcome)
	}
	kinds := map[models.EventKind]int{}
	for _, e := range outcome.Events {
		kinds[e.Kind]++
	}
	if kinds[models.EventStarsAwarded] != 1 || kinds[models.EventBadgeEarned] < 2 {
		t.Errorf("event kinds = %v", kinds)
	}

	rec = api.do(t, "GET", "/api/children/"+childID+"/progress", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("progress status = %d", rec.Code)
	}
	var progress service.Progress
	if err := json.NewDecoder(rec.Body).Decode(&progress); err != nil {
		t.Fatalf("failed to decode progress: %v", err)
	}
	if progress.Level.TotalStars != 5 || len(progress.RecentStars) != 1 {
		t.Errorf("progress = %+v", progress)
	}

	rec = api.do(t, "GET", "/api/children/"+childID+"/stars?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("stars status = %d", rec.Code)
	}
	rec = api.do(t, "GET", "/api/children/"+childID+"/badges", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("badges status = %d", rec.Code)
	}
}

func TestCompleteActivityValidation(t *testing.T) {
	api := newAPI(t, nil)

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"bad child id", "/api/children/not-a-uuid/activities", activityBody(80), http.StatusBadRequest},
		{"unknown subject", "/api/children/" + childID + "/activities", map[string]interface{}{
			"activity_id": "a", "subject": "General", "score": 80, "difficulty": "easy",
		}, http.StatusBadRequest},
		{"unknown field", "/api/children/" + childID + "/activities", map[string]interface{}{
			"activity_id": "a", "subject": "Maths", "score": 80, "difficulty": "easy", "stars": 99,
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := api.do(t, "POST", tt.path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestRequireUser(t *testing.T) {
	api := newAPI(t, nil)

	api.token = ""
	if rec := api.do(t, "GET", "/api/badges", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", rec.Code)
	}

	api.token = "garbage"
	if rec := api.do(t, "GET", "/api/badges", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: status = %d", rec.Code)
	}

	api.token, _ = security.IssueToken(testSecret, userID, time.Hour)
	rec := api.do(t, "GET", "/api/badges", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("good token: status = %d", rec.Code)
	}
	var catalog struct {
		Badges []models.BadgeDefinition `json:"badges"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&catalog); err != nil || len(catalog.Badges) != len(service.DefaultBadges()) {
		t.Errorf("catalog = %d badges, err %v", len(catalog.Badges), err)
	}
}

func TestRateLimitedActivities(t *testing.T) {
	api := newAPI(t, security.NewRateLimiter(2, time.Minute, 100))
	path := "/api/children/" + childID + "/activities"

	for i := 0; i < 2; i++ {
		if rec := api.do(t, "POST", path, activityBody(70)); rec.Code != http.StatusCreated {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := api.do(t, "POST", path, activityBody(70))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	// reads are not limited
	if rec := api.do(t, "GET", "/api/children/"+childID+"/progress", nil); rec.Code != http.StatusOK {
		t.Errorf("progress status = %d", rec.Code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	api := newAPI(t, nil)
	ctx := context.Background()

	err := api.notifications.Create(ctx, &models.Notification{
		ID: "n-1", ChildID: childID, Kind: models.EventBadgeEarned, Title: "New badge!",
		Message: "You earned First Steps", Payload: "{}", CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to create notification: %v", err)
	}

	rec := api.do(t, "GET", "/api/children/"+childID+"/notifications?unread=true", nil)
	var list struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil || len(list.Notifications) != 1 {
		t.Fatalf("list = %+v, err %v", list, err)
	}

	if rec := api.do(t, "POST", "/api/children/"+childID+"/notifications/n-1/read", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("mark read status = %d", rec.Code)
	}
	if rec := api.do(t, "POST", "/api/children/"+childID+"/notifications/n-1/read", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second mark read status = %d, want 404", rec.Code)
	}

	rec = api.do(t, "PUT", "/api/children/"+childID+"/contact", map[string]interface{}{
		"email": "parent@example.com", "name": "Alex", "email_opt_in": true,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("put contact status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, "PUT", "/api/children/"+childID+"/contact", map[string]interface{}{
		"email": "not an email", "email_opt_in": true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid email status = %d, want 400", rec.Code)
	}

	other, err := security.IssueToken(testSecret, "parent-2", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	owner := api.token
	api.token = other
	rec = api.do(t, "PUT", "/api/children/"+childID+"/contact", map[string]interface{}{
		"email": "someone.else@example.com", "email_opt_in": true,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("overwrite by another user status = %d, want 403", rec.Code)
	}
	api.token = owner
	rec = api.do(t, "PUT", "/api/children/"+childID+"/contact", map[string]interface{}{
		"email": "parent.new@example.com", "email_opt_in": true,
	})
	if rec.Code != http.StatusOK {
		t.Errorf("owner update status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestReconcileAndHealth(t *testing.T) {
	api := newAPI(t, nil)

	rec := api.do(t, "POST", "/api/children/"+childID+"/reconcile", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reconcile status = %d", rec.Code)
	}

	api.token = ""
	if rec := api.do(t, "GET", "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}
