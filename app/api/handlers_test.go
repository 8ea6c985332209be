package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/canvas-comb/app/cfg"
	"github.com/lysyi3m/canvas-comb/app/content"
	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/sources"
	"github.com/lysyi3m/canvas-comb/app/tasks"
)

const testAPIKey = "test-key"

type fakeScheduler struct {
	started   bool
	stopped   bool
	triggered int
}

func (f *fakeScheduler) Start() { f.started = true }
func (f *fakeScheduler) Stop()  { f.stopped = true }
func (f *fakeScheduler) EnqueueTask(task tasks.TaskInterface) error {
	return nil
}
func (f *fakeScheduler) EnqueueAggregation() (int, error) {
	f.triggered++
	return 2, nil
}

type apiEnv struct {
	router      *gin.Engine
	contentRepo database.ContentRepository
	featureRepo database.FeatureRepository
	scheduler   *fakeScheduler
}

func setupTestConfig() {
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	cfg.Load()
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	setupTestConfig()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	contentRepo := database.NewContentRepo(db)
	featureRepo := database.NewFeatureRepo(db)
	if _, err := featureRepo.SeedFeatures(); err != nil {
		t.Fatalf("Failed to seed features: %v", err)
	}

	scheduler := &fakeScheduler{}
	handler := NewHandler(sources.NewConfigCache(t.TempDir()), contentRepo, featureRepo, scheduler)
	router := NewServer(handler, testAPIKey)

	return &apiEnv{
		router:      router,
		contentRepo: contentRepo,
		featureRepo: featureRepo,
		scheduler:   scheduler,
	}
}

func (e *apiEnv) request(t *testing.T, method, path string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func insertTestItem(t *testing.T, repo database.ContentRepository) string {
	t.Helper()
	_, _, err := repo.InsertItem(content.Item{
		Source:        content.SourceCommunity,
		SourceID:      "community_test-post",
		Title:         "Test Post",
		URL:           "https://community.example.com/test-post",
		Content:       "Post body",
		ContentType:   content.TypeBlog,
		Summary:       "A test post.",
		Sentiment:     "neutral",
		PrimaryTopic:  "General",
		PublishedDate: time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to insert test item: %v", err)
	}
	return "community_test-post"
}

func TestGetFeedEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	insertTestItem(t, env.contentRepo)

	w := env.request(t, "GET", "/feed.xml", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Errorf("Unexpected content type '%s'", ct)
	}
	if w.Header().Get("X-Feed-Items") != "1" {
		t.Errorf("Expected X-Feed-Items 1, got '%s'", w.Header().Get("X-Feed-Items"))
	}
	if !strings.Contains(w.Body.String(), "community_test-post") {
		t.Error("Expected item guid in feed output")
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newAPIEnv(t)

	w := env.request(t, "GET", "/health", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse health response: %v", err)
	}
	if _, ok := body["timestamp"]; !ok {
		t.Error("Expected timestamp in health response")
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newAPIEnv(t)
	insertTestItem(t, env.contentRepo)

	w := env.request(t, "GET", "/stats", false)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse stats response: %v", err)
	}
	if body["items"].(float64) != 1 {
		t.Errorf("Expected 1 item in stats, got %v", body["items"])
	}
	if body["features"].(float64) == 0 {
		t.Error("Expected seeded features in stats")
	}
}

func TestAPIAuthRequired(t *testing.T) {
	env := newAPIEnv(t)

	w := env.request(t, "GET", "/api/features", false)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without key, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/features", nil)
	req.Header.Set("X-API-Key", "wrong-key")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong key, got %d", w.Code)
	}

	if w := env.request(t, "GET", "/api/features", true); w.Code != http.StatusOK {
		t.Errorf("Expected 200 with valid key, got %d", w.Code)
	}
}

func TestAPIBearerAuth(t *testing.T) {
	env := newAPIEnv(t)

	req := httptest.NewRequest("GET", "/api/features", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 with bearer token, got %d", w.Code)
	}
}

func TestAPIGetItem(t *testing.T) {
	env := newAPIEnv(t)
	sourceID := insertTestItem(t, env.contentRepo)

	w := env.request(t, "GET", "/api/items/"+sourceID, true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse item response: %v", err)
	}
	if body["title"] != "Test Post" {
		t.Errorf("Unexpected title %v", body["title"])
	}
	if body["content"] != "Post body" {
		t.Errorf("Expected full content in item details, got %v", body["content"])
	}
}

func TestAPIGetItemNotFound(t *testing.T) {
	env := newAPIEnv(t)

	w := env.request(t, "GET", "/api/items/community_missing", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestAPIFeatureEndpoints(t *testing.T) {
	env := newAPIEnv(t)

	w := env.request(t, "GET", "/api/features/gradebook", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse feature response: %v", err)
	}
	if body["name"] != "Gradebook" {
		t.Errorf("Unexpected feature name %v", body["name"])
	}

	if w := env.request(t, "GET", "/api/features/nope", true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown feature, got %d", w.Code)
	}

	if w := env.request(t, "GET", "/api/features/gradebook/options", true); w.Code != http.StatusOK {
		t.Errorf("Expected 200 for feature options, got %d", w.Code)
	}

	if w := env.request(t, "GET", "/api/options/nope/announcements", true); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown option, got %d", w.Code)
	}
}

func TestAPIOptionAnnouncements(t *testing.T) {
	env := newAPIEnv(t)
	insertTestItem(t, env.contentRepo)

	item, _ := env.contentRepo.GetItemBySourceID("community_test-post")
	if err := env.featureRepo.UpsertFeatureOption(database.FeatureOption{
		OptionID:  "message-observers",
		FeatureID: "gradebook",
		Name:      "Message Observers",
		Status:    "released",
	}); err != nil {
		t.Fatalf("UpsertFeatureOption failed: %v", err)
	}
	if _, err := env.featureRepo.InsertFeatureAnnouncement(database.FeatureAnnouncement{
		ContentID: item.ID,
		FeatureID: "gradebook",
		OptionID:  "message-observers",
		AnchorID:  "message-observers",
	}); err != nil {
		t.Fatalf("InsertFeatureAnnouncement failed: %v", err)
	}

	w := env.request(t, "GET", "/api/options/message-observers/announcements", true)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse announcements response: %v", err)
	}
	if body["total"].(float64) != 1 {
		t.Errorf("Expected 1 announcement, got %v", body["total"])
	}
}

func TestAPITriggerAggregation(t *testing.T) {
	env := newAPIEnv(t)

	w := env.request(t, "POST", "/api/aggregate", true)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if env.scheduler.triggered != 1 {
		t.Errorf("Expected scheduler triggered once, got %d", env.scheduler.triggered)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to parse trigger response: %v", err)
	}
	if body["sources"].(float64) != 2 {
		t.Errorf("Expected 2 sources queued, got %v", body["sources"])
	}
}

func TestAPIListItemsInvalidLimit(t *testing.T) {
	env := newAPIEnv(t)

	w := env.request(t, "GET", "/api/items?limit=bogus", true)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid limit, got %d", w.Code)
	}
}
