package pipeline

import (
	"testing"
	"time"

	"github.com/lysyi3m/canvas-comb/app/content"
	"github.com/lysyi3m/canvas-comb/app/database"
)

func newTestRepos(t *testing.T) (*database.ContentRepo, *database.FeatureRepo) {
	t.Helper()

	db, err := database.NewConnection(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	featureRepo := database.NewFeatureRepo(db)
	if _, err := featureRepo.SeedFeatures(); err != nil {
		t.Fatalf("Failed to seed features: %v", err)
	}

	return database.NewContentRepo(db), featureRepo
}

func blogItem(sourceID string, commentCount int) content.Item {
	return content.Item{
		Source:        content.SourceCommunity,
		SourceID:      sourceID,
		Title:         "Post " + sourceID,
		URL:           "https://community.example.com/" + sourceID,
		Content:       "Body",
		ContentType:   content.TypeBlog,
		PublishedDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		CommentCount:  commentCount,
	}
}

func TestClassifyNew(t *testing.T) {
	contentRepo, _ := newTestRepos(t)
	classifier := NewClassifier(contentRepo, 10)

	state, item, err := classifier.Classify(blogItem("community_a", 0))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if state != ClassNew {
		t.Errorf("Expected NEW for unseen source_id, got %s", state)
	}
	if item.ContentType != content.TypeBlog {
		t.Errorf("NEW item must keep its content type, got %s", item.ContentType)
	}
}

func TestClassifyMonotonicCommentTracking(t *testing.T) {
	contentRepo, _ := newTestRepos(t)
	classifier := NewClassifier(contentRepo, 10)

	stored := blogItem("community_b", 5)
	if _, _, err := contentRepo.InsertItem(stored); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Equal count: unchanged
	state, _, err := classifier.Classify(blogItem("community_b", 5))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if state != ClassUnchanged {
		t.Errorf("Equal comment count should be UNCHANGED, got %s", state)
	}

	// Lower count: unchanged, no regression
	state, _, err = classifier.Classify(blogItem("community_b", 3))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if state != ClassUnchanged {
		t.Errorf("Lower comment count should be UNCHANGED, got %s", state)
	}

	// Strictly greater: updated, count persisted
	state, item, err := classifier.Classify(blogItem("community_b", 8))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if state != ClassUpdated {
		t.Fatalf("Greater comment count should be UPDATED, got %s", state)
	}
	if item.ContentType != "blog_updated" {
		t.Errorf("UPDATED item should be re-tagged blog_updated, got %s", item.ContentType)
	}

	count, err := contentRepo.GetCommentCount("community_b")
	if err != nil {
		t.Fatalf("GetCommentCount failed: %v", err)
	}
	if count == nil || *count != 8 {
		t.Fatalf("Expected persisted count 8, got %v", count)
	}

	// The previous high-water mark now wins against a replay
	state, _, err = classifier.Classify(blogItem("community_b", 8))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if state != ClassUnchanged {
		t.Errorf("Replay at the persisted count should be UNCHANGED, got %s", state)
	}
}

func TestClassifyQuestionRetagging(t *testing.T) {
	contentRepo, _ := newTestRepos(t)
	classifier := NewClassifier(contentRepo, 10)

	question := blogItem("community_q", 2)
	question.ContentType = content.TypeQuestion
	if _, _, err := contentRepo.InsertItem(question); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	incoming := question
	incoming.CommentCount = 4
	state, item, err := classifier.Classify(incoming)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if state != ClassUpdated {
		t.Fatalf("Expected UPDATED, got %s", state)
	}
	if item.ContentType != "question_updated" {
		t.Errorf("Expected content type question_updated, got %s", item.ContentType)
	}
}

func TestClassifyRedditNotCommentTracked(t *testing.T) {
	contentRepo, _ := newTestRepos(t)
	classifier := NewClassifier(contentRepo, 10)

	reddit := content.Item{
		Source:          content.SourceReddit,
		SourceID:        "reddit_abc",
		Title:           "Canvas thread",
		URL:             "https://reddit.com/r/canvas/abc",
		ContentType:     content.TypeReddit,
		EngagementScore: 10,
		CommentCount:    0,
	}
	if _, _, err := contentRepo.InsertItem(reddit); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Same source_id with different engagement: reddit has no update
	// path, so this is UNCHANGED.
	incoming := reddit
	incoming.EngagementScore = 25
	incoming.CommentCount = 7
	state, _, err := classifier.Classify(incoming)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if state != ClassUnchanged {
		t.Errorf("Reddit items should never be UPDATED, got %s", state)
	}

	count, err := contentRepo.GetCommentCount("reddit_abc")
	if err != nil {
		t.Fatalf("GetCommentCount failed: %v", err)
	}
	if count == nil || *count != 0 {
		t.Errorf("Reddit comment count should be untouched, got %v", count)
	}
}

func TestRunFirstRunLimit(t *testing.T) {
	contentRepo, _ := newTestRepos(t)
	classifier := NewClassifier(contentRepo, 2)

	items := []content.Item{
		blogItem("community_1", 0),
		blogItem("community_2", 0),
		blogItem("community_3", 0),
	}

	results, err := classifier.Run(items)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 classified results, got %d", len(results))
	}

	surfaced := 0
	for _, r := range results {
		if r.State != ClassNew {
			t.Errorf("Expected NEW on empty store, got %s", r.State)
		}
		if r.Surfaced {
			surfaced++
		}
	}
	if surfaced != 2 {
		t.Errorf("First-run limit 2 should surface 2 items, surfaced %d", surfaced)
	}
}

func TestRunNoLimitOnWarmStore(t *testing.T) {
	contentRepo, _ := newTestRepos(t)
	classifier := NewClassifier(contentRepo, 1)

	if _, _, err := contentRepo.InsertItem(blogItem("community_seed", 0)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	results, err := classifier.Run([]content.Item{
		blogItem("community_x", 0),
		blogItem("community_y", 0),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, r := range results {
		if !r.Surfaced {
			t.Error("First-run limit must not apply once the store has history")
		}
	}
}

func TestRunDropsUnchanged(t *testing.T) {
	contentRepo, _ := newTestRepos(t)
	classifier := NewClassifier(contentRepo, 10)

	if _, _, err := contentRepo.InsertItem(blogItem("community_old", 3)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	results, err := classifier.Run([]content.Item{blogItem("community_old", 3)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Unchanged items must be dropped from the output set, got %d results", len(results))
	}
}
