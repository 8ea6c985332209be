package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/lysyi3m/canvas-comb/app/content"
	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/enrich"
	"github.com/lysyi3m/canvas-comb/app/pipeline"
	"github.com/lysyi3m/canvas-comb/app/sources"
)

type fakeCommunity struct {
	posts        []content.CommunityPost
	releasePages []*content.ReleaseNotePage
	deployPages  []*content.DeployNotePage
}

func (f *fakeCommunity) FetchPosts(ctx context.Context, config *sources.Config) ([]content.CommunityPost, error) {
	return f.posts, nil
}

func (f *fakeCommunity) FetchReleaseNotePages(ctx context.Context, config *sources.Config) ([]*content.ReleaseNotePage, error) {
	return f.releasePages, nil
}

func (f *fakeCommunity) FetchDeployNotePages(ctx context.Context, config *sources.Config) ([]*content.DeployNotePage, error) {
	return f.deployPages, nil
}

type fakeReddit struct {
	posts []content.RedditPost
}

func (f *fakeReddit) FetchPosts(ctx context.Context, config *sources.Config) ([]content.RedditPost, error) {
	return f.posts, nil
}

type fakeStatus struct {
	incidents []content.Incident
}

func (f *fakeStatus) FetchIncidents(ctx context.Context, config *sources.Config) ([]content.Incident, error) {
	return f.incidents, nil
}

type taskEnv struct {
	contentRepo database.ContentRepository
	featureRepo database.FeatureRepository
	classifier  *pipeline.Classifier
	linker      *pipeline.Linker
	enricher    *enrich.Service
}

func newTaskEnv(t *testing.T) *taskEnv {
	t.Helper()

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

	linker, err := pipeline.NewLinker(featureRepo)
	if err != nil {
		t.Fatalf("Failed to build linker: %v", err)
	}

	return &taskEnv{
		contentRepo: contentRepo,
		featureRepo: featureRepo,
		classifier:  pipeline.NewClassifier(contentRepo, 100),
		linker:      linker,
		enricher:    enrich.NewService(nil, 0),
	}
}

func communityConfig() *sources.Config {
	return &sources.Config{
		Name:     "community",
		Type:     "community",
		Settings: sources.ConfigSettings{Enabled: true, MaxItems: 25, Timeout: 5},
		Community: &sources.CommunityConfig{
			BlogFeedURL: "https://community.example.com/blog.rss",
		},
	}
}

func TestAggregateCommunitySource(t *testing.T) {
	env := newTaskEnv(t)

	commented := time.Date(2026, 1, 7, 8, 0, 0, 0, time.UTC)
	community := &fakeCommunity{
		posts: []content.CommunityPost{
			{
				Title:         "Gradebook tips",
				URL:           "https://community.example.com/blog/gradebook-tips",
				Content:       "How to use the gradebook effectively.",
				PublishedDate: time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC),
				Likes:         5,
				Comments:      1,
				PostType:      "blog",
				CommentList: []content.Comment{
					{Author: "alice", Body: "Very helpful", PostedAt: commented},
				},
			},
		},
		releasePages: []*content.ReleaseNotePage{
			{
				Title:       "Canvas Release Notes (2026-01-17)",
				URL:         "https://community.example.com/release-notes/2026-01-17",
				ReleaseDate: time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC),
				Features: []content.FeatureRecord{
					{
						Category: "Gradebook",
						Name:     "Message Observers",
						AnchorID: "message-observers",
					},
				},
			},
		},
	}

	task := NewAggregateSourceTask(communityConfig(), community, nil, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	count, err := env.contentRepo.GetItemCount()
	if err != nil {
		t.Fatalf("GetItemCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 items (post + page), got %d", count)
	}

	post, err := env.contentRepo.GetItemBySourceID("community_" + content.Slugify("https://community.example.com/blog/gradebook-tips"))
	if err != nil || post == nil {
		t.Fatalf("Expected stored blog post, got %v, %v", post, err)
	}
	if post.Summary == "" {
		t.Error("Expected surfaced item to carry fallback enrichment")
	}

	comments, err := env.contentRepo.GetComments(post.ID)
	if err != nil {
		t.Fatalf("GetComments failed: %v", err)
	}
	if len(comments) != 1 || comments[0].Author != "alice" {
		t.Errorf("Expected stored comment from alice, got %v", comments)
	}

	page, err := env.contentRepo.GetItemBySourceID("community_" + content.Slugify("https://community.example.com/release-notes/2026-01-17"))
	if err != nil || page == nil {
		t.Fatalf("Expected stored release page, got %v, %v", page, err)
	}
	exists, err := env.featureRepo.AnnouncementExists(page.ID, "message-observers")
	if err != nil {
		t.Fatalf("AnnouncementExists failed: %v", err)
	}
	if !exists {
		t.Error("Expected announcement linked from release page")
	}

	run, err := env.contentRepo.GetLastFeedRun()
	if err != nil || run == nil {
		t.Fatalf("Expected feed run recorded, got %v, %v", run, err)
	}
	if run.ItemCount != 2 || run.NewCount != 2 || run.UpdatedCount != 0 {
		t.Errorf("Unexpected feed run counts: %+v", run)
	}
}

func TestAggregateCommunitySourceRerunIsIdempotent(t *testing.T) {
	env := newTaskEnv(t)

	community := &fakeCommunity{
		releasePages: []*content.ReleaseNotePage{
			{
				Title:       "Canvas Release Notes (2026-01-17)",
				URL:         "https://community.example.com/release-notes/2026-01-17",
				ReleaseDate: time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC),
				Features: []content.FeatureRecord{
					{Category: "Gradebook", Name: "Message Observers", AnchorID: "message-observers"},
				},
			},
		},
	}

	task := NewAggregateSourceTask(communityConfig(), community, nil, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("First execute failed: %v", err)
	}

	// Re-scrape with one new anchor added to the same page.
	community.releasePages[0].Features = append(community.releasePages[0].Features,
		content.FeatureRecord{Category: "Quizzes", Name: "Item Analysis", AnchorID: "item-analysis"})

	rerun := NewAggregateSourceTask(communityConfig(), community, nil, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := rerun.Execute(context.Background()); err != nil {
		t.Fatalf("Second execute failed: %v", err)
	}

	count, _ := env.contentRepo.GetItemCount()
	if count != 1 {
		t.Errorf("Expected page deduplicated on rerun, got %d items", count)
	}

	page, _ := env.contentRepo.GetItemBySourceID("community_" + content.Slugify("https://community.example.com/release-notes/2026-01-17"))
	announcements, err := env.featureRepo.GetAnnouncementsByContent(page.ID)
	if err != nil {
		t.Fatalf("GetAnnouncementsByContent failed: %v", err)
	}
	if len(announcements) != 2 {
		t.Errorf("Expected new anchor linked on rerun, got %d announcements", len(announcements))
	}

	run, _ := env.contentRepo.GetLastFeedRun()
	if run.NewCount != 0 {
		t.Errorf("Expected no new items on rerun, got %d", run.NewCount)
	}
}

func TestAggregateCommunitySourceUpdatePersistsRetag(t *testing.T) {
	env := newTaskEnv(t)

	community := &fakeCommunity{
		posts: []content.CommunityPost{
			{
				Title:         "How do I weight assignment groups?",
				URL:           "https://community.example.com/q/weight-groups",
				Content:       "Looking for the right course setting.",
				PublishedDate: time.Date(2026, 1, 6, 10, 0, 0, 0, time.UTC),
				Comments:      2,
				PostType:      "question",
			},
		},
	}

	task := NewAggregateSourceTask(communityConfig(), community, nil, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("First execute failed: %v", err)
	}

	// The question gains comments between runs.
	lastComment := time.Date(2026, 1, 8, 9, 30, 0, 0, time.UTC)
	community.posts[0].Comments = 4
	community.posts[0].LastCommentAt = &lastComment

	rerun := NewAggregateSourceTask(communityConfig(), community, nil, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := rerun.Execute(context.Background()); err != nil {
		t.Fatalf("Second execute failed: %v", err)
	}

	item, err := env.contentRepo.GetItemBySourceID("community_" + content.Slugify("https://community.example.com/q/weight-groups"))
	if err != nil || item == nil {
		t.Fatalf("Expected stored question, got %v, %v", item, err)
	}
	if item.ContentType != "question_updated" {
		t.Errorf("Expected stored type question_updated after update, got '%s'", item.ContentType)
	}
	if item.CommentCount != 4 {
		t.Errorf("Expected persisted comment count 4, got %d", item.CommentCount)
	}
	if item.LastCommentAt == nil || !item.LastCommentAt.Equal(lastComment) {
		t.Errorf("Expected persisted last_comment_at %v, got %v", lastComment, item.LastCommentAt)
	}

	run, _ := env.contentRepo.GetLastFeedRun()
	if run.UpdatedCount != 1 {
		t.Errorf("Expected 1 updated item in the run, got %d", run.UpdatedCount)
	}
}

func TestAggregateRedditSource(t *testing.T) {
	env := newTaskEnv(t)

	reddit := &fakeReddit{
		posts: []content.RedditPost{
			{
				SourceID:      "reddit_1abc",
				Title:         "Gradebook question",
				URL:           "https://www.reddit.com/r/canvas/comments/1abc",
				Content:       "How do I weight grades?",
				Score:         10,
				NumComments:   4,
				PublishedDate: time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC),
			},
		},
	}

	config := &sources.Config{
		Name:     "reddit",
		Type:     "reddit",
		Settings: sources.ConfigSettings{Enabled: true, MaxItems: 25, Timeout: 5},
		Reddit:   &sources.RedditConfig{Subreddits: []string{"canvas"}},
	}

	task := NewAggregateSourceTask(config, nil, reddit, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	item, err := env.contentRepo.GetItemBySourceID("reddit_1abc")
	if err != nil || item == nil {
		t.Fatalf("Expected stored reddit post, got %v, %v", item, err)
	}
	if item.EngagementScore != 14 {
		t.Errorf("Expected engagement 14, got %d", item.EngagementScore)
	}

	refs, err := env.featureRepo.GetRefsByContent(item.ID)
	if err != nil {
		t.Fatalf("GetRefsByContent failed: %v", err)
	}
	foundGradebook := false
	for _, ref := range refs {
		if ref.FeatureID == "gradebook" {
			foundGradebook = true
			if ref.MentionType != "discusses" {
				t.Errorf("Reddit mentions should use type discusses, got %s", ref.MentionType)
			}
		}
	}
	if !foundGradebook {
		t.Error("Expected keyword-matched gradebook ref for reddit post")
	}

	// Reddit items are not comment-tracked: a higher comment count on
	// rerun must not produce an update.
	reddit.posts[0].NumComments = 9
	rerun := NewAggregateSourceTask(config, nil, reddit, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := rerun.Execute(context.Background()); err != nil {
		t.Fatalf("Rerun failed: %v", err)
	}
	run, _ := env.contentRepo.GetLastFeedRun()
	if run.NewCount != 0 || run.UpdatedCount != 0 {
		t.Errorf("Expected unchanged rerun, got %+v", run)
	}
}

func TestAggregateStatusSource(t *testing.T) {
	env := newTaskEnv(t)

	status := &fakeStatus{
		incidents: []content.Incident{
			{
				SourceID:  "abc123",
				Title:     "Elevated error rates",
				URL:       "https://stspg.io/abc123",
				Status:    "resolved",
				Impact:    "major",
				Content:   "[resolved] This incident has been resolved.",
				CreatedAt: time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
				UpdatedAt: time.Date(2026, 1, 5, 12, 30, 0, 0, time.UTC),
			},
		},
	}

	config := &sources.Config{
		Name:     "status",
		Type:     "status",
		Settings: sources.ConfigSettings{Enabled: true, MaxItems: 25, Timeout: 5},
		Status:   &sources.StatusConfig{IncidentsURL: "https://status.example.com/api/v2/incidents.json"},
	}

	task := NewAggregateSourceTask(config, nil, nil, status,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	item, err := env.contentRepo.GetItemBySourceID("status_abc123")
	if err != nil || item == nil {
		t.Fatalf("Expected stored incident, got %v, %v", item, err)
	}
	if item.Title != "[MAJOR] Elevated error rates" {
		t.Errorf("Expected impact prefix on title, got '%s'", item.Title)
	}
}

func TestAggregateUnknownSourceType(t *testing.T) {
	env := newTaskEnv(t)

	config := &sources.Config{Name: "weird", Type: "carrier-pigeon"}
	task := NewAggregateSourceTask(config, nil, nil, nil,
		env.contentRepo, env.featureRepo, env.classifier, env.linker, env.enricher)
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error for unknown source type")
	}
}
