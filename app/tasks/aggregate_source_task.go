package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/canvas-comb/app/content"
	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/enrich"
	"github.com/lysyi3m/canvas-comb/app/pipeline"
	"github.com/lysyi3m/canvas-comb/app/sources"
)

// AggregateSourceTask runs one full aggregation pass for a single
// source: fetch, convert, classify, enrich surfaced new items, persist,
// and link feature announcements. One task per source config per sweep.
type AggregateSourceTask struct {
	Task
	config *sources.Config

	community CommunitySource
	reddit    RedditSource
	status    StatusSource

	contentRepo database.ContentRepository
	featureRepo database.FeatureRepository
	classifier  *pipeline.Classifier
	linker      *pipeline.Linker
	enricher    *enrich.Service
}

func NewAggregateSourceTask(config *sources.Config, community CommunitySource, reddit RedditSource,
	status StatusSource, contentRepo database.ContentRepository, featureRepo database.FeatureRepository,
	classifier *pipeline.Classifier, linker *pipeline.Linker, enricher *enrich.Service) *AggregateSourceTask {
	return &AggregateSourceTask{
		Task:        NewTask(TaskTypeAggregateSource, config.Name),
		config:      config,
		community:   community,
		reddit:      reddit,
		status:      status,
		contentRepo: contentRepo,
		featureRepo: featureRepo,
		classifier:  classifier,
		linker:      linker,
		enricher:    enricher,
	}
}

func (t *AggregateSourceTask) Execute(ctx context.Context) error {
	switch t.config.Type {
	case "community":
		return t.aggregateCommunity(ctx)
	case "reddit":
		return t.aggregateReddit(ctx)
	case "status":
		return t.aggregateStatus(ctx)
	default:
		return fmt.Errorf("unknown source type '%s'", t.config.Type)
	}
}

func (t *AggregateSourceTask) aggregateCommunity(ctx context.Context) error {
	posts, err := t.community.FetchPosts(ctx, t.config)
	if err != nil {
		return fmt.Errorf("failed to fetch community posts: %w", err)
	}
	releasePages, err := t.community.FetchReleaseNotePages(ctx, t.config)
	if err != nil {
		return fmt.Errorf("failed to fetch release note pages: %w", err)
	}
	deployPages, err := t.community.FetchDeployNotePages(ctx, t.config)
	if err != nil {
		return fmt.Errorf("failed to fetch deploy note pages: %w", err)
	}

	postBySource := make(map[string]content.CommunityPost, len(posts))
	items := make([]content.Item, 0, len(posts)+len(releasePages)+len(deployPages))
	for _, post := range posts {
		item := content.FromCommunityPost(post)
		postBySource[item.SourceID] = post
		items = append(items, item)
	}
	for _, page := range releasePages {
		items = append(items, content.FromReleaseNotePage(*page))
	}
	for _, page := range deployPages {
		items = append(items, content.FromDeployNotePage(*page))
	}

	results, err := t.classifier.Run(items)
	if err != nil {
		return err
	}

	ids, newCount, updatedCount, err := t.persist(ctx, results)
	if err != nil {
		return err
	}

	for sourceID, post := range postBySource {
		contentID, ok := ids[sourceID]
		if !ok {
			continue
		}
		for _, comment := range post.CommentList {
			postedAt := comment.PostedAt
			if err := t.contentRepo.AddComment(contentID, comment.Author, comment.Body, &postedAt); err != nil {
				return fmt.Errorf("failed to store comment: %w", err)
			}
		}
		item, err := t.contentRepo.GetItemBySourceID(sourceID)
		if err != nil {
			return err
		}
		if item != nil {
			if _, err := t.linker.LinkMentions(contentID, toContentItem(*item)); err != nil {
				return err
			}
		}
	}

	// Pages are linked on every run, not only when new: a re-scraped
	// page can carry anchors that were added since it was first seen.
	var linkStats pipeline.LinkStats
	for _, page := range releasePages {
		contentID, err := t.contentID(ids, content.FromReleaseNotePage(*page).SourceID)
		if err != nil {
			return err
		}
		if contentID == "" {
			continue
		}
		stats, err := t.linker.LinkReleasePage(contentID, *page)
		if err != nil {
			return fmt.Errorf("failed to link release page %s: %w", page.URL, err)
		}
		linkStats.NewAnnouncements += stats.NewAnnouncements
		linkStats.KnownAnchors += stats.KnownAnchors
		linkStats.UpcomingChanges += stats.UpcomingChanges
	}
	for _, page := range deployPages {
		contentID, err := t.contentID(ids, content.FromDeployNotePage(*page).SourceID)
		if err != nil {
			return err
		}
		if contentID == "" {
			continue
		}
		stats, err := t.linker.LinkDeployPage(contentID, *page)
		if err != nil {
			return fmt.Errorf("failed to link deploy page %s: %w", page.URL, err)
		}
		linkStats.NewAnnouncements += stats.NewAnnouncements
		linkStats.KnownAnchors += stats.KnownAnchors
	}

	if err := t.contentRepo.RecordFeedRun(len(items), newCount, updatedCount); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "AggregateSource",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(items),
		"new", newCount,
		"updated", updatedCount,
		"announcements", linkStats.NewAnnouncements,
		"known_anchors", linkStats.KnownAnchors)

	return nil
}

func (t *AggregateSourceTask) aggregateReddit(ctx context.Context) error {
	posts, err := t.reddit.FetchPosts(ctx, t.config)
	if err != nil {
		return fmt.Errorf("failed to fetch reddit posts: %w", err)
	}

	items := make([]content.Item, 0, len(posts))
	for _, post := range posts {
		items = append(items, content.FromRedditPost(post))
	}

	return t.classifyAndPersist(ctx, items, true)
}

func (t *AggregateSourceTask) aggregateStatus(ctx context.Context) error {
	incidents, err := t.status.FetchIncidents(ctx, t.config)
	if err != nil {
		return fmt.Errorf("failed to fetch incidents: %w", err)
	}

	items := make([]content.Item, 0, len(incidents))
	for _, incident := range incidents {
		items = append(items, content.FromIncident(incident))
	}

	return t.classifyAndPersist(ctx, items, false)
}

// classifyAndPersist is the shared tail for sources without page-level
// announcements. linkMentions enables keyword-matched feature refs for
// the rows touched this run.
func (t *AggregateSourceTask) classifyAndPersist(ctx context.Context, items []content.Item, linkMentions bool) error {
	results, err := t.classifier.Run(items)
	if err != nil {
		return err
	}

	ids, newCount, updatedCount, err := t.persist(ctx, results)
	if err != nil {
		return err
	}

	if linkMentions {
		for _, res := range results {
			contentID, ok := ids[res.Item.SourceID]
			if !ok {
				continue
			}
			if _, err := t.linker.LinkMentions(contentID, res.Item); err != nil {
				return err
			}
		}
	}

	if err := t.contentRepo.RecordFeedRun(len(items), newCount, updatedCount); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "AggregateSource",
		"source", t.SourceName,
		"duration", t.GetDuration(),
		"total", len(items),
		"new", newCount,
		"updated", updatedCount)

	return nil
}

// persist stores classified items and returns the content ids of the
// rows touched this run, keyed by source_id. Surfaced new items are
// enriched before insert; overflow items beyond the first-run limit are
// stored with fallback-free fields and can be backfilled later.
func (t *AggregateSourceTask) persist(ctx context.Context, results []pipeline.Result) (map[string]string, int, int, error) {
	ids := make(map[string]string, len(results))
	var newCount, updatedCount int

	for _, res := range results {
		switch res.State {
		case pipeline.ClassNew:
			item := res.Item
			if res.Surfaced {
				t.enricher.Enrich(ctx, &item)
				newCount++
			}
			id, _, err := t.contentRepo.InsertItem(item)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("failed to insert item %s: %w", item.SourceID, err)
			}
			ids[item.SourceID] = id

		case pipeline.ClassUpdated:
			updatedCount++
			// The classifier has already persisted the new comment count;
			// the re-tagged type and comment timestamp land here so the
			// update is visible to feed and API reads.
			if err := t.contentRepo.UpdateItemType(res.Item.SourceID, string(res.Item.ContentType)); err != nil {
				return nil, 0, 0, err
			}
			if _, err := t.contentRepo.UpdateItemTracking(res.Item.SourceID, res.Item.LastCommentAt, nil); err != nil {
				return nil, 0, 0, err
			}
			stored, err := t.contentRepo.GetItemBySourceID(res.Item.SourceID)
			if err != nil {
				return nil, 0, 0, err
			}
			if stored != nil {
				ids[res.Item.SourceID] = stored.ID
			}
		}
	}

	return ids, newCount, updatedCount, nil
}

// contentID resolves a source id to its content row, falling back to a
// store lookup for items the classifier dropped as unchanged.
func (t *AggregateSourceTask) contentID(ids map[string]string, sourceID string) (string, error) {
	if id, ok := ids[sourceID]; ok {
		return id, nil
	}
	stored, err := t.contentRepo.GetItemBySourceID(sourceID)
	if err != nil || stored == nil {
		return "", err
	}
	return stored.ID, nil
}

func toContentItem(item database.Item) content.Item {
	converted := content.Item{
		Source:          content.Source(item.Source),
		SourceID:        item.SourceID,
		Title:           item.Title,
		URL:             item.URL,
		Content:         item.Content,
		ContentType:     content.Type(item.ContentType),
		Summary:         item.Summary,
		Sentiment:       item.Sentiment,
		PrimaryTopic:    item.PrimaryTopic,
		Topics:          item.Topics,
		EngagementScore: item.EngagementScore,
		CommentCount:    item.CommentCount,
		FirstPosted:     item.FirstPosted,
		LastEdited:      item.LastEdited,
		LastCommentAt:   item.LastCommentAt,
	}
	if item.PublishedDate != nil {
		converted.PublishedDate = *item.PublishedDate
	}
	return converted
}
