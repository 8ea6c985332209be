package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/lysyi3m/canvas-comb/app/content"
	"github.com/lysyi3m/canvas-comb/app/database"
)

type Classification string

const (
	ClassNew       Classification = "new"
	ClassUpdated   Classification = "updated"
	ClassUnchanged Classification = "unchanged"
)

// Result pairs an incoming item with its classification. Surfaced marks
// whether the item belongs in the run's output set (feed inclusion);
// items beyond the first-run limit are persisted but not surfaced.
type Result struct {
	Item     content.Item
	State    Classification
	Surfaced bool
}

// Classifier decides, per incoming item, whether it is new, an update
// (comment-count delta on comment-tracked types), or unchanged. The
// store is the authority; the classifier itself never inserts items.
type Classifier struct {
	contentRepo   database.ContentRepository
	firstRunLimit int
}

func NewClassifier(contentRepo database.ContentRepository, firstRunLimit int) *Classifier {
	return &Classifier{
		contentRepo:   contentRepo,
		firstRunLimit: firstRunLimit,
	}
}

// Run classifies a batch of incoming items. Unchanged items are dropped
// from the result. When the store is empty at run start, at most
// firstRunLimit new items are surfaced so a first run against an empty
// database does not flood the feed with historical backfill.
func (c *Classifier) Run(items []content.Item) ([]Result, error) {
	itemCount, err := c.contentRepo.GetItemCount()
	if err != nil {
		return nil, fmt.Errorf("failed to check store size: %w", err)
	}
	firstRun := itemCount == 0

	var results []Result
	surfacedNew := 0

	for _, item := range items {
		state, classified, err := c.Classify(item)
		if err != nil {
			return nil, err
		}
		if state == ClassUnchanged {
			continue
		}

		surfaced := true
		if state == ClassNew && firstRun {
			if surfacedNew >= c.firstRunLimit {
				surfaced = false
			} else {
				surfacedNew++
			}
		}

		results = append(results, Result{Item: classified, State: state, Surfaced: surfaced})
	}

	return results, nil
}

// Classify applies the per-item decision:
//
//   - unknown source_id: NEW
//   - known source_id with a comment-tracked type (blog, question) and a
//     strictly greater comment count: UPDATED, content type re-tagged
//     "<type>_updated", new count persisted
//   - everything else: UNCHANGED
//
// An item is never both inserted and update-tracked in the same run;
// insertion of NEW items is the caller's job.
func (c *Classifier) Classify(item content.Item) (Classification, content.Item, error) {
	exists, err := c.contentRepo.ItemExists(item.SourceID)
	if err != nil {
		return "", item, fmt.Errorf("failed to classify %s: %w", item.SourceID, err)
	}

	if !exists {
		return ClassNew, item, nil
	}

	if !item.ContentType.CommentTracked() {
		return ClassUnchanged, item, nil
	}

	prev, err := c.contentRepo.GetCommentCount(item.SourceID)
	if err != nil {
		return "", item, fmt.Errorf("failed to read comment count for %s: %w", item.SourceID, err)
	}

	// Comment counts are monotonic: only a strict increase is an update.
	if prev == nil || item.CommentCount <= *prev {
		return ClassUnchanged, item, nil
	}

	item.ContentType = item.ContentType.Updated()
	if err := c.contentRepo.UpdateCommentCount(item.SourceID, item.CommentCount); err != nil {
		return "", item, fmt.Errorf("failed to persist comment count for %s: %w", item.SourceID, err)
	}

	slog.Debug("Item updated", "source_id", item.SourceID, "comment_count", item.CommentCount, "previous", *prev)
	return ClassUpdated, item, nil
}
