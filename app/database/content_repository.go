package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lysyi3m/canvas-comb/app/content"
)

var _ ContentRepository = (*ContentRepo)(nil)

// ContentRepo handles database operations for content items
type ContentRepo struct {
	db *DB
}

func NewContentRepo(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

// ItemExists checks whether a source_id is already persisted.
func (r *ContentRepo) ItemExists(sourceID string) (bool, error) {
	var one int
	err := r.db.QueryRow(`SELECT 1 FROM content_items WHERE source_id = ? LIMIT 1`, sourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return true, nil
}

// InsertItem persists a canonical item. The second return value reports
// whether a row was actually inserted: false means the source_id was
// already present, which is the dedup gate all ingestion passes
// through, not an error. The INSERT OR IGNORE keeps the check atomic.
func (r *ContentRepo) InsertItem(item content.Item) (string, bool, error) {
	topicsJSON, err := json.Marshal(topicsOrEmpty(item.Topics))
	if err != nil {
		return "", false, fmt.Errorf("failed to marshal topics: %w", err)
	}

	id := uuid.New().String()
	res, err := r.db.Exec(`
		INSERT OR IGNORE INTO content_items (
			id, source, source_id, title, url, content, content_type,
			summary, sentiment, primary_topic, topics, published_date,
			engagement_score, comment_count,
			first_posted, last_edited, last_comment_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, string(item.Source), item.SourceID, item.Title, item.URL, item.Content,
		string(item.ContentType), item.Summary, item.Sentiment, item.PrimaryTopic,
		string(topicsJSON), nullTime(item.PublishedDate), item.EngagementScore,
		item.CommentCount, item.FirstPosted, item.LastEdited, item.LastCommentAt)
	if err != nil {
		return "", false, fmt.Errorf("failed to insert item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to read insert result: %w", err)
	}

	if affected == 0 {
		existing, err := r.GetItemBySourceID(item.SourceID)
		if err != nil {
			return "", false, err
		}
		if existing == nil {
			return "", false, fmt.Errorf("duplicate item %s disappeared during insert", item.SourceID)
		}
		return existing.ID, false, nil
	}

	return id, true, nil
}

func (r *ContentRepo) GetItemBySourceID(sourceID string) (*Item, error) {
	row := r.db.QueryRow(itemSelect+` WHERE source_id = ?`, sourceID)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *ContentRepo) GetRecentItems(limit int) ([]Item, error) {
	rows, err := r.db.Query(itemSelect+`
		ORDER BY published_date DESC, created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (r *ContentRepo) GetItemCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM content_items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// GetCommentCount returns the stored comment count, or nil when the
// source_id is unknown.
func (r *ContentRepo) GetCommentCount(sourceID string) (*int, error) {
	var count int
	err := r.db.QueryRow(`SELECT comment_count FROM content_items WHERE source_id = ?`, sourceID).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment count: %w", err)
	}
	return &count, nil
}

func (r *ContentRepo) UpdateCommentCount(sourceID string, count int) error {
	_, err := r.db.Exec(`
		UPDATE content_items
		SET comment_count = ?, last_checked_at = ?
		WHERE source_id = ?`, count, time.Now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update comment count: %w", err)
	}
	return nil
}

// UpdateItemType re-tags a stored item. Used when an update sighting
// moves a blog or question item to its "<type>_updated" type.
func (r *ContentRepo) UpdateItemType(sourceID, contentType string) error {
	_, err := r.db.Exec(`
		UPDATE content_items
		SET content_type = ?
		WHERE source_id = ?`, contentType, sourceID)
	if err != nil {
		return fmt.Errorf("failed to update content type: %w", err)
	}
	return nil
}

// UpdateItemTracking stamps last_checked_at and optionally advances
// last_comment_at and comment_count. Returns false when the source_id
// is not persisted.
func (r *ContentRepo) UpdateItemTracking(sourceID string, lastCommentAt *time.Time, commentCount *int) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE content_items
		SET last_comment_at = COALESCE(?, last_comment_at),
		    comment_count = COALESCE(?, comment_count),
		    last_checked_at = ?
		WHERE source_id = ?`, lastCommentAt, nullInt(commentCount), time.Now(), sourceID)
	if err != nil {
		return false, fmt.Errorf("failed to update item tracking: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read tracking result: %w", err)
	}
	return affected > 0, nil
}

func (r *ContentRepo) UpdateItemEnrichment(sourceID string, summary, sentiment, primaryTopic string, topics []string) error {
	topicsJSON, err := json.Marshal(topicsOrEmpty(topics))
	if err != nil {
		return fmt.Errorf("failed to marshal topics: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE content_items
		SET summary = ?, sentiment = ?, primary_topic = ?, topics = ?
		WHERE source_id = ?`, summary, sentiment, primaryTopic, string(topicsJSON), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update enrichment: %w", err)
	}
	return nil
}

// AddComment stores a scraped comment snapshot. Re-scraping the same
// comment is absorbed by the (content_id, author, posted_at) unique
// constraint.
func (r *ContentRepo) AddComment(contentID, author, body string, postedAt *time.Time) error {
	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO content_comments (id, content_id, author, body, posted_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), contentID, author, body, postedAt)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}
	return nil
}

func (r *ContentRepo) GetComments(contentID string) ([]ContentComment, error) {
	rows, err := r.db.Query(`
		SELECT id, content_id, author, body, posted_at, created_at
		FROM content_comments
		WHERE content_id = ?
		ORDER BY posted_at`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	var comments []ContentComment
	for rows.Next() {
		var c ContentComment
		var postedAt, createdAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.ContentID, &c.Author, &c.Body, &postedAt, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.PostedAt = timePtr(postedAt)
		c.CreatedAt = createdAt.Time
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *ContentRepo) RecordFeedRun(itemCount, newCount, updatedCount int) error {
	_, err := r.db.Exec(`
		INSERT INTO feed_history (run_at, item_count, new_count, updated_count)
		VALUES (?, ?, ?, ?)`, time.Now(), itemCount, newCount, updatedCount)
	if err != nil {
		return fmt.Errorf("failed to record feed run: %w", err)
	}
	return nil
}

func (r *ContentRepo) GetLastFeedRun() (*FeedRun, error) {
	var run FeedRun
	var runAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, run_at, item_count, new_count, updated_count
		FROM feed_history
		ORDER BY id DESC LIMIT 1`).Scan(&run.ID, &runAt, &run.ItemCount, &run.NewCount, &run.UpdatedCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last feed run: %w", err)
	}
	run.RunAt = runAt.Time
	return &run, nil
}

func (r *ContentRepo) GetStats() (*Stats, error) {
	var stats Stats

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM content_items`, &stats.ItemCount},
		{`SELECT COUNT(*) FROM features`, &stats.FeatureCount},
		{`SELECT COUNT(*) FROM feature_options`, &stats.OptionCount},
		{`SELECT COUNT(*) FROM feature_announcements`, &stats.AnnouncementCount},
	}
	for _, c := range counts {
		if err := r.db.QueryRow(c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to gather stats: %w", err)
		}
	}

	lastRun, err := r.GetLastFeedRun()
	if err != nil {
		return nil, err
	}
	if lastRun != nil {
		stats.LastFeedRun = &lastRun.RunAt
	}

	return &stats, nil
}

const itemSelect = `
	SELECT id, source, source_id, title, url, content, content_type,
	       summary, sentiment, primary_topic, topics, published_date,
	       engagement_score, comment_count,
	       first_posted, last_edited, last_comment_at, last_checked_at,
	       created_at
	FROM content_items`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var topicsJSON string
	var publishedDate, firstPosted, lastEdited, lastCommentAt, lastCheckedAt, createdAt sql.NullTime

	err := row.Scan(&item.ID, &item.Source, &item.SourceID, &item.Title, &item.URL,
		&item.Content, &item.ContentType, &item.Summary, &item.Sentiment,
		&item.PrimaryTopic, &topicsJSON, &publishedDate, &item.EngagementScore,
		&item.CommentCount, &firstPosted, &lastEdited, &lastCommentAt,
		&lastCheckedAt, &createdAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(topicsJSON), &item.Topics); err != nil {
		item.Topics = nil
	}
	item.PublishedDate = timePtr(publishedDate)
	item.FirstPosted = timePtr(firstPosted)
	item.LastEdited = timePtr(lastEdited)
	item.LastCommentAt = timePtr(lastCommentAt)
	item.LastCheckedAt = timePtr(lastCheckedAt)
	item.CreatedAt = createdAt.Time

	return &item, nil
}

func topicsOrEmpty(topics []string) []string {
	if topics == nil {
		return []string{}
	}
	return topics
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
