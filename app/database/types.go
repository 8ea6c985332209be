package database

import (
	"errors"
	"time"
)

// ErrInvalidArgument signals a caller contract violation on a store
// operation (e.g. a content-feature ref with neither feature nor option).
var ErrInvalidArgument = errors.New("invalid argument")

// Item is a persisted content item row.
type Item struct {
	ID              string
	Source          string
	SourceID        string
	Title           string
	URL             string
	Content         string
	ContentType     string
	Summary         string
	Sentiment       string
	PrimaryTopic    string
	Topics          []string
	PublishedDate   *time.Time
	EngagementScore int
	CommentCount    int
	FirstPosted     *time.Time
	LastEdited      *time.Time
	LastCommentAt   *time.Time
	LastCheckedAt   *time.Time
	CreatedAt       time.Time
}

// Feature is one entry of the canonical feature taxonomy.
type Feature struct {
	FeatureID      string
	Name           string
	Description    *string
	Status         string
	LLMGeneratedAt *time.Time
	CreatedAt      time.Time
}

// FeatureOption is a configurable sub-feature with its own rollout
// lifecycle. OptionID never contains scrape-time annotation fragments;
// ingestion normalizes before upserting and the startup repair pass
// merges any historical polluted rows.
type FeatureOption struct {
	OptionID        string
	FeatureID       string
	Name            string
	CanonicalName   string
	Status          string
	ConfigLevel     *string
	DefaultState    *string
	BetaDate        *time.Time
	ProductionDate  *time.Time
	DeprecationDate *time.Time
	FirstSeen       time.Time
	LastSeen        time.Time
	LastUpdated     time.Time
	MetaSummary     *string
}

// FeatureAnnouncement is one feature/option mention inside one content
// item, holding the point-in-time configuration snapshot. The
// (content_id, anchor_id) pair is unique, enforced by callers through
// AnnouncementExists.
type FeatureAnnouncement struct {
	ID             string
	ContentID      string
	FeatureID      string
	OptionID       string
	AnchorID       string
	EnableLocation *string
	Permissions    *string
	AffectedAreas  *string
	RelatedIdeas   *string
	BetaDate       *time.Time
	ProductionDate *time.Time
	CreatedAt      time.Time
}

// ContentFeatureRef links a content item to a feature and/or option.
type ContentFeatureRef struct {
	ContentID   string
	FeatureID   string
	OptionID    string
	MentionType string
	CreatedAt   time.Time
}

type UpcomingChange struct {
	ContentID   string
	ChangeDate  time.Time
	Description string
	CreatedAt   time.Time
}

type ContentComment struct {
	ID        string
	ContentID string
	Author    string
	Body      string
	PostedAt  *time.Time
	CreatedAt time.Time
}

type FeedRun struct {
	ID           int64
	RunAt        time.Time
	ItemCount    int
	NewCount     int
	UpdatedCount int
}

// Stats summarizes store contents for the /stats endpoint.
type Stats struct {
	ItemCount         int
	FeatureCount      int
	OptionCount       int
	AnnouncementCount int
	LastFeedRun       *time.Time
}
