package database

import (
	"time"

	"github.com/lysyi3m/canvas-comb/app/content"
)

type ContentRepository interface {
	ItemExists(sourceID string) (bool, error)
	InsertItem(item content.Item) (string, bool, error)
	GetItemBySourceID(sourceID string) (*Item, error)
	GetRecentItems(limit int) ([]Item, error)
	GetItemCount() (int, error)

	GetCommentCount(sourceID string) (*int, error)
	UpdateCommentCount(sourceID string, count int) error
	UpdateItemType(sourceID, contentType string) error
	UpdateItemTracking(sourceID string, lastCommentAt *time.Time, commentCount *int) (bool, error)
	UpdateItemEnrichment(sourceID string, summary, sentiment, primaryTopic string, topics []string) error

	AddComment(contentID, author, body string, postedAt *time.Time) error
	GetComments(contentID string) ([]ContentComment, error)

	RecordFeedRun(itemCount, newCount, updatedCount int) error
	GetLastFeedRun() (*FeedRun, error)

	GetStats() (*Stats, error)
}

type FeatureRepository interface {
	SeedFeatures() (int, error)
	GetFeature(featureID string) (*Feature, error)
	GetFeatures() ([]Feature, error)
	GetFeaturesMissingDescription() ([]Feature, error)
	UpdateFeatureDescription(featureID, description string) error

	UpsertFeatureOption(opt FeatureOption) error
	GetOption(optionID string) (*FeatureOption, error)
	GetFeatureOptions(featureID string) ([]FeatureOption, error)

	AddContentFeatureRef(contentID, featureID, optionID, mentionType string) error
	GetRefsByContent(contentID string) ([]ContentFeatureRef, error)

	InsertFeatureAnnouncement(a FeatureAnnouncement) (string, error)
	AnnouncementExists(contentID, anchorID string) (bool, error)
	GetAnnouncementsByContent(contentID string) ([]FeatureAnnouncement, error)
	GetAnnouncementsByOption(optionID string) ([]FeatureAnnouncement, error)

	InsertUpcomingChange(contentID string, changeDate time.Time, description string) error
	UpcomingChangeExists(contentID string, changeDate time.Time, description string) (bool, error)

	RepairOptionIDs() (int, error)
}
