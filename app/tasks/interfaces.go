package tasks

import (
	"context"

	"github.com/lysyi3m/canvas-comb/app/content"
	"github.com/lysyi3m/canvas-comb/app/sources"
)

// TaskSchedulerInterface is what the rest of the application sees of
// the background worker pool. EnqueueAggregation is the manual-trigger
// entry point used by the API.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueAggregation() (int, error)
}

// Source client boundaries. The concrete sources.* clients satisfy
// these; task tests substitute fakes so no network is involved.

type CommunitySource interface {
	FetchPosts(ctx context.Context, config *sources.Config) ([]content.CommunityPost, error)
	FetchReleaseNotePages(ctx context.Context, config *sources.Config) ([]*content.ReleaseNotePage, error)
	FetchDeployNotePages(ctx context.Context, config *sources.Config) ([]*content.DeployNotePage, error)
}

type RedditSource interface {
	FetchPosts(ctx context.Context, config *sources.Config) ([]content.RedditPost, error)
}

type StatusSource interface {
	FetchIncidents(ctx context.Context, config *sources.Config) ([]content.Incident, error)
}

var (
	_ CommunitySource = (*sources.CommunityClient)(nil)
	_ RedditSource    = (*sources.RedditClient)(nil)
	_ StatusSource    = (*sources.StatusClient)(nil)
)
