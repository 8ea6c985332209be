package api

import (
	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/feed"
	"github.com/lysyi3m/canvas-comb/app/sources"
	"github.com/lysyi3m/canvas-comb/app/tasks"
)

type GeneratorInterface interface {
	Run(items []database.Item) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type Handler struct {
	contentRepo database.ContentRepository
	featureRepo database.FeatureRepository
	generator   GeneratorInterface
	configCache *sources.ConfigCache
	scheduler   tasks.TaskSchedulerInterface
}
