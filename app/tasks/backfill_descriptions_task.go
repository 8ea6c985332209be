package tasks

import (
	"context"
	"log/slog"

	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/enrich"
)

// BackfillDescriptionsTask fills in LLM-generated descriptions for
// features that do not have one yet. Per-feature failures are logged
// and skipped; the feature stays eligible for the next sweep.
type BackfillDescriptionsTask struct {
	Task
	featureRepo database.FeatureRepository
	enricher    *enrich.Service
}

func NewBackfillDescriptionsTask(featureRepo database.FeatureRepository, enricher *enrich.Service) *BackfillDescriptionsTask {
	return &BackfillDescriptionsTask{
		Task:        NewTask(TaskTypeBackfillDescriptions, "features"),
		featureRepo: featureRepo,
		enricher:    enricher,
	}
}

func (t *BackfillDescriptionsTask) Execute(ctx context.Context) error {
	features, err := t.featureRepo.GetFeaturesMissingDescription()
	if err != nil {
		return err
	}
	if len(features) == 0 {
		return nil
	}

	filled := 0
	for _, feature := range features {
		description, err := t.enricher.DescribeFeature(ctx, feature.Name)
		if err != nil {
			slog.Debug("Feature description skipped", "feature", feature.FeatureID, "error", err)
			continue
		}
		if err := t.featureRepo.UpdateFeatureDescription(feature.FeatureID, description); err != nil {
			return err
		}
		filled++
	}

	slog.Info("Task completed",
		"type", "BackfillDescriptions",
		"duration", t.GetDuration(),
		"missing", len(features),
		"filled", filled)

	return nil
}
