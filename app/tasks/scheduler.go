package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/canvas-comb/app/cfg"
	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/enrich"
	"github.com/lysyi3m/canvas-comb/app/pipeline"
	"github.com/lysyi3m/canvas-comb/app/sources"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	contentRepo database.ContentRepository
	featureRepo database.FeatureRepository
	configCache *sources.ConfigCache
	classifier  *pipeline.Classifier
	linker      *pipeline.Linker
	enricher    *enrich.Service

	community CommunitySource
	reddit    RedditSource
	status    StatusSource

	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *sources.ConfigCache, contentRepo database.ContentRepository,
	featureRepo database.FeatureRepository, httpClient *http.Client, classifier *pipeline.Classifier,
	linker *pipeline.Linker, enricher *enrich.Service) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		contentRepo: contentRepo,
		featureRepo: featureRepo,
		configCache: configCache,
		classifier:  classifier,
		linker:      linker,
		enricher:    enricher,
		community:   sources.NewCommunityClient(httpClient, cfg.UserAgent),
		reddit:      sources.NewRedditClient(httpClient, cfg.UserAgent),
		status:      sources.NewStatusClient(httpClient, cfg.UserAgent),
		interval:    time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount: cfg.WorkerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		if _, err := s.EnqueueAggregation(); err != nil {
			slog.Warn("Failed to enqueue startup aggregation", "error", err)
		}

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.EnqueueAggregation(); err != nil {
					slog.Warn("Failed to enqueue scheduled aggregation", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the scheduler context and waits for the workers. The
// queue is left open: an in-flight retry goroutine may still attempt a
// send after shutdown, which lands harmlessly in the buffer instead of
// panicking on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueAggregation queues one aggregation task per enabled source
// plus a description backfill sweep, and returns the number of source
// tasks queued.
func (s *Scheduler) EnqueueAggregation() (int, error) {
	configs := s.configCache.GetConfigs()
	if len(configs) == 0 {
		slog.Debug("No source configurations found")
		return 0, nil
	}

	queued := 0
	for _, config := range configs {
		if !config.Settings.Enabled {
			slog.Debug("Source disabled, skipping", "source", config.Name)
			continue
		}

		task := NewAggregateSourceTask(config, s.community, s.reddit, s.status,
			s.contentRepo, s.featureRepo, s.classifier, s.linker, s.enricher)
		if err := s.EnqueueTask(task); err != nil {
			return queued, fmt.Errorf("failed to enqueue aggregation for %s: %w", config.Name, err)
		}
		queued++
	}

	if queued > 0 {
		backfill := NewBackfillDescriptionsTask(s.featureRepo, s.enricher)
		if err := s.EnqueueTask(backfill); err != nil {
			slog.Warn("Failed to enqueue BackfillDescriptionsTask", "error", err)
		}
	}

	return queued, nil
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
