package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/social-comb/app/cfg"
	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/content"
	"github.com/lysyi3m/social-comb/app/database"
	"github.com/lysyi3m/social-comb/app/pipeline"
	"github.com/lysyi3m/social-comb/app/schedule"
	"github.com/lysyi3m/social-comb/app/sources"
)

const cleanupInterval = 24 * time.Hour

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache  *config.Cache
	rss          *sources.RSS
	extractor    *sources.ContentExtractor
	recent       *content.RecentCache
	orchestrator *pipeline.Orchestrator
	publisher    *schedule.Publisher
	itemRepo     database.ItemRepository
	postRepo     database.PostRepository

	interval      time.Duration
	workerCount   int
	retentionDays int

	mu          sync.Mutex
	nextFetch   map[string]time.Time
	lastCleanup time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(configCache *config.Cache, rss *sources.RSS,
	extractor *sources.ContentExtractor, recent *content.RecentCache,
	orchestrator *pipeline.Orchestrator, publisher *schedule.Publisher,
	itemRepo database.ItemRepository, postRepo database.PostRepository) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		configCache:   configCache,
		rss:           rss,
		extractor:     extractor,
		recent:        recent,
		orchestrator:  orchestrator,
		publisher:     publisher,
		itemRepo:      itemRepo,
		postRepo:      postRepo,
		interval:      time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:   cfg.WorkerCount,
		retentionDays: cfg.RetentionDays,
		nextFetch:     make(map[string]time.Time),
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, 300),
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

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
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

func (s *Scheduler) enqueueTasks() {
	s.enqueueDiscoverTasks()
	s.enqueuePublishTasks()
	s.enqueueCleanupTask()
}

func (s *Scheduler) enqueueDiscoverTasks() {
	sourceConfigs := s.configCache.GetEnabledSources()
	if len(sourceConfigs) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	now := time.Now().UTC()
	for name, sourceConfig := range sourceConfigs {
		if !s.dueForFetch(name, sourceConfig, now) {
			continue
		}

		task := NewDiscoverTask(name, sourceConfig, s.rss, s.extractor, s.recent, s.orchestrator)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue DiscoverTask", "source", name, "error", err)
			continue
		}

		s.mu.Lock()
		s.nextFetch[name] = now.Add(time.Duration(sourceConfig.Settings.RefreshInterval) * time.Second)
		s.mu.Unlock()
	}
}

func (s *Scheduler) dueForFetch(name string, sourceConfig *config.Source, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.nextFetch[name]
	return !ok || !next.After(now)
}

func (s *Scheduler) enqueuePublishTasks() {
	for name, platformConfig := range s.configCache.GetEnabledPlatforms() {
		task := NewPublishDueTask(name, platformConfig, s.publisher)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue PublishDueTask", "platform", name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueCleanupTask() {
	if s.retentionDays <= 0 {
		return
	}

	now := time.Now().UTC()
	s.mu.Lock()
	due := s.lastCleanup.IsZero() || now.Sub(s.lastCleanup) >= cleanupInterval
	if due {
		s.lastCleanup = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	task := NewCleanupTask(s.itemRepo, s.postRepo, s.retentionDays)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue CleanupTask", "error", err)
	}
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

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

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
