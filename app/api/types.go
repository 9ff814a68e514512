package api

import (
	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/database"
	"github.com/lysyi3m/social-comb/app/pipeline"
	"github.com/lysyi3m/social-comb/app/schedule"
	"github.com/lysyi3m/social-comb/app/sources"
	"github.com/lysyi3m/social-comb/app/tasks"
)

type Handler struct {
	configCache  *config.Cache
	itemRepo     database.ItemRepository
	postRepo     database.PostRepository
	orchestrator *pipeline.Orchestrator
	queue        *schedule.Queue
	scheduler    tasks.TaskSchedulerInterface
	rss          *sources.RSS
	extractor    *sources.ContentExtractor
}
