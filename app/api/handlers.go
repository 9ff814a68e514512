package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/content"
	"github.com/lysyi3m/social-comb/app/database"
	"github.com/lysyi3m/social-comb/app/pipeline"
	"github.com/lysyi3m/social-comb/app/schedule"
	"github.com/lysyi3m/social-comb/app/sources"
	"github.com/lysyi3m/social-comb/app/tasks"
)

func NewHandler(configCache *config.Cache, itemRepo database.ItemRepository,
	postRepo database.PostRepository, orchestrator *pipeline.Orchestrator,
	queue *schedule.Queue, scheduler tasks.TaskSchedulerInterface,
	rss *sources.RSS, extractor *sources.ContentExtractor) *Handler {
	return &Handler{
		configCache:  configCache,
		itemRepo:     itemRepo,
		postRepo:     postRepo,
		orchestrator: orchestrator,
		queue:        queue,
		scheduler:    scheduler,
		rss:          rss,
		extractor:    extractor,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if itemCount, err := h.itemRepo.GetItemCount(); err == nil {
		health["items"] = itemCount
	}

	health["loaded_sources"] = h.configCache.GetSourceCount()
	health["loaded_platforms"] = h.configCache.GetPlatformCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if itemStats, err := h.itemRepo.GetItemStats(); err == nil {
		stats["items"] = map[string]int{
			"total":      itemStats.Total,
			"registered": itemStats.Registered,
			"scored":     itemStats.Scored,
			"evaluated":  itemStats.Evaluated,
			"scheduled":  itemStats.Scheduled,
			"duplicates": itemStats.Duplicates,
			"blocked":    itemStats.Blocked,
		}
	}

	if postCounts, err := h.postRepo.CountByState(); err == nil {
		stats["posts"] = postCounts
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListItems(c *gin.Context) {
	stage := c.DefaultQuery("stage", database.StageEvaluated)
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return
	}

	items, err := h.itemRepo.GetByStage(stage, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list items"})
		return
	}

	result := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		entry := map[string]interface{}{
			"identity":      item.Identity,
			"source":        item.Source,
			"title":         item.Title,
			"url":           item.URL,
			"license":       item.License,
			"stage":         item.Stage,
			"discovered_at": item.DiscoveredAt,
		}
		if item.Composite != nil {
			entry["composite"] = *item.Composite
		}
		if item.VerdictStatus != nil {
			entry["verdict"] = *item.VerdictStatus
		}
		result = append(result, entry)
	}

	c.JSON(http.StatusOK, gin.H{"items": result, "count": len(result)})
}

func (h *Handler) APIListQueue(c *gin.Context) {
	platformConfig, err := h.configCache.GetPlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown platform"})
		return
	}

	posts, err := h.postRepo.GetDue(platformConfig.Name, time.Now().UTC().Add(24*time.Hour), 100)
	if err != nil {
		slog.Error("Database error", "operation", "list_queue", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list queue"})
		return
	}

	result := make([]map[string]interface{}, 0, len(posts))
	for _, post := range posts {
		result = append(result, map[string]interface{}{
			"id":           post.ID,
			"item_id":      post.ItemID,
			"scheduled_at": post.ScheduledAt,
			"state":        post.State,
			"attempts":     post.AttemptCount,
		})
	}

	c.JSON(http.StatusOK, gin.H{"platform": platformConfig.Name, "posts": result, "count": len(result)})
}

// APICancelPost cancels a not-yet-published post and releases its slot.
func (h *Handler) APICancelPost(c *gin.Context) {
	postID := c.Param("id")

	post, err := h.postRepo.GetByID(postID)
	if err != nil {
		slog.Error("Database error", "operation", "cancel_post", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load post"})
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if err := h.postRepo.Cancel(postID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.queue.Release(post.Platform, post.ScheduledAt)
	slog.Info("Post cancelled", "post_id", postID, "platform", post.Platform)

	c.JSON(http.StatusOK, gin.H{"status": "cancelled", "post_id": postID})
}

// APIIngestItems accepts a batch of externally discovered items and runs
// them through the pipeline synchronously.
func (h *Handler) APIIngestItems(c *gin.Context) {
	var batch []content.Item
	if err := c.ShouldBindJSON(&batch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(batch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty batch"})
		return
	}

	now := time.Now().UTC()
	for i := range batch {
		if batch[i].Source == "" || batch[i].Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Items require source and title"})
			return
		}
		if batch[i].DiscoveredAt.IsZero() {
			batch[i].DiscoveredAt = now
		}
	}

	stats, err := h.orchestrator.Run(c.Request.Context(), batch)
	if err != nil {
		slog.Error("Ingest batch failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"seen":              stats.Seen,
		"new":               stats.New,
		"duplicates":        stats.Duplicates,
		"blocked":           stats.Blocked,
		"needs_attribution": stats.NeedsAttribution,
		"scheduled":         stats.Scheduled,
		"failed":            stats.Failed,
	})
}

// APITriggerDiscover enqueues an immediate discovery run for a source.
func (h *Handler) APITriggerDiscover(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetSource(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown source"})
		return
	}

	task := tasks.NewDiscoverTask(name, sourceConfig, h.rss, h.extractor, nil, h.orchestrator)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	slog.Info("Discovery triggered", "source", name)
	c.JSON(http.StatusAccepted, gin.H{"status": "enqueued", "source": name})
}

// APIListSources reports configured sources with their settings.
func (h *Handler) APIListSources(c *gin.Context) {
	configured := h.configCache.GetSources()

	result := make([]map[string]interface{}, 0, len(configured))
	for _, sourceConfig := range configured {
		result = append(result, map[string]interface{}{
			"name":             sourceConfig.Name,
			"url":              sourceConfig.URL,
			"license":          sourceConfig.License,
			"enabled":          sourceConfig.Settings.Enabled,
			"max_items":        sourceConfig.Settings.MaxItems,
			"refresh_interval": (time.Duration(sourceConfig.Settings.RefreshInterval) * time.Second).String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"sources": result, "count": len(result)})
}
