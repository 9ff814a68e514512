package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/content"
	"github.com/lysyi3m/social-comb/app/pipeline"
	"github.com/lysyi3m/social-comb/app/sources"
)

// DiscoverTask fetches a source's feed and runs the discovered items
// through the pipeline. When a recent-seen cache is configured, items
// already sighted within the TTL skip the pipeline entirely.
type DiscoverTask struct {
	Task
	SourceConfig *config.Source

	rss          *sources.RSS
	extractor    *sources.ContentExtractor
	recent       *content.RecentCache
	orchestrator *pipeline.Orchestrator
}

func NewDiscoverTask(sourceName string, sourceConfig *config.Source, rss *sources.RSS,
	extractor *sources.ContentExtractor, recent *content.RecentCache,
	orchestrator *pipeline.Orchestrator) *DiscoverTask {
	return &DiscoverTask{
		Task:         NewTask(TaskTypeDiscover, sourceName),
		SourceConfig: sourceConfig,
		rss:          rss,
		extractor:    extractor,
		recent:       recent,
		orchestrator: orchestrator,
	}
}

func (t *DiscoverTask) Execute(ctx context.Context) error {
	discovered, err := t.rss.Fetch(ctx, t.SourceConfig)
	if err != nil {
		return err
	}

	batch := t.filterRecent(ctx, discovered)

	if t.SourceConfig.Settings.ExtractContent {
		t.extractContent(ctx, batch)
	}

	stats, err := t.orchestrator.Run(ctx, batch)
	if err != nil {
		return err
	}

	t.markRecent(ctx, batch)

	slog.Info("Task completed",
		"type", "Discover",
		"source", t.Subject,
		"duration", t.GetDuration(),
		"fetched", len(discovered),
		"seen", stats.Seen,
		"new", stats.New,
		"duplicates", stats.Duplicates,
		"blocked", stats.Blocked,
		"scheduled", stats.Scheduled,
		"failed", stats.Failed)

	return nil
}

// filterRecent drops items sighted within the cache TTL. The cache is a
// fast path only; a miss just means the item takes the full pipeline,
// which is idempotent anyway.
func (t *DiscoverTask) filterRecent(ctx context.Context, items []content.Item) []content.Item {
	if t.recent == nil {
		return items
	}

	var fresh []content.Item
	for _, item := range items {
		seen, err := t.recent.Seen(ctx, item.Identity())
		if err != nil {
			slog.Warn("Recent cache lookup failed", "source", t.Subject, "error", err)
			return items
		}
		if !seen {
			fresh = append(fresh, item)
		}
	}

	return fresh
}

func (t *DiscoverTask) markRecent(ctx context.Context, items []content.Item) {
	if t.recent == nil {
		return
	}
	for _, item := range items {
		if err := t.recent.Add(ctx, item.Identity()); err != nil {
			slog.Warn("Recent cache update failed", "source", t.Subject, "error", err)
			return
		}
	}
}

// extractContent replaces teaser text with the readable article body.
// Extraction failures keep the teaser; the item still flows through.
func (t *DiscoverTask) extractContent(ctx context.Context, items []content.Item) {
	timeout := time.Duration(t.SourceConfig.Settings.Timeout) * time.Second

	for i := range items {
		if items[i].URL == "" {
			continue
		}
		text, err := t.extractor.Run(ctx, items[i].URL, timeout)
		if err != nil {
			slog.Warn("Content extraction failed", "source", t.Subject,
				"url", items[i].URL, "error", err)
			continue
		}
		items[i].RawText = text
	}
}
