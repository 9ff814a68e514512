package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/social-comb/app/api"
	"github.com/lysyi3m/social-comb/app/cfg"
	"github.com/lysyi3m/social-comb/app/compliance"
	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/content"
	"github.com/lysyi3m/social-comb/app/database"
	"github.com/lysyi3m/social-comb/app/pipeline"
	"github.com/lysyi3m/social-comb/app/schedule"
	"github.com/lysyi3m/social-comb/app/scoring"
	"github.com/lysyi3m/social-comb/app/sources"
	"github.com/lysyi3m/social-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting Social Comb server", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	configCache := config.NewCache(appCfg.ConfigDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load configuration files", "dir", appCfg.ConfigDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Configuration loaded",
		"sources", configCache.GetSourceCount(),
		"platforms", configCache.GetPlatformCount())

	itemRepo := database.NewItemRepository(db)
	postRepo := database.NewPostRepository(db)

	index, err := rebuildIndex(itemRepo, appCfg.DedupThreshold)
	if err != nil {
		slog.Error("Failed to rebuild similarity index", "error", err)
		os.Exit(1)
	}
	slog.Info("Similarity index rebuilt", "identities", index.Size(), "clusters", index.ClusterCount())

	registry := scoring.NewRegistry()
	scoringCfg := configCache.GetScoring()
	for _, scorer := range scoring.BuiltinScorers(scoringCfg) {
		if err := registry.Register(scorer); err != nil {
			slog.Error("Failed to register scorer", "error", err)
			os.Exit(1)
		}
	}
	engine := scoring.NewEngine(registry, scoringCfg, appCfg.WorkerCount)

	filter := compliance.NewFilter(configCache.GetCompliance())

	queue := schedule.NewQueue()
	if err := rebuildTimelines(queue, postRepo, configCache); err != nil {
		slog.Error("Failed to rebuild scheduling timelines", "error", err)
		os.Exit(1)
	}

	adapters := buildAdapters(configCache, appCfg.UserAgent)
	publisher := schedule.NewPublisher(postRepo, adapters)

	orchestrator := pipeline.NewOrchestrator(itemRepo, postRepo, index, engine, filter, queue, configCache)

	var recent *content.RecentCache
	if appCfg.RedisAddr != "" {
		recent, err = content.NewRecentCache(appCfg.RedisAddr, appCfg.RedisPassword,
			appCfg.RedisDB, time.Duration(appCfg.DedupTTL)*time.Second)
		if err != nil {
			slog.Warn("Recent cache unavailable, continuing without fast path", "error", err)
			recent = nil
		} else {
			slog.Info("Recent cache connected", "addr", appCfg.RedisAddr)
		}
	}

	rss := sources.NewRSS(appCfg.UserAgent)
	extractor := sources.NewContentExtractor(appCfg.UserAgent)

	scheduler := tasks.NewScheduler(configCache, rss, extractor, recent,
		orchestrator, publisher, itemRepo, postRepo)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started", "workers", appCfg.WorkerCount,
		"interval", appCfg.SchedulerInterval)

	apiHandler := api.NewHandler(configCache, itemRepo, postRepo, orchestrator,
		queue, scheduler, rss, extractor)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler stops via defer; in-flight posts return to pending.
	slog.Info("Shutdown complete")
}

// rebuildIndex restores the in-memory similarity index from persisted
// fingerprints in discovery order, replaying survivor promotions so cluster
// representatives come out the same as before the restart.
func rebuildIndex(itemRepo database.ItemRepository, threshold int) (*content.Index, error) {
	index := content.NewIndex(threshold)

	records, err := itemRepo.LoadFingerprints()
	if err != nil {
		return nil, err
	}

	for _, record := range records {
		index.Register(record.Identity, record.Fingerprint, record.DiscoveredAt)
	}
	for _, record := range records {
		if record.Composite != nil {
			index.Promote(record.Identity, *record.Composite)
		}
	}

	return index, nil
}

func rebuildTimelines(queue *schedule.Queue, postRepo database.PostRepository, configCache *config.Cache) error {
	for name, platform := range configCache.GetEnabledPlatforms() {
		window := time.Duration(platform.Settings.WindowMinutes) * time.Minute
		since := time.Now().UTC().Add(-window)

		times, err := postRepo.GetScheduledTimes(name, since)
		if err != nil {
			return err
		}
		queue.LoadTimeline(name, times)
	}
	return nil
}

func buildAdapters(configCache *config.Cache, userAgent string) map[string]schedule.Adapter {
	adapters := make(map[string]schedule.Adapter)
	for name, platform := range configCache.GetEnabledPlatforms() {
		timeout := time.Duration(platform.Settings.Timeout) * time.Second
		if platform.Settings.AdapterURL != "" {
			adapters[name] = schedule.NewWebhookAdapter(name, platform.Settings.AdapterURL, userAgent, timeout)
		} else {
			adapters[name] = schedule.NewLogAdapter(name)
		}
	}
	return adapters
}
