package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/social-comb/app/database"
)

// CleanupTask enforces the retention policy: expired items and terminal
// posts older than the retention window are removed.
type CleanupTask struct {
	Task

	itemRepo      database.ItemRepository
	postRepo      database.PostRepository
	retentionDays int
}

func NewCleanupTask(itemRepo database.ItemRepository, postRepo database.PostRepository,
	retentionDays int) *CleanupTask {
	return &CleanupTask{
		Task:          NewTask(TaskTypeCleanup, "retention"),
		itemRepo:      itemRepo,
		postRepo:      postRepo,
		retentionDays: retentionDays,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -t.retentionDays)

	items, err := t.itemRepo.DeleteOlderThan(cutoff)
	if err != nil {
		return err
	}

	posts, err := t.postRepo.DeleteTerminalOlderThan(cutoff)
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "Cleanup",
		"duration", t.GetDuration(),
		"items_removed", items,
		"posts_removed", posts)

	return nil
}
