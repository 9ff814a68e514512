package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/schedule"
)

// PublishDueTask delivers a platform's due posts through its adapter.
type PublishDueTask struct {
	Task
	PlatformConfig *config.Platform

	publisher *schedule.Publisher
}

func NewPublishDueTask(platformName string, platformConfig *config.Platform,
	publisher *schedule.Publisher) *PublishDueTask {
	return &PublishDueTask{
		Task:           NewTask(TaskTypePublishDue, platformName),
		PlatformConfig: platformConfig,
		publisher:      publisher,
	}
}

func (t *PublishDueTask) Execute(ctx context.Context) error {
	published, err := t.publisher.PublishDue(ctx, *t.PlatformConfig, time.Now().UTC())
	if err != nil {
		return err
	}

	if published > 0 {
		slog.Info("Task completed",
			"type", "PublishDue",
			"platform", t.Subject,
			"duration", t.GetDuration(),
			"published", published)
	}

	return nil
}
