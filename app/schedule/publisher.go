package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/database"
)

const dueBatchSize = 50

// Publisher delivers due posts through platform adapters, enforcing the
// attempt budget and the post state machine. A post is marked in_flight
// before the first adapter call; transient failures retry with exponential
// backoff inside the attempt budget, terminal failures mark the post
// failed.
type Publisher struct {
	posts    database.PostRepository
	adapters map[string]Adapter
}

func NewPublisher(posts database.PostRepository, adapters map[string]Adapter) *Publisher {
	return &Publisher{posts: posts, adapters: adapters}
}

// PublishDue delivers every due pending post for a platform and returns the
// number published.
func (p *Publisher) PublishDue(ctx context.Context, platform config.Platform, now time.Time) (int, error) {
	adapter, ok := p.adapters[platform.Name]
	if !ok {
		return 0, fmt.Errorf("no adapter registered for platform '%s'", platform.Name)
	}

	due, err := p.posts.GetDue(platform.Name, now, dueBatchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, post := range due {
		if ctx.Err() != nil {
			return published, ctx.Err()
		}
		if err := p.publishOne(ctx, adapter, platform.Settings, post); err != nil {
			slog.Warn("Post delivery failed", "platform", platform.Name,
				"post_id", post.ID, "error", err.Error())
			continue
		}
		published++
	}

	return published, nil
}

func (p *Publisher) publishOne(ctx context.Context, adapter Adapter, settings config.PlatformSettings, post database.Post) error {
	if err := p.posts.MarkInFlight(post.ID); err != nil {
		return err
	}

	maxAttempts := settings.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	timeout := time.Duration(settings.Timeout) * time.Second

	req := Request{
		ItemID:         post.ItemID,
		Platform:       post.Platform,
		IdempotencyKey: post.IdempotencyKey,
		Body:           post.Body,
		ScheduledAt:    post.ScheduledAt,
	}

	var result Result
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		var publishErr error
		result, publishErr = adapter.Publish(attemptCtx, req)
		if publishErr == nil {
			return nil
		}

		var pe *PublishError
		if errors.As(publishErr, &pe) && !pe.Retryable {
			return backoff.Permanent(publishErr)
		}
		return publishErr
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxAttempts-1)), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		// A shutdown mid-delivery returns the post to pending so the next
		// run picks it up; everything else exhausts the budget and fails.
		if ctx.Err() != nil {
			if requeueErr := p.posts.Requeue(post.ID, err.Error()); requeueErr != nil {
				return requeueErr
			}
			return err
		}
		if markErr := p.posts.MarkFailed(post.ID, err.Error()); markErr != nil {
			return markErr
		}
		return err
	}

	if err := p.posts.MarkPublished(post.ID, result.ExternalPostID); err != nil {
		return err
	}

	slog.Debug("Post published", "platform", post.Platform, "post_id", post.ID,
		"external_post_id", result.ExternalPostID)
	return nil
}
