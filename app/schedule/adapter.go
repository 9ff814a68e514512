package schedule

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Request is a single delivery handed to a platform adapter.
type Request struct {
	ItemID         string    `json:"item_id"`
	Platform       string    `json:"platform"`
	IdempotencyKey string    `json:"idempotency_key"`
	Body           string    `json:"body"`
	ScheduledAt    time.Time `json:"scheduled_at"`
}

type Result struct {
	ExternalPostID string `json:"post_id"`
}

// Adapter delivers a formatted post to a platform. Implementations must be
// safe to retry with the same idempotency key.
type Adapter interface {
	Name() string
	Publish(ctx context.Context, req Request) (Result, error)
}

// PublishError wraps an adapter failure with a retryability signal.
// Non-retryable failures (rejected content, bad credentials) fail the post
// immediately; retryable ones (timeouts, rate limiting, server errors) are
// attempted again up to the platform's attempt budget.
type PublishError struct {
	Retryable bool
	Err       error
}

func (e *PublishError) Error() string {
	return e.Err.Error()
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// WebhookAdapter delivers posts to an external publish endpoint as JSON.
// The idempotency key rides both in the payload and the Idempotency-Key
// header so the receiving side can dedupe however it prefers.
type WebhookAdapter struct {
	name      string
	url       string
	client    *http.Client
	userAgent string
}

func NewWebhookAdapter(name, url, userAgent string, timeout time.Duration) *WebhookAdapter {
	return &WebhookAdapter{
		name:      name,
		url:       url,
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (a *WebhookAdapter) Name() string {
	return a.name
}

func (a *WebhookAdapter) Publish(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, &PublishError{Retryable: false, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, &PublishError{Retryable: false, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", a.userAgent)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return Result{}, &PublishError{Retryable: true, Err: fmt.Errorf("failed to deliver post: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return Result{}, &PublishError{Retryable: true, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var result Result
		if len(body) > 0 {
			if err := json.Unmarshal(body, &result); err != nil {
				return Result{}, &PublishError{Retryable: false, Err: fmt.Errorf("failed to parse response: %w", err)}
			}
		}
		return result, nil
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return Result{}, &PublishError{Retryable: true, Err: fmt.Errorf("adapter returned HTTP %d", resp.StatusCode)}
	default:
		return Result{}, &PublishError{Retryable: false, Err: fmt.Errorf("adapter rejected post with HTTP %d", resp.StatusCode)}
	}
}

// LogAdapter is the fallback for platforms without an adapter URL. It logs
// the delivery and fabricates an external post ID, which keeps the rest of
// the pipeline exercisable without live credentials.
type LogAdapter struct {
	name string
}

func NewLogAdapter(name string) *LogAdapter {
	return &LogAdapter{name: name}
}

func (a *LogAdapter) Name() string {
	return a.name
}

func (a *LogAdapter) Publish(_ context.Context, req Request) (Result, error) {
	slog.Info("Publishing post", "platform", a.name, "item_id", req.ItemID,
		"scheduled_at", req.ScheduledAt.Format(time.RFC3339), "length", len(req.Body))
	return Result{ExternalPostID: uuid.New().String()}, nil
}
