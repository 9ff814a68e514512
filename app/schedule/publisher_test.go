package schedule

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/database"
)

// fakePostRepository implements database.PostRepository in memory for
// publisher tests.
type fakePostRepository struct {
	posts map[string]*database.Post
}

func newFakePostRepository(posts ...database.Post) *fakePostRepository {
	repo := &fakePostRepository{posts: make(map[string]*database.Post)}
	for i := range posts {
		post := posts[i]
		repo.posts[post.ID] = &post
	}
	return repo
}

func (r *fakePostRepository) Create(itemID, platform, body, idempotencyKey string, scheduledAt time.Time) (string, error) {
	return "", errors.New("not implemented")
}

func (r *fakePostRepository) GetByID(postID string) (*database.Post, error) {
	return r.posts[postID], nil
}

func (r *fakePostRepository) GetDue(platform string, now time.Time, limit int) ([]database.Post, error) {
	var due []database.Post
	for _, post := range r.posts {
		if post.Platform == platform && post.State == database.PostPending && !post.ScheduledAt.After(now) {
			due = append(due, *post)
		}
	}
	return due, nil
}

func (r *fakePostRepository) GetScheduledTimes(platform string, since time.Time) ([]time.Time, error) {
	return nil, nil
}

func (r *fakePostRepository) GetPostCount() (int, error) { return len(r.posts), nil }

func (r *fakePostRepository) CountByState() (map[string]int, error) { return nil, nil }

func (r *fakePostRepository) MarkInFlight(postID string) error {
	post := r.posts[postID]
	if post.State != database.PostPending {
		return fmt.Errorf("post not pending: %s", postID)
	}
	post.State = database.PostInFlight
	post.AttemptCount++
	return nil
}

func (r *fakePostRepository) MarkPublished(postID string, externalPostID string) error {
	post := r.posts[postID]
	post.State = database.PostPublished
	post.ExternalPostID = externalPostID
	return nil
}

func (r *fakePostRepository) MarkFailed(postID string, lastError string) error {
	post := r.posts[postID]
	post.State = database.PostFailed
	post.LastError = lastError
	return nil
}

func (r *fakePostRepository) Requeue(postID string, lastError string) error {
	post := r.posts[postID]
	post.State = database.PostPending
	post.LastError = lastError
	return nil
}

func (r *fakePostRepository) Cancel(postID string) error { return nil }

func (r *fakePostRepository) DeleteTerminalOlderThan(cutoff time.Time) (int, error) { return 0, nil }

// flakyAdapter fails a configured number of times before succeeding.
type flakyAdapter struct {
	failures  int
	retryable bool
	calls     int
}

func (a *flakyAdapter) Name() string { return "test" }

func (a *flakyAdapter) Publish(_ context.Context, req Request) (Result, error) {
	a.calls++
	if a.calls <= a.failures {
		return Result{}, &PublishError{Retryable: a.retryable, Err: errors.New("adapter failure")}
	}
	return Result{ExternalPostID: "ext-1"}, nil
}

func testPlatform(maxAttempts int) config.Platform {
	return config.Platform{
		Name: "test",
		Settings: config.PlatformSettings{
			MaxAttempts: maxAttempts,
			Timeout:     5,
		},
	}
}

func duePost() database.Post {
	return database.Post{
		ID:          "post-1",
		ItemID:      "item-1",
		Platform:    "test",
		Body:        "Body",
		State:       database.PostPending,
		ScheduledAt: time.Now().Add(-time.Minute),
	}
}

func TestPublisherDeliversDuePost(t *testing.T) {
	repo := newFakePostRepository(duePost())
	adapter := &flakyAdapter{}
	publisher := NewPublisher(repo, map[string]Adapter{"test": adapter})

	published, err := publisher.PublishDue(context.Background(), testPlatform(3), time.Now())
	if err != nil {
		t.Fatalf("PublishDue failed: %v", err)
	}
	if published != 1 {
		t.Errorf("Expected 1 published post, got %d", published)
	}

	post, _ := repo.GetByID("post-1")
	if post.State != database.PostPublished {
		t.Errorf("Expected state published, got '%s'", post.State)
	}
	if post.ExternalPostID != "ext-1" {
		t.Errorf("Expected external post ID 'ext-1', got '%s'", post.ExternalPostID)
	}
}

func TestPublisherRetriesTransientFailures(t *testing.T) {
	repo := newFakePostRepository(duePost())
	adapter := &flakyAdapter{failures: 2, retryable: true}
	publisher := NewPublisher(repo, map[string]Adapter{"test": adapter})

	published, err := publisher.PublishDue(context.Background(), testPlatform(3), time.Now())
	if err != nil {
		t.Fatalf("PublishDue failed: %v", err)
	}
	if published != 1 {
		t.Errorf("Expected 1 published post, got %d", published)
	}
	if adapter.calls != 3 {
		t.Errorf("Expected 3 adapter calls, got %d", adapter.calls)
	}
}

func TestPublisherExhaustsAttemptBudget(t *testing.T) {
	repo := newFakePostRepository(duePost())
	adapter := &flakyAdapter{failures: 10, retryable: true}
	publisher := NewPublisher(repo, map[string]Adapter{"test": adapter})

	published, err := publisher.PublishDue(context.Background(), testPlatform(3), time.Now())
	if err != nil {
		t.Fatalf("PublishDue failed: %v", err)
	}
	if published != 0 {
		t.Errorf("Expected 0 published posts, got %d", published)
	}
	if adapter.calls != 3 {
		t.Errorf("Expected 3 adapter calls, got %d", adapter.calls)
	}

	post, _ := repo.GetByID("post-1")
	if post.State != database.PostFailed {
		t.Errorf("Expected state failed, got '%s'", post.State)
	}
	if post.LastError == "" {
		t.Error("Expected last error to be recorded")
	}
}

func TestPublisherDoesNotRetryPermanentFailures(t *testing.T) {
	repo := newFakePostRepository(duePost())
	adapter := &flakyAdapter{failures: 10, retryable: false}
	publisher := NewPublisher(repo, map[string]Adapter{"test": adapter})

	publisher.PublishDue(context.Background(), testPlatform(5), time.Now())

	if adapter.calls != 1 {
		t.Errorf("Expected 1 adapter call for permanent failure, got %d", adapter.calls)
	}

	post, _ := repo.GetByID("post-1")
	if post.State != database.PostFailed {
		t.Errorf("Expected state failed, got '%s'", post.State)
	}
}

func TestPublisherSkipsFuturePosts(t *testing.T) {
	post := duePost()
	post.ScheduledAt = time.Now().Add(time.Hour)
	repo := newFakePostRepository(post)
	adapter := &flakyAdapter{}
	publisher := NewPublisher(repo, map[string]Adapter{"test": adapter})

	published, err := publisher.PublishDue(context.Background(), testPlatform(3), time.Now())
	if err != nil {
		t.Fatalf("PublishDue failed: %v", err)
	}
	if published != 0 {
		t.Errorf("Expected 0 published posts, got %d", published)
	}
	if adapter.calls != 0 {
		t.Errorf("Expected no adapter calls, got %d", adapter.calls)
	}
}

func TestWebhookAdapterClassifiesResponses(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
		{http.StatusUnprocessableEntity, false},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		adapter := NewWebhookAdapter("test", server.URL, "test-agent", time.Second)
		_, err := adapter.Publish(context.Background(), Request{ItemID: "item-1"})
		server.Close()

		var pe *PublishError
		if !errors.As(err, &pe) {
			t.Fatalf("Expected PublishError for HTTP %d, got %v", tt.status, err)
		}
		if pe.Retryable != tt.retryable {
			t.Errorf("HTTP %d: expected retryable=%v, got %v", tt.status, tt.retryable, pe.Retryable)
		}
	}
}

func TestWebhookAdapterSuccess(t *testing.T) {
	var receivedKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedKey = r.Header.Get("Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"post_id":"remote-7"}`))
	}))
	defer server.Close()

	adapter := NewWebhookAdapter("test", server.URL, "test-agent", time.Second)
	result, err := adapter.Publish(context.Background(), Request{
		ItemID:         "item-1",
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if result.ExternalPostID != "remote-7" {
		t.Errorf("Expected external post ID 'remote-7', got '%s'", result.ExternalPostID)
	}
	if receivedKey != "key-1" {
		t.Errorf("Expected idempotency key header 'key-1', got '%s'", receivedKey)
	}
}
