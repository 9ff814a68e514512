package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostRepositoryImpl handles database operations for scheduled posts
type PostRepositoryImpl struct {
	db *DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *DB) *PostRepositoryImpl {
	return &PostRepositoryImpl{db: db}
}

// Create stores a pending post occupying a publication slot
func (r *PostRepositoryImpl) Create(itemID, platform, body, idempotencyKey string, scheduledAt time.Time) (string, error) {
	id := uuid.New().String()

	_, err := r.db.Exec(`
		INSERT INTO posts (id, item_id, platform, body, scheduled_at, state, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, itemID, platform, body, scheduledAt, PostPending, idempotencyKey)
	if err != nil {
		return "", fmt.Errorf("failed to create post: %w", err)
	}

	return id, nil
}

// GetByID returns the post with the given ID, or nil
func (r *PostRepositoryImpl) GetByID(postID string) (*Post, error) {
	row := r.db.QueryRow(postSelect+` WHERE id = ?`, postID)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

// GetDue returns pending posts for a platform whose scheduled time has
// passed, earliest first.
func (r *PostRepositoryImpl) GetDue(platform string, now time.Time, limit int) ([]Post, error) {
	rows, err := r.db.Query(postSelect+`
		WHERE platform = ?
		  AND state = ?
		  AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?
	`, platform, PostPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due posts: %w", err)
	}
	defer rows.Close()

	return collectPosts(rows)
}

// GetScheduledTimes returns the occupied slot times for a platform since the
// given instant, used to rebuild the scheduling timeline on startup.
// Cancelled posts release their slots and are excluded.
func (r *PostRepositoryImpl) GetScheduledTimes(platform string, since time.Time) ([]time.Time, error) {
	rows, err := r.db.Query(`
		SELECT scheduled_at FROM posts
		WHERE platform = ?
		  AND scheduled_at >= ?
		  AND state != ?
		ORDER BY scheduled_at ASC
	`, platform, since, PostCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan scheduled time: %w", err)
		}
		times = append(times, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled times: %w", err)
	}

	return times, nil
}

// GetPostCount returns the total number of posts
func (r *PostRepositoryImpl) GetPostCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get post count: %w", err)
	}
	return count, nil
}

// CountByState returns post counts grouped by state
func (r *PostRepositoryImpl) CountByState() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT state, COUNT(*) FROM posts GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan state count: %w", err)
		}
		counts[state] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating state counts: %w", err)
	}

	return counts, nil
}

// MarkInFlight transitions a pending post to in_flight and bumps the attempt
// counter. The state guard makes the transition idempotent under concurrent
// publishers.
func (r *PostRepositoryImpl) MarkInFlight(postID string) error {
	result, err := r.db.Exec(`
		UPDATE posts
		SET state = ?, attempt_count = attempt_count + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, PostInFlight, postID, PostPending)
	if err != nil {
		return fmt.Errorf("failed to mark post in flight: %w", err)
	}
	return requirePostRow(result, postID)
}

// MarkPublished records a successful delivery, terminal
func (r *PostRepositoryImpl) MarkPublished(postID string, externalPostID string) error {
	result, err := r.db.Exec(`
		UPDATE posts
		SET state = ?, external_post_id = ?, last_error = '',
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, PostPublished, externalPostID, postID, PostInFlight)
	if err != nil {
		return fmt.Errorf("failed to mark post published: %w", err)
	}
	return requirePostRow(result, postID)
}

// MarkFailed records a delivery failure, terminal
func (r *PostRepositoryImpl) MarkFailed(postID string, lastError string) error {
	result, err := r.db.Exec(`
		UPDATE posts
		SET state = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, PostFailed, lastError, postID, PostInFlight)
	if err != nil {
		return fmt.Errorf("failed to mark post failed: %w", err)
	}
	return requirePostRow(result, postID)
}

// Requeue returns an in_flight post to pending for another attempt
func (r *PostRepositoryImpl) Requeue(postID string, lastError string) error {
	result, err := r.db.Exec(`
		UPDATE posts
		SET state = ?, last_error = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state = ?
	`, PostPending, lastError, postID, PostInFlight)
	if err != nil {
		return fmt.Errorf("failed to requeue post: %w", err)
	}
	return requirePostRow(result, postID)
}

// Cancel marks a not-yet-published post cancelled, releasing its slot.
// Published and failed posts cannot be cancelled.
func (r *PostRepositoryImpl) Cancel(postID string) error {
	result, err := r.db.Exec(`
		UPDATE posts
		SET state = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND state IN (?, ?)
	`, PostCancelled, postID, PostPending, PostInFlight)
	if err != nil {
		return fmt.Errorf("failed to cancel post: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("post %s is not cancellable", postID)
	}
	return nil
}

// DeleteTerminalOlderThan removes published, failed and cancelled posts not
// touched since the cutoff. Returns the number of posts removed.
func (r *PostRepositoryImpl) DeleteTerminalOlderThan(cutoff time.Time) (int, error) {
	result, err := r.db.Exec(`
		DELETE FROM posts
		WHERE state IN (?, ?, ?) AND updated_at < ?
	`, PostPublished, PostFailed, PostCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal posts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(affected), nil
}

const postSelect = `
	SELECT id, item_id, platform, body, scheduled_at, state,
	       idempotency_key, attempt_count, external_post_id, last_error,
	       created_at, updated_at
	FROM posts`

func scanPost(row rowScanner) (*Post, error) {
	var post Post
	err := row.Scan(
		&post.ID, &post.ItemID, &post.Platform, &post.Body,
		&post.ScheduledAt, &post.State, &post.IdempotencyKey,
		&post.AttemptCount, &post.ExternalPostID, &post.LastError,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func collectPosts(rows *sql.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

func requirePostRow(result sql.Result, postID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("post not found or in wrong state: %s", postID)
	}
	return nil
}
