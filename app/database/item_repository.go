package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lysyi3m/social-comb/app/content"
)

// ItemRepositoryImpl handles database operations for pipeline items
type ItemRepositoryImpl struct {
	db *DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

// Insert stores a newly registered item and returns its database ID.
func (r *ItemRepositoryImpl) Insert(item content.Item, fingerprint uint64) (string, error) {
	id := uuid.New().String()

	categories, err := json.Marshal(item.Categories)
	if err != nil {
		return "", fmt.Errorf("failed to marshal categories: %w", err)
	}

	provenance, err := json.Marshal([]content.Provenance{{
		Source:       item.Source,
		ExternalID:   item.ExternalID,
		URL:          item.URL,
		DiscoveredAt: item.DiscoveredAt,
	}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal provenance: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO items (
			id, identity, fingerprint, source, external_id, title, url,
			author, license, raw_text, categories, published_at,
			discovered_at, stage, provenance
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, item.Identity(), int64(fingerprint), item.Source, item.ExternalID,
		item.Title, item.URL, item.Author, item.License, item.RawText,
		string(categories), item.PublishedAt, item.DiscoveredAt,
		StageRegistered, string(provenance))
	if err != nil {
		return "", fmt.Errorf("failed to insert item: %w", err)
	}

	return id, nil
}

// GetByIdentity returns the item with the given identity hash, or nil
func (r *ItemRepositoryImpl) GetByIdentity(identity string) (*Item, error) {
	row := r.db.QueryRow(itemSelect+` WHERE identity = ?`, identity)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// GetByStage returns up to limit items currently at the given stage,
// oldest first, excluding duplicates and blocked items.
func (r *ItemRepositoryImpl) GetByStage(stage string, limit int) ([]Item, error) {
	rows, err := r.db.Query(itemSelect+`
		WHERE stage = ?
		  AND duplicate_of IS NULL
		  AND (verdict_status IS NULL OR verdict_status != 'blocked')
		ORDER BY discovered_at ASC, identity ASC
		LIMIT ?
	`, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get items by stage: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// GetSchedulable returns evaluated, non-blocked, non-duplicate items ordered
// by composite score descending with discovery time and identity as
// deterministic tie-breakers.
func (r *ItemRepositoryImpl) GetSchedulable() ([]Item, error) {
	rows, err := r.db.Query(itemSelect+`
		WHERE stage = ?
		  AND duplicate_of IS NULL
		  AND verdict_status IN ('allowed', 'needs_attribution')
		ORDER BY composite DESC, discovered_at ASC, identity ASC
	`, StageEvaluated)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedulable items: %w", err)
	}
	defer rows.Close()

	return collectItems(rows)
}

// GetItemCount returns the total number of stored items
func (r *ItemRepositoryImpl) GetItemCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// GetItemStats returns per-stage counts for the API stats endpoint
func (r *ItemRepositoryImpl) GetItemStats() (ItemStats, error) {
	var stats ItemStats
	err := r.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE stage = 'registered'),
		       COUNT(*) FILTER (WHERE stage = 'scored'),
		       COUNT(*) FILTER (WHERE stage = 'evaluated'),
		       COUNT(*) FILTER (WHERE stage = 'scheduled'),
		       COUNT(*) FILTER (WHERE duplicate_of IS NOT NULL),
		       COUNT(*) FILTER (WHERE verdict_status = 'blocked')
		FROM items
	`).Scan(&stats.Total, &stats.Registered, &stats.Scored, &stats.Evaluated,
		&stats.Scheduled, &stats.Duplicates, &stats.Blocked)
	if err != nil {
		return ItemStats{}, fmt.Errorf("failed to get item stats: %w", err)
	}
	return stats, nil
}

// UpdateScores records the scoring vector and advances the item to 'scored'
func (r *ItemRepositoryImpl) UpdateScores(identity string, scoresJSON string, composite float64, degradedJSON string) error {
	result, err := r.db.Exec(`
		UPDATE items
		SET scores = ?, composite = ?, degraded = ?, stage = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
	`, scoresJSON, composite, degradedJSON, StageScored, identity)
	if err != nil {
		return fmt.Errorf("failed to update scores: %w", err)
	}
	return requireRow(result, identity)
}

// UpdateVerdict records the compliance verdict and advances the item to
// 'evaluated'. Blocked items stay at 'evaluated' but are excluded from
// scheduling by GetSchedulable.
func (r *ItemRepositoryImpl) UpdateVerdict(identity string, status, reason, attribution string) error {
	result, err := r.db.Exec(`
		UPDATE items
		SET verdict_status = ?, verdict_reason = ?, attribution = ?,
		    stage = ?, updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
	`, status, reason, attribution, StageEvaluated, identity)
	if err != nil {
		return fmt.Errorf("failed to update verdict: %w", err)
	}
	return requireRow(result, identity)
}

// MarkScheduled advances the item to the terminal 'scheduled' stage
func (r *ItemRepositoryImpl) MarkScheduled(identity string) error {
	result, err := r.db.Exec(`
		UPDATE items
		SET stage = ?, updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
	`, StageScheduled, identity)
	if err != nil {
		return fmt.Errorf("failed to mark item scheduled: %w", err)
	}
	return requireRow(result, identity)
}

// MarkDuplicate records that the item is a near-duplicate of the given
// cluster representative. Duplicates never advance past registration.
func (r *ItemRepositoryImpl) MarkDuplicate(identity string, representative string) error {
	result, err := r.db.Exec(`
		UPDATE items
		SET duplicate_of = ?, updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
	`, representative, identity)
	if err != nil {
		return fmt.Errorf("failed to mark item duplicate: %w", err)
	}
	return requireRow(result, identity)
}

// ClearDuplicate reinstates a previously shelved duplicate after deferred
// survivor resolution picked it over the old cluster representative. The
// item returns to 'scored' so compliance evaluation can proceed.
func (r *ItemRepositoryImpl) ClearDuplicate(identity string) error {
	result, err := r.db.Exec(`
		UPDATE items
		SET duplicate_of = NULL, stage = ?, updated_at = CURRENT_TIMESTAMP
		WHERE identity = ? AND duplicate_of IS NOT NULL
	`, StageScored, identity)
	if err != nil {
		return fmt.Errorf("failed to clear duplicate marker: %w", err)
	}
	return requireRow(result, identity)
}

// AppendProvenance adds a discovery record to an item's provenance log.
// Used when a duplicate arrives: the sighting is attributed to the cluster
// representative so no provenance is lost.
func (r *ItemRepositoryImpl) AppendProvenance(identity string, record content.Provenance) error {
	var raw string
	err := r.db.QueryRow(`SELECT provenance FROM items WHERE identity = ?`, identity).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("item not found: %s", identity)
	}
	if err != nil {
		return fmt.Errorf("failed to read provenance: %w", err)
	}

	var records []content.Provenance
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return fmt.Errorf("failed to parse provenance: %w", err)
	}
	records = append(records, record)

	updated, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal provenance: %w", err)
	}

	_, err = r.db.Exec(`
		UPDATE items
		SET provenance = ?, updated_at = CURRENT_TIMESTAMP
		WHERE identity = ?
	`, string(updated), identity)
	if err != nil {
		return fmt.Errorf("failed to append provenance: %w", err)
	}
	return nil
}

// LoadFingerprints returns the projection needed to rebuild the similarity
// index on startup, oldest first so registration order is preserved.
func (r *ItemRepositoryImpl) LoadFingerprints() ([]FingerprintRecord, error) {
	rows, err := r.db.Query(`
		SELECT identity, fingerprint, discovered_at, composite, duplicate_of
		FROM items
		ORDER BY discovered_at ASC, identity ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load fingerprints: %w", err)
	}
	defer rows.Close()

	var records []FingerprintRecord
	for rows.Next() {
		var record FingerprintRecord
		var fingerprint int64
		err := rows.Scan(&record.Identity, &fingerprint, &record.DiscoveredAt,
			&record.Composite, &record.DuplicateOf)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint row: %w", err)
		}
		record.Fingerprint = uint64(fingerprint)
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fingerprint rows: %w", err)
	}

	return records, nil
}

// DeleteOlderThan removes items discovered before the cutoff, along with
// their terminal posts. An item still owning a pending or in-flight post is
// kept until that post reaches a terminal state. Returns the number of items
// removed.
func (r *ItemRepositoryImpl) DeleteOlderThan(cutoff time.Time) (int, error) {
	_, err := r.db.Exec(`
		DELETE FROM posts
		WHERE state IN (?, ?, ?)
		  AND item_id IN (SELECT id FROM items WHERE discovered_at < ?)
	`, PostPublished, PostFailed, PostCancelled, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete posts for expired items: %w", err)
	}

	result, err := r.db.Exec(`
		DELETE FROM items
		WHERE discovered_at < ?
		  AND id NOT IN (SELECT item_id FROM posts WHERE state IN (?, ?))
	`, cutoff, PostPending, PostInFlight)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired items: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return int(affected), nil
}

const itemSelect = `
	SELECT id, identity, fingerprint, source, external_id, title, url,
	       author, license, raw_text, categories, published_at,
	       discovered_at, stage, duplicate_of, provenance, scores,
	       composite, degraded, verdict_status, verdict_reason,
	       attribution, created_at, updated_at
	FROM items`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*Item, error) {
	var item Item
	var fingerprint int64
	var categories string

	err := row.Scan(
		&item.ID, &item.Identity, &fingerprint, &item.Source,
		&item.ExternalID, &item.Title, &item.URL, &item.Author,
		&item.License, &item.RawText, &categories, &item.PublishedAt,
		&item.DiscoveredAt, &item.Stage, &item.DuplicateOf, &item.Provenance,
		&item.Scores, &item.Composite, &item.Degraded, &item.VerdictStatus,
		&item.VerdictReason, &item.Attribution, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Fingerprint = uint64(fingerprint)
	if err := json.Unmarshal([]byte(categories), &item.Categories); err != nil {
		return nil, fmt.Errorf("failed to parse categories: %w", err)
	}

	return &item, nil
}

func collectItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func requireRow(result sql.Result, identity string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item not found: %s", identity)
	}
	return nil
}
