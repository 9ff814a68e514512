package database

import (
	"time"
)

// Item stages. An item advances monotonically through the pipeline; the
// stage column is the restart checkpoint.
const (
	StageRegistered = "registered"
	StageScored     = "scored"
	StageEvaluated  = "evaluated"
	StageScheduled  = "scheduled"
)

// Post states. Transitions are pending -> in_flight -> published|failed;
// failed posts may return to pending for a bounded retry, and pending or
// in_flight posts may be cancelled.
const (
	PostPending   = "pending"
	PostInFlight  = "in_flight"
	PostPublished = "published"
	PostFailed    = "failed"
	PostCancelled = "cancelled"
)

type Item struct {
	ID            string // Database UUID
	Identity      string // Stable content identity hash
	Fingerprint   uint64 // Similarity fingerprint over normalized text
	Source        string
	ExternalID    string
	Title         string
	URL           string
	Author        string
	License       string
	RawText       string
	Categories    []string
	PublishedAt   *time.Time
	DiscoveredAt  time.Time
	Stage         string
	DuplicateOf   *string // Identity of the cluster representative, terminal
	Provenance    string  // JSON array of discovery records
	Scores        *string // JSON map of per-scorer scores
	Composite     *float64
	Degraded      *string // JSON array of degraded scorer names
	VerdictStatus *string
	VerdictReason *string
	Attribution   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Post struct {
	ID             string
	ItemID         string
	Platform       string
	Body           string
	ScheduledAt    time.Time
	State          string
	IdempotencyKey string
	AttemptCount   int
	ExternalPostID string
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FingerprintRecord is the minimal projection used to rebuild the in-memory
// similarity index on startup.
type FingerprintRecord struct {
	Identity     string
	Fingerprint  uint64
	DiscoveredAt time.Time
	Composite    *float64
	DuplicateOf  *string
}

// ItemStats summarizes pipeline progress for the API.
type ItemStats struct {
	Total      int
	Registered int
	Scored     int
	Evaluated  int
	Scheduled  int
	Duplicates int
	Blocked    int
}
