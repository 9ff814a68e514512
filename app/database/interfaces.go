package database

import (
	"time"

	"github.com/lysyi3m/social-comb/app/content"
)

type ItemRepository interface {
	Insert(item content.Item, fingerprint uint64) (string, error)
	GetByIdentity(identity string) (*Item, error)
	GetByStage(stage string, limit int) ([]Item, error)
	GetSchedulable() ([]Item, error)
	GetItemCount() (int, error)
	GetItemStats() (ItemStats, error)

	UpdateScores(identity string, scoresJSON string, composite float64, degradedJSON string) error
	UpdateVerdict(identity string, status, reason, attribution string) error
	MarkScheduled(identity string) error
	MarkDuplicate(identity string, representative string) error
	ClearDuplicate(identity string) error
	AppendProvenance(identity string, record content.Provenance) error

	LoadFingerprints() ([]FingerprintRecord, error)
	DeleteOlderThan(cutoff time.Time) (int, error)
}

type PostRepository interface {
	Create(itemID, platform, body, idempotencyKey string, scheduledAt time.Time) (string, error)
	GetByID(postID string) (*Post, error)
	GetDue(platform string, now time.Time, limit int) ([]Post, error)
	GetScheduledTimes(platform string, since time.Time) ([]time.Time, error)
	GetPostCount() (int, error)
	CountByState() (map[string]int, error)

	MarkInFlight(postID string) error
	MarkPublished(postID string, externalPostID string) error
	MarkFailed(postID string, lastError string) error
	Requeue(postID string, lastError string) error
	Cancel(postID string) error

	DeleteTerminalOlderThan(cutoff time.Time) (int, error)
}
