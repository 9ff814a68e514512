package content

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Item is an immutable capture of a discovered piece of content. It is
// created by a source connector and never mutated afterwards; scoring and
// compliance results are stored alongside it in the database.
type Item struct {
	Source       string     `json:"source"`
	ExternalID   string     `json:"external_id,omitempty"`
	Title        string     `json:"title"`
	RawText      string     `json:"raw_text"`
	URL          string     `json:"url,omitempty"`
	Author       string     `json:"author,omitempty"`
	License      string     `json:"license,omitempty"`
	Categories   []string   `json:"categories,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	DiscoveredAt time.Time  `json:"discovered_at"`
}

// Identity returns the stable identity hash for the item: source plus
// external id when the source supplies one, otherwise the normalized text.
func (i Item) Identity() string {
	if i.ExternalID != "" {
		return hashIdentity(i.Source + "\x00" + i.ExternalID)
	}
	return hashIdentity(Normalize(i.Title + " " + i.RawText))
}

// Text returns the content used for fingerprinting and scoring.
func (i Item) Text() string {
	if i.RawText == "" {
		return i.Title
	}
	return i.Title + "\n" + i.RawText
}

// Provenance records where and when a (possibly duplicate) item was discovered.
type Provenance struct {
	Source       string    `json:"source"`
	ExternalID   string    `json:"external_id,omitempty"`
	URL          string    `json:"url,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

func hashIdentity(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])[:16]
}
