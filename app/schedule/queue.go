package schedule

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/social-comb/app/config"
)

// Queue assigns publication slots per platform. Slot assignment is
// monotonic: every admitted item gets a slot, and pressure shifts slots
// later instead of dropping items. Two constraints apply per platform, a
// rolling-window post cap and a minimum spacing between consecutive slots.
type Queue struct {
	timelines map[string][]time.Time // Occupied slots per platform, sorted ascending
	mutex     sync.Mutex
}

func NewQueue() *Queue {
	return &Queue{
		timelines: make(map[string][]time.Time),
	}
}

// LoadTimeline seeds a platform's occupied slots from persisted posts,
// used to rebuild scheduling state on startup.
func (q *Queue) LoadTimeline(platform string, times []time.Time) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	timeline := make([]time.Time, len(times))
	copy(timeline, times)
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	q.timelines[platform] = timeline
}

// NextSlot reserves and returns the earliest slot at or after now that
// satisfies the platform's window and spacing constraints.
func (q *Queue) NextSlot(platform string, settings config.PlatformSettings, now time.Time) time.Time {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	timeline := q.timelines[platform]
	spacing := time.Duration(settings.SpacingMinutes) * time.Minute
	window := time.Duration(settings.WindowMinutes) * time.Minute

	candidate := now
	if len(timeline) > 0 {
		if earliest := timeline[len(timeline)-1].Add(spacing); earliest.After(candidate) {
			candidate = earliest
		}
	}

	if settings.MaxPerWindow > 0 {
		for countInWindow(timeline, candidate, window) >= settings.MaxPerWindow {
			// The window is full. The slot opens when the oldest of the
			// last MaxPerWindow posts rolls out of it.
			oldest := timeline[len(timeline)-settings.MaxPerWindow]
			candidate = oldest.Add(window)
			if len(timeline) > 0 {
				if earliest := timeline[len(timeline)-1].Add(spacing); earliest.After(candidate) {
					candidate = earliest
				}
			}
		}
	}

	q.timelines[platform] = append(timeline, candidate)
	return candidate
}

// Release frees a reserved slot, used when a post is cancelled before
// publication.
func (q *Queue) Release(platform string, slot time.Time) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	timeline := q.timelines[platform]
	for i, t := range timeline {
		if t.Equal(slot) {
			q.timelines[platform] = append(timeline[:i], timeline[i+1:]...)
			return
		}
	}
}

// SlotCount returns the number of occupied slots for a platform.
func (q *Queue) SlotCount(platform string) int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.timelines[platform])
}

// countInWindow counts slots in the half-open interval (end-window, end].
func countInWindow(timeline []time.Time, end time.Time, window time.Duration) int {
	start := end.Add(-window)
	count := 0
	for _, t := range timeline {
		if t.After(start) && !t.After(end) {
			count++
		}
	}
	return count
}

// IdempotencyKey derives the stable delivery key for an item on a platform.
// The same item scheduled for the same platform at the same time always
// yields the same key, so adapter retries cannot double-post.
func IdempotencyKey(itemID, platform string, scheduledAt time.Time) string {
	payload := fmt.Sprintf("%s|%s|%s", itemID, platform, scheduledAt.UTC().Format(time.RFC3339))
	hash := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(hash[:])
}
