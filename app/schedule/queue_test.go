package schedule

import (
	"testing"
	"time"

	"github.com/lysyi3m/social-comb/app/config"
)

func testSettings() config.PlatformSettings {
	return config.PlatformSettings{
		MaxPerWindow:   3,
		WindowMinutes:  60,
		SpacingMinutes: 10,
	}
}

func TestQueueFirstSlotIsNow(t *testing.T) {
	queue := NewQueue()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	slot := queue.NextSlot("mastodon", testSettings(), now)

	if !slot.Equal(now) {
		t.Errorf("Expected first slot at %v, got %v", now, slot)
	}
}

func TestQueueEnforcesSpacing(t *testing.T) {
	queue := NewQueue()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	first := queue.NextSlot("mastodon", testSettings(), now)
	second := queue.NextSlot("mastodon", testSettings(), now)

	gap := second.Sub(first)
	if gap < 10*time.Minute {
		t.Errorf("Expected at least 10m between slots, got %v", gap)
	}
}

func TestQueueShiftsWhenWindowFull(t *testing.T) {
	queue := NewQueue()
	settings := testSettings()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	// Five items against a 3-per-hour cap: nothing is dropped, later
	// slots shift past the window edge.
	var slots []time.Time
	for i := 0; i < 5; i++ {
		slots = append(slots, queue.NextSlot("mastodon", settings, now))
	}

	window := time.Duration(settings.WindowMinutes) * time.Minute
	spacing := time.Duration(settings.SpacingMinutes) * time.Minute

	for i := 1; i < len(slots); i++ {
		if !slots[i].After(slots[i-1]) {
			t.Fatalf("Slots not strictly increasing: %v", slots)
		}
		if slots[i].Sub(slots[i-1]) < spacing {
			t.Errorf("Spacing violated between slot %d and %d: %v", i-1, i, slots[i].Sub(slots[i-1]))
		}
	}

	for i := range slots {
		count := 0
		for j := range slots {
			if slots[j].After(slots[i].Add(-window)) && !slots[j].After(slots[i]) {
				count++
			}
		}
		if count > settings.MaxPerWindow {
			t.Errorf("Window cap violated at slot %d: %d posts within %v", i, count, window)
		}
	}

	// The fourth slot cannot land inside the first slot's window.
	if slots[3].Before(slots[0].Add(window)) {
		t.Errorf("Expected slot 3 at or after %v, got %v", slots[0].Add(window), slots[3])
	}
}

func TestQueuePlatformsAreIndependent(t *testing.T) {
	queue := NewQueue()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	queue.NextSlot("mastodon", testSettings(), now)
	slot := queue.NextSlot("bluesky", testSettings(), now)

	if !slot.Equal(now) {
		t.Errorf("Expected independent timeline for second platform, got %v", slot)
	}
}

func TestQueueLoadTimeline(t *testing.T) {
	queue := NewQueue()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	queue.LoadTimeline("mastodon", []time.Time{now.Add(-5 * time.Minute)})
	slot := queue.NextSlot("mastodon", testSettings(), now)

	expected := now.Add(5 * time.Minute) // 10m spacing after the seeded slot
	if !slot.Equal(expected) {
		t.Errorf("Expected slot at %v, got %v", expected, slot)
	}
}

func TestQueueRelease(t *testing.T) {
	queue := NewQueue()
	now := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	slot := queue.NextSlot("mastodon", testSettings(), now)
	queue.Release("mastodon", slot)

	if queue.SlotCount("mastodon") != 0 {
		t.Errorf("Expected empty timeline after release, got %d slots", queue.SlotCount("mastodon"))
	}
}

func TestIdempotencyKeyStable(t *testing.T) {
	at := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

	first := IdempotencyKey("item-1", "mastodon", at)
	second := IdempotencyKey("item-1", "mastodon", at)
	if first != second {
		t.Error("Expected identical keys for identical inputs")
	}

	if IdempotencyKey("item-2", "mastodon", at) == first {
		t.Error("Expected different keys for different items")
	}
	if IdempotencyKey("item-1", "bluesky", at) == first {
		t.Error("Expected different keys for different platforms")
	}
	if IdempotencyKey("item-1", "mastodon", at.Add(time.Minute)) == first {
		t.Error("Expected different keys for different times")
	}
}

func TestIdempotencyKeyNormalizesZone(t *testing.T) {
	utc := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	offset := utc.In(time.FixedZone("CEST", 2*3600))

	if IdempotencyKey("item-1", "mastodon", utc) != IdempotencyKey("item-1", "mastodon", offset) {
		t.Error("Expected the same key regardless of time zone representation")
	}
}
