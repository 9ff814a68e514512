package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/lysyi3m/social-comb/app/compliance"
	"github.com/lysyi3m/social-comb/app/config"
	"github.com/lysyi3m/social-comb/app/content"
	"github.com/lysyi3m/social-comb/app/database"
	"github.com/lysyi3m/social-comb/app/schedule"
	"github.com/lysyi3m/social-comb/app/scoring"
)

// Stats summarizes one orchestrator run.
type Stats struct {
	Seen             int
	New              int
	Duplicates       int
	Blocked          int
	NeedsAttribution int
	Scheduled        int
	Failed           int
}

// ErrCorruptState marks a persisted item record that cannot be trusted.
// Unlike per-item failures it halts the batch instead of being skipped over.
var ErrCorruptState = errors.New("corrupted persisted state")

// Orchestrator drives a batch of discovered items through the pipeline in
// two phases. Phase one advances each item through registration, scoring and
// compliance, persisting the stage after every step so a restart resumes
// where it left off. Phase two assigns publication slots to every evaluated
// item in composite-score order, so the best content of the batch gets the
// earliest slots.
type Orchestrator struct {
	items  database.ItemRepository
	posts  database.PostRepository
	index  *content.Index
	engine *scoring.Engine
	filter *compliance.Filter
	queue  *schedule.Queue
	cfg    *config.Cache

	now func() time.Time
}

func NewOrchestrator(items database.ItemRepository, posts database.PostRepository,
	index *content.Index, engine *scoring.Engine, filter *compliance.Filter,
	queue *schedule.Queue, cfg *config.Cache) *Orchestrator {
	return &Orchestrator{
		items:  items,
		posts:  posts,
		index:  index,
		engine: engine,
		filter: filter,
		queue:  queue,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Run processes a batch of discovered items. Cancellation is cooperative:
// the batch stops between items and already persisted progress is kept. A
// failure while processing one item is attributed to that item and the batch
// continues; a corrupted persisted state halts the batch with an error rather
// than guessing.
func (o *Orchestrator) Run(ctx context.Context, batch []content.Item) (Stats, error) {
	var stats Stats

	for _, item := range batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := o.processItem(ctx, item, &stats); err != nil {
			if errors.Is(err, ErrCorruptState) || ctx.Err() != nil {
				return stats, err
			}
			stats.Failed++
			slog.Warn("Item failed", "identity", item.Identity(), "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if err := o.scheduleEvaluated(ctx, &stats); err != nil {
		return stats, err
	}

	return stats, nil
}

func (o *Orchestrator) processItem(ctx context.Context, item content.Item, stats *Stats) error {
	stats.Seen++
	identity := item.Identity()

	existing, err := o.items.GetByIdentity(identity)
	if err != nil {
		return err
	}

	if existing != nil {
		return o.resumeItem(ctx, item, existing, stats)
	}

	fingerprint := content.Fingerprint(item.Text())
	result := o.index.Register(identity, fingerprint, item.DiscoveredAt)

	if _, err := o.items.Insert(item, fingerprint); err != nil {
		return err
	}
	stats.New++

	if !result.New && result.DuplicateOf != identity {
		slog.Debug("Near-duplicate registered", "identity", identity,
			"duplicate_of", result.DuplicateOf, "distance", result.Distance)
	}

	vector := o.engine.Run(ctx, scoringInput(item))
	if err := o.persistScores(identity, vector); err != nil {
		return err
	}

	return o.resolveAndEvaluate(item, identity, vector.Composite, stats)
}

// resumeItem picks an already known item up from its persisted stage.
// Terminal items (duplicates, blocked, scheduled) only get their provenance
// extended when the sighting came from a new source.
func (o *Orchestrator) resumeItem(ctx context.Context, item content.Item, existing *database.Item, stats *Stats) error {
	if existing.DuplicateOf != nil {
		stats.Duplicates++
		return o.recordSighting(*existing.DuplicateOf, item)
	}

	switch existing.Stage {
	case database.StageRegistered:
		// Re-register idempotently in case the index was rebuilt without
		// this item, so survivor resolution has a cluster to work with.
		o.index.Register(existing.Identity, existing.Fingerprint, existing.DiscoveredAt)
		vector := o.engine.Run(ctx, scoringInput(item))
		if err := o.persistScores(existing.Identity, vector); err != nil {
			return err
		}
		return o.resolveAndEvaluate(item, existing.Identity, vector.Composite, stats)

	case database.StageScored:
		if existing.Scores == nil || existing.Composite == nil {
			return fmt.Errorf("item %s at stage scored with no scores recorded: %w", existing.Identity, ErrCorruptState)
		}
		var scores map[string]float64
		if err := json.Unmarshal([]byte(*existing.Scores), &scores); err != nil {
			return fmt.Errorf("item %s scores unreadable (%v): %w", existing.Identity, err, ErrCorruptState)
		}
		o.index.Register(existing.Identity, existing.Fingerprint, existing.DiscoveredAt)
		return o.resolveAndEvaluate(item, existing.Identity, *existing.Composite, stats)

	default:
		// Evaluated and scheduled items need no further work this batch.
		if item.Source != existing.Source {
			return o.recordSighting(existing.Identity, item)
		}
		return nil
	}
}

// resolveAndEvaluate runs deferred survivor resolution and, when the item
// survives as its cluster's representative, the compliance filter.
func (o *Orchestrator) resolveAndEvaluate(item content.Item, identity string, composite float64, stats *Stats) error {
	previousRep, ok := o.index.Representative(identity)
	if !ok {
		return fmt.Errorf("identity %s missing from dedup index", identity)
	}

	rep, changed := o.index.Promote(identity, composite)
	if changed {
		if rep == identity {
			// This item outscored the previous representative; the loser
			// becomes the duplicate.
			if err := o.items.MarkDuplicate(previousRep, identity); err != nil {
				return err
			}
		} else {
			// A shelved duplicate turned out to outscore this item once its
			// own score arrived; bring the winner back.
			if err := o.reinstate(rep); err != nil {
				return err
			}
		}
		slog.Info("Cluster representative replaced", "identity", rep,
			"replaced", previousRep)
	}

	if rep != identity {
		stats.Duplicates++
		if err := o.items.MarkDuplicate(identity, rep); err != nil {
			return err
		}
		return o.recordSighting(rep, item)
	}

	verdict := o.filter.Run(item)
	if err := o.items.UpdateVerdict(identity, string(verdict.Status), verdict.Reason, verdict.Attribution); err != nil {
		return err
	}

	switch verdict.Status {
	case compliance.StatusBlocked:
		stats.Blocked++
		slog.Debug("Item blocked", "identity", identity, "reason", verdict.Reason)
	case compliance.StatusNeedsAttribution:
		stats.NeedsAttribution++
	}

	return nil
}

// scheduleEvaluated assigns publication slots to every evaluated item,
// highest composite first. An item gets one post per enabled platform;
// admitted items are never dropped, pressure only shifts slots later.
func (o *Orchestrator) scheduleEvaluated(ctx context.Context, stats *Stats) error {
	enabled := o.cfg.GetEnabledPlatforms()
	if len(enabled) == 0 {
		return nil
	}

	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)

	minComposite := o.cfg.GetScoring().MinComposite

	schedulable, err := o.items.GetSchedulable()
	if err != nil {
		return err
	}

	now := o.now()
	for _, item := range schedulable {
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.Composite != nil && *item.Composite < minComposite {
			continue
		}

		for _, name := range names {
			platform := enabled[name]
			formatter := schedule.NewFormatter(platform.Format)
			body := formatter.Render(item.Title, item.RawText, item.URL,
				item.Categories, stringValue(item.Attribution))

			slot := o.queue.NextSlot(platform.Name, platform.Settings, now)
			key := schedule.IdempotencyKey(item.ID, platform.Name, slot)

			if _, err := o.posts.Create(item.ID, platform.Name, body, key, slot); err != nil {
				o.queue.Release(platform.Name, slot)
				return err
			}

			slog.Debug("Post scheduled", "identity", item.Identity,
				"platform", platform.Name, "slot", slot.Format(time.RFC3339))
		}

		if err := o.items.MarkScheduled(item.Identity); err != nil {
			return err
		}
		stats.Scheduled++
	}

	return nil
}

// reinstate restores an item that was shelved as a duplicate but won the
// cluster on deferred survivor resolution, and evaluates compliance for it
// so it becomes schedulable.
func (o *Orchestrator) reinstate(identity string) error {
	record, err := o.items.GetByIdentity(identity)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("survivor %s not found", identity)
	}

	if err := o.items.ClearDuplicate(identity); err != nil {
		return err
	}

	verdict := o.filter.Run(itemFromRecord(*record))
	return o.items.UpdateVerdict(identity, string(verdict.Status), verdict.Reason, verdict.Attribution)
}

// recordSighting extends the surviving item's provenance with this
// discovery, so duplicate sightings are never silently lost.
func (o *Orchestrator) recordSighting(survivor string, item content.Item) error {
	return o.items.AppendProvenance(survivor, content.Provenance{
		Source:       item.Source,
		ExternalID:   item.ExternalID,
		URL:          item.URL,
		DiscoveredAt: item.DiscoveredAt,
	})
}

func (o *Orchestrator) persistScores(identity string, vector scoring.Vector) error {
	scores, err := json.Marshal(vector.Scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	degraded, err := json.Marshal(vector.Degraded)
	if err != nil {
		return fmt.Errorf("failed to marshal degraded list: %w", err)
	}
	return o.items.UpdateScores(identity, string(scores), vector.Composite, string(degraded))
}

func itemFromRecord(record database.Item) content.Item {
	return content.Item{
		Source:       record.Source,
		ExternalID:   record.ExternalID,
		Title:        record.Title,
		RawText:      record.RawText,
		URL:          record.URL,
		Author:       record.Author,
		License:      record.License,
		Categories:   record.Categories,
		PublishedAt:  record.PublishedAt,
		DiscoveredAt: record.DiscoveredAt,
	}
}

func scoringInput(item content.Item) scoring.Input {
	return scoring.Input{
		Title:       item.Title,
		Text:        item.RawText,
		Source:      item.Source,
		URL:         item.URL,
		License:     item.License,
		Categories:  item.Categories,
		PublishedAt: item.PublishedAt,
	}
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
