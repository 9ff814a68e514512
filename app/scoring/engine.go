package scoring

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lysyi3m/social-comb/app/config"
)

// Vector is the result of running the scorer set against one item.
type Vector struct {
	Scores    map[string]float64 `json:"scores"`
	Degraded  []string           `json:"degraded,omitempty"`
	Composite float64            `json:"composite"`
}

func (v Vector) IsDegraded() bool {
	return len(v.Degraded) > 0
}

// Engine fans scorer calls out across a bounded worker pool and combines the
// results into a composite score.
type Engine struct {
	registry          *Registry
	weights           map[string]float64
	neutral           float64
	degradedThreshold float64
	penalty           float64
	timeout           time.Duration
	workers           int
}

func NewEngine(registry *Registry, scoringCfg config.Scoring, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		registry:          registry,
		weights:           scoringCfg.Weights,
		neutral:           scoringCfg.NeutralScore,
		degradedThreshold: scoringCfg.DegradedThreshold,
		penalty:           scoringCfg.ConfidencePenalty,
		timeout:           time.Duration(scoringCfg.ScorerTimeout) * time.Second,
		workers:           workers,
	}
}

type scorerResult struct {
	name     string
	score    float64
	degraded bool
}

// Run scores the input with every registered scorer. A scorer failure or
// timeout substitutes the neutral score and flags the vector as degraded; it
// never aborts the caller.
func (e *Engine) Run(ctx context.Context, in Input) Vector {
	names := e.registry.Names()

	jobs := make(chan string, len(names))
	results := make(chan scorerResult, len(names))

	var wg sync.WaitGroup
	workers := e.workers
	if workers > len(names) {
		workers = len(names)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				results <- e.callScorer(ctx, name, in)
			}
		}()
	}

	for _, name := range names {
		jobs <- name
	}
	close(jobs)
	wg.Wait()
	close(results)

	vector := Vector{Scores: make(map[string]float64, len(names))}
	for result := range results {
		vector.Scores[result.name] = result.score
		if result.degraded {
			vector.Degraded = append(vector.Degraded, result.name)
		}
	}
	sort.Strings(vector.Degraded)

	vector.Composite = Composite(vector.Scores, vector.Degraded, e.weights, e.neutral, e.degradedThreshold, e.penalty)
	return vector
}

func (e *Engine) callScorer(ctx context.Context, name string, in Input) scorerResult {
	scorer, ok := e.registry.Get(name)
	if !ok {
		return scorerResult{name: name, score: e.neutral, degraded: true}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	score, err := scorer.Score(callCtx, in)
	if err != nil {
		slog.Warn("Scorer unavailable, using neutral score", "scorer", name, "error", err)
		return scorerResult{name: name, score: e.neutral, degraded: true}
	}

	return scorerResult{name: name, score: clamp(score)}
}

// Composite combines per-scorer scores into a single ranking score. It is a
// pure function of its arguments: the same vector and weight table always
// produce bit-identical output. Missing weights default to 1. When the
// degraded fraction exceeds the threshold the composite considers only
// non-degraded scorers and applies the confidence penalty, so items scored
// mostly on neutral defaults are never silently promoted.
func Composite(scores map[string]float64, degraded []string, weights map[string]float64, neutral, degradedThreshold, penalty float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	degradedSet := make(map[string]bool, len(degraded))
	for _, name := range degraded {
		degradedSet[name] = true
	}

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	degradedFraction := float64(len(degraded)) / float64(len(scores))
	if degradedFraction > degradedThreshold {
		var sum, weightSum float64
		for _, name := range names {
			if degradedSet[name] {
				continue
			}
			w := weightFor(weights, name)
			sum += w * scores[name]
			weightSum += w
		}
		if weightSum == 0 {
			// Every scorer degraded: the item carries no signal at all.
			return clamp(neutral * penalty)
		}
		return clamp(sum / weightSum * penalty)
	}

	var sum, weightSum float64
	for _, name := range names {
		w := weightFor(weights, name)
		sum += w * scores[name]
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return clamp(sum / weightSum)
}

func weightFor(weights map[string]float64, name string) float64 {
	if w, ok := weights[name]; ok {
		return w
	}
	return 1.0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
