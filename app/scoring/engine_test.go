package scoring

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/lysyi3m/social-comb/app/config"
)

// Weighted sums accumulate in map iteration order, so composites can differ
// from a constant-folded expectation by an ulp.
func closeTo(got, expected float64) bool {
	return math.Abs(got-expected) < 1e-12
}

type stubScorer struct {
	name  string
	score float64
	err   error
}

func (s stubScorer) Name() string { return s.name }

func (s stubScorer) Score(_ context.Context, _ Input) (float64, error) {
	return s.score, s.err
}

func newTestEngine(t *testing.T, scorers ...Scorer) *Engine {
	t.Helper()
	registry := NewRegistry()
	for _, s := range scorers {
		if err := registry.Register(s); err != nil {
			t.Fatal(err)
		}
	}
	scoringCfg := config.Scoring{
		NeutralScore:      0.5,
		DegradedThreshold: 0.5,
		ConfidencePenalty: 0.8,
		ScorerTimeout:     5,
	}
	return NewEngine(registry, scoringCfg, 3)
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(stubScorer{name: "tone"}); err != nil {
		t.Fatal(err)
	}
	if err := registry.Register(stubScorer{name: "tone"}); err == nil {
		t.Error("Expected error registering duplicate scorer name")
	}
}

func TestEngineRunAllScorersHealthy(t *testing.T) {
	engine := newTestEngine(t,
		stubScorer{name: "a", score: 0.8},
		stubScorer{name: "b", score: 0.4},
	)

	vector := engine.Run(context.Background(), Input{Title: "test"})

	if len(vector.Scores) != 2 {
		t.Fatalf("Expected 2 scores, got %d", len(vector.Scores))
	}
	if vector.IsDegraded() {
		t.Error("Vector should not be degraded")
	}
	expected := (0.8 + 0.4) / 2
	if !closeTo(vector.Composite, expected) {
		t.Errorf("Expected composite %f, got %f", expected, vector.Composite)
	}
}

func TestEngineRunScorerFailureDegrades(t *testing.T) {
	engine := newTestEngine(t,
		stubScorer{name: "a", score: 0.8},
		stubScorer{name: "b", err: errors.New("model unavailable")},
		stubScorer{name: "c", score: 0.6},
	)

	vector := engine.Run(context.Background(), Input{Title: "test"})

	if !vector.IsDegraded() {
		t.Fatal("Vector should be degraded")
	}
	if len(vector.Degraded) != 1 || vector.Degraded[0] != "b" {
		t.Errorf("Expected degraded scorer 'b', got %v", vector.Degraded)
	}
	if vector.Scores["b"] != 0.5 {
		t.Errorf("Failed scorer should yield neutral 0.5, got %f", vector.Scores["b"])
	}
	// 1/3 degraded is under the 0.5 threshold: neutral score counts normally.
	expected := (0.8 + 0.5 + 0.6) / 3
	if !closeTo(vector.Composite, expected) {
		t.Errorf("Expected composite %f, got %f", expected, vector.Composite)
	}
}

func TestCompositeDeterministic(t *testing.T) {
	scores := map[string]float64{"relevance": 0.7, "tone": 0.55, "engagement": 0.9, "freshness": 0.3}
	weights := map[string]float64{"relevance": 2, "tone": 1, "engagement": 1.5, "freshness": 0.5}

	first := Composite(scores, nil, weights, 0.5, 0.5, 0.8)
	for i := 0; i < 100; i++ {
		if got := Composite(scores, nil, weights, 0.5, 0.5, 0.8); got != first {
			t.Fatalf("Composite not deterministic: %v != %v", got, first)
		}
	}
}

func TestCompositeDegradedMajorityPenalized(t *testing.T) {
	scores := map[string]float64{"a": 0.9, "b": 0.5, "c": 0.5}
	degraded := []string{"b", "c"}

	got := Composite(scores, degraded, nil, 0.5, 0.5, 0.8)

	// Over threshold: only the healthy scorer counts, times the penalty.
	expected := 0.9 * 0.8
	if !closeTo(got, expected) {
		t.Errorf("Expected composite %f, got %f", expected, got)
	}
}

func TestCompositeAllDegraded(t *testing.T) {
	scores := map[string]float64{"a": 0.5, "b": 0.5}
	degraded := []string{"a", "b"}

	got := Composite(scores, degraded, nil, 0.5, 0.5, 0.8)

	expected := 0.5 * 0.8
	if got != expected {
		t.Errorf("Expected composite %f, got %f", expected, got)
	}
}

func TestCompositeWeights(t *testing.T) {
	scores := map[string]float64{"a": 1.0, "b": 0.0}
	weights := map[string]float64{"a": 3, "b": 1}

	got := Composite(scores, nil, weights, 0.5, 0.5, 0.8)

	expected := 3.0 / 4.0
	if got != expected {
		t.Errorf("Expected composite %f, got %f", expected, got)
	}
}

func TestCompositeEmpty(t *testing.T) {
	if got := Composite(nil, nil, nil, 0.5, 0.5, 0.8); got != 0 {
		t.Errorf("Expected 0 for empty scores, got %f", got)
	}
}
