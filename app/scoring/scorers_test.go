package scoring

import (
	"context"
	"testing"
	"time"
)

func TestRelevanceScorer(t *testing.T) {
	scorer := NewRelevanceScorer([]string{"technology", "battery"})

	score, err := scorer.Score(context.Background(), Input{
		Title: "New battery technology doubles range",
		Text:  "The technology was developed over five years.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if score <= 0.5 {
		t.Errorf("Expected matched keywords to score above 0.5, got %f", score)
	}

	score, err = scorer.Score(context.Background(), Input{
		Title: "Local bakery wins pie contest",
		Text:  "A small town celebrates.",
	})
	if err != nil {
		t.Fatal(err)
	}
	if score != 0.2 {
		t.Errorf("Expected unmatched content to score 0.2, got %f", score)
	}
}

func TestRelevanceScorerNoKeywords(t *testing.T) {
	scorer := NewRelevanceScorer(nil)

	score, err := scorer.Score(context.Background(), Input{Title: "anything"})
	if err != nil {
		t.Fatal(err)
	}
	if score != 0.5 {
		t.Errorf("Expected neutral 0.5 without keywords, got %f", score)
	}
}

func TestEngagementScorerFeatures(t *testing.T) {
	scorer := NewEngagementScorer()

	plain, err := scorer.Score(context.Background(), Input{Title: "Update", Text: "short"})
	if err != nil {
		t.Fatal(err)
	}

	rich, err := scorer.Score(context.Background(), Input{
		Title: "Why you should know these 5 amazing battery facts?",
		Text:  "Researchers said \"the results exceeded expectations\" during the briefing. " + longText(400),
	})
	if err != nil {
		t.Fatal(err)
	}

	if rich <= plain {
		t.Errorf("Feature-rich title should outscore plain title: %f <= %f", rich, plain)
	}
	if rich > 1 {
		t.Errorf("Score must stay in [0,1], got %f", rich)
	}
}

func TestToneScorer(t *testing.T) {
	scorer := NewToneScorer()

	positive, _ := scorer.Score(context.Background(), Input{
		Title: "Breakthrough success as startup hits growth milestone",
	})
	negative, _ := scorer.Score(context.Background(), Input{
		Title: "Crisis deepens after data breach and layoff scandal",
	})
	neutral, _ := scorer.Score(context.Background(), Input{
		Title: "Council meets to discuss zoning",
	})

	if positive <= neutral {
		t.Errorf("Positive content should outscore neutral: %f <= %f", positive, neutral)
	}
	if negative >= neutral {
		t.Errorf("Negative content should score below neutral: %f >= %f", negative, neutral)
	}
}

func TestFreshnessScorerDecay(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	scorer := &FreshnessScorer{now: func() time.Time { return now }}

	cases := []struct {
		age      time.Duration
		expected float64
	}{
		{30 * time.Minute, 1.0},
		{3 * time.Hour, 0.9},
		{12 * time.Hour, 0.7},
		{36 * time.Hour, 0.5},
		{100 * time.Hour, 0.3},
		{400 * time.Hour, 0.1},
	}

	for _, tc := range cases {
		published := now.Add(-tc.age)
		score, err := scorer.Score(context.Background(), Input{PublishedAt: &published})
		if err != nil {
			t.Fatal(err)
		}
		if score != tc.expected {
			t.Errorf("Age %v: expected %f, got %f", tc.age, tc.expected, score)
		}
	}
}

func TestFreshnessScorerUndated(t *testing.T) {
	scorer := NewFreshnessScorer()

	score, err := scorer.Score(context.Background(), Input{})
	if err != nil {
		t.Fatal(err)
	}
	if score != 0.5 {
		t.Errorf("Undated content should score neutral 0.5, got %f", score)
	}
}

func TestLegalRiskScorer(t *testing.T) {
	scorer := NewLegalRiskScorer()

	cases := map[string]float64{
		"":            0.1,
		"CC0-1.0":     1.0,
		"CC-BY-4.0":   0.8,
		"CC-BY-NC-4.0": 0.4,
		"MIT":         0.8,
		"proprietary": 0.3,
	}

	for license, expected := range cases {
		score, err := scorer.Score(context.Background(), Input{License: license})
		if err != nil {
			t.Fatal(err)
		}
		if score != expected {
			t.Errorf("License %q: expected %f, got %f", license, expected, score)
		}
	}
}

func longText(n int) string {
	words := "the quick brown fox jumps over the lazy dog "
	out := ""
	for len(out) < n {
		out += words
	}
	return out
}
