package scoring

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/lysyi3m/social-comb/app/config"
)

// Built-in heuristic scorers. External scorer plugins register through the
// same Registry; these keep the pipeline useful without any model backend.

var positiveWords = []string{
	"breakthrough", "success", "win", "growth", "innovation", "improve",
	"achievement", "progress", "launch", "record", "milestone", "benefit",
}

var negativeWords = []string{
	"crisis", "failure", "decline", "scandal", "lawsuit", "crash",
	"layoff", "fraud", "breach", "recall", "loss", "shutdown",
}

var triggerWords = []string{
	"you", "your", "how to", "why", "what", "secret", "amazing", "incredible",
}

// RelevanceScorer rates how well content matches the configured topic keywords.
type RelevanceScorer struct {
	keywords []string
}

func NewRelevanceScorer(keywords []string) *RelevanceScorer {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &RelevanceScorer{keywords: lowered}
}

func (s *RelevanceScorer) Name() string { return "relevance" }

func (s *RelevanceScorer) Score(_ context.Context, in Input) (float64, error) {
	if len(s.keywords) == 0 {
		return 0.5, nil
	}

	text := strings.ToLower(in.Title + " " + in.Text + " " + strings.Join(in.Categories, " "))

	matched := 0
	for _, keyword := range s.keywords {
		if strings.Contains(text, keyword) {
			matched++
		}
	}

	score := 0.2 + float64(matched)*0.2
	if score > 1 {
		score = 1
	}
	return score, nil
}

// EngagementScorer estimates engagement potential from structural features
// of the title and body.
type EngagementScorer struct{}

func NewEngagementScorer() *EngagementScorer { return &EngagementScorer{} }

func (s *EngagementScorer) Name() string { return "engagement" }

func (s *EngagementScorer) Score(_ context.Context, in Input) (float64, error) {
	score := 0.3

	titleWords := len(strings.Fields(in.Title))
	if titleWords >= 6 && titleWords <= 12 {
		score += 0.15
	}

	if strings.ContainsFunc(in.Title, unicode.IsDigit) {
		score += 0.1
	}
	if strings.Contains(in.Title, "?") {
		score += 0.05
	}

	lowerTitle := strings.ToLower(in.Title)
	triggers := 0
	for _, word := range triggerWords {
		if strings.Contains(lowerTitle, word) {
			triggers++
		}
	}
	score += min(float64(triggers)*0.05, 0.15)

	contentLength := len(in.Text)
	switch {
	case contentLength >= 200 && contentLength <= 1000:
		score += 0.1
	case contentLength > 1000:
		score += 0.05
	}

	quotes := strings.Count(in.Text, `"`) / 2
	score += min(float64(quotes)*0.02, 0.08)

	return min(score, 1), nil
}

// ToneScorer rates sentiment balance; positive or neutral content fits the
// brand better than negative content.
type ToneScorer struct{}

func NewToneScorer() *ToneScorer { return &ToneScorer{} }

func (s *ToneScorer) Name() string { return "tone" }

func (s *ToneScorer) Score(_ context.Context, in Input) (float64, error) {
	text := strings.ToLower(in.Title + " " + in.Text)

	positive := 0
	for _, word := range positiveWords {
		if strings.Contains(text, word) {
			positive++
		}
	}
	negative := 0
	for _, word := range negativeWords {
		if strings.Contains(text, word) {
			negative++
		}
	}

	score := 0.5 + float64(positive-negative)*0.1
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// FreshnessScorer decays with publication age; undated content scores neutral.
type FreshnessScorer struct {
	now func() time.Time
}

func NewFreshnessScorer() *FreshnessScorer {
	return &FreshnessScorer{now: time.Now}
}

func (s *FreshnessScorer) Name() string { return "freshness" }

func (s *FreshnessScorer) Score(_ context.Context, in Input) (float64, error) {
	if in.PublishedAt == nil {
		return 0.5, nil
	}

	hours := s.now().Sub(*in.PublishedAt).Hours()
	switch {
	case hours <= 1:
		return 1.0, nil
	case hours <= 6:
		return 0.9, nil
	case hours <= 24:
		return 0.7, nil
	case hours <= 48:
		return 0.5, nil
	case hours <= 168:
		return 0.3, nil
	default:
		return 0.1, nil
	}
}

// LegalRiskScorer rates reuse safety from the license metadata. It ranks
// risk only; the hard accept/reject decision belongs to the compliance
// filter.
type LegalRiskScorer struct{}

func NewLegalRiskScorer() *LegalRiskScorer { return &LegalRiskScorer{} }

func (s *LegalRiskScorer) Name() string { return "legal_risk" }

func (s *LegalRiskScorer) Score(_ context.Context, in Input) (float64, error) {
	license := strings.ToLower(strings.TrimSpace(in.License))
	switch {
	case license == "":
		return 0.1, nil
	case strings.HasPrefix(license, "cc0") || license == "public-domain":
		return 1.0, nil
	case strings.Contains(license, "-nd") || strings.Contains(license, "-nc"):
		return 0.4, nil
	case strings.HasPrefix(license, "cc-by"):
		return 0.8, nil
	case strings.HasPrefix(license, "mit") || strings.HasPrefix(license, "apache"):
		return 0.8, nil
	default:
		return 0.3, nil
	}
}

// BuiltinScorers returns the default scorer set configured from the scoring
// configuration.
func BuiltinScorers(scoringCfg config.Scoring) []Scorer {
	return []Scorer{
		NewRelevanceScorer(scoringCfg.RelevanceKeywords),
		NewEngagementScorer(),
		NewToneScorer(),
		NewFreshnessScorer(),
		NewLegalRiskScorer(),
	}
}
