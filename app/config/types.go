package config

// Source connector configuration, one file per source under <config-dir>/sources/.

type Source struct {
	Name     string         // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	License  string         `yaml:"license"` // Default license identifier for items from this source
	Settings SourceSettings `yaml:"settings"`
}

type SourceSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"`         // seconds
	ExtractContent  bool `yaml:"extract_content"` // fetch item pages and extract readable text
}

// Target platform configuration, one file per platform under <config-dir>/platforms/.

type Platform struct {
	Name     string           // Derived from filename (without .yml extension)
	Settings PlatformSettings `yaml:"settings"`
	Format   PlatformFormat   `yaml:"format"`
}

type PlatformSettings struct {
	Enabled        bool   `yaml:"enabled"`
	MaxPerWindow   int    `yaml:"max_per_window"`   // posts allowed per rolling window, 0 disables the limit
	WindowMinutes  int    `yaml:"window_minutes"`   // rolling window size
	SpacingMinutes int    `yaml:"spacing_minutes"`  // minimum gap between consecutive posts
	MaxAttempts    int    `yaml:"max_attempts"`     // publish attempts before a post is marked failed
	Timeout        int    `yaml:"timeout"`          // seconds per adapter call
	AdapterURL     string `yaml:"adapter_url"`      // webhook publish adapter endpoint, empty uses the log adapter
}

type PlatformFormat struct {
	Template     string `yaml:"template"` // placeholders: {title} {summary} {hashtags} {url} {attribution}
	MaxLength    int    `yaml:"max_length"`
	HashtagLimit int    `yaml:"hashtag_limit"`
}

// Scoring configuration, <config-dir>/scoring.yml.

type Scoring struct {
	Weights           map[string]float64 `yaml:"weights"`
	NeutralScore      float64            `yaml:"neutral_score"`      // substituted for unavailable scorers
	DegradedThreshold float64            `yaml:"degraded_threshold"` // degraded fraction above which the composite is penalized
	ConfidencePenalty float64            `yaml:"confidence_penalty"` // multiplier applied to heavily degraded composites
	MinComposite      float64            `yaml:"min_composite"`      // minimum composite score for scheduling
	ScorerTimeout     int                `yaml:"scorer_timeout"`     // seconds per scorer call
	RelevanceKeywords []string           `yaml:"relevance_keywords"`
}

// Compliance configuration, <config-dir>/compliance.yml.

type Compliance struct {
	BlockedSources []string               `yaml:"blocked_sources"`
	BlockedDomains []string               `yaml:"blocked_domains"`
	Licenses       map[string]LicenseRule `yaml:"licenses"`
}

type LicenseRule struct {
	Status      string `yaml:"status"`      // "allowed" or "needs_attribution"
	Attribution string `yaml:"attribution"` // placeholders: {author} {source} {url} {license}
}
