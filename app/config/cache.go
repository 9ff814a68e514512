package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type Cache struct {
	configDir  string
	sources    map[string]*Source
	platforms  map[string]*Platform
	scoring    Scoring
	compliance Compliance
	mu         sync.RWMutex
}

func NewCache(configDir string) *Cache {
	return &Cache{
		configDir: configDir,
		sources:   make(map[string]*Source),
		platforms: make(map[string]*Platform),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.configDir); os.IsNotExist(err) {
		return nil
	}

	sourceFiles, err := filepath.Glob(filepath.Join(c.configDir, "sources", "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find source configuration files: %w", err)
	}
	for _, file := range sourceFiles {
		name := baseName(file)
		if _, err := c.LoadSource(name); err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		slog.Debug("Source configuration loaded", "source", name)
	}

	platformFiles, err := filepath.Glob(filepath.Join(c.configDir, "platforms", "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find platform configuration files: %w", err)
	}
	for _, file := range platformFiles {
		name := baseName(file)
		if _, err := c.LoadPlatform(name); err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}
		slog.Debug("Platform configuration loaded", "platform", name)
	}

	if err := c.loadScoring(); err != nil {
		return err
	}
	if err := c.loadCompliance(); err != nil {
		return err
	}

	return nil
}

func (c *Cache) LoadSource(name string) (*Source, error) {
	configFile := filepath.Join(c.configDir, "sources", name+".yml")

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	source.Name = name

	if source.Settings.RefreshInterval == 0 {
		source.Settings.RefreshInterval = 3600
	}
	if source.Settings.MaxItems == 0 {
		source.Settings.MaxItems = 100
	}
	if source.Settings.Timeout == 0 {
		source.Settings.Timeout = 30
	}

	if err := validateSource(&source); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = &source

	return &source, nil
}

func (c *Cache) LoadPlatform(name string) (*Platform, error) {
	configFile := filepath.Join(c.configDir, "platforms", name+".yml")

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var platform Platform
	if err := yaml.Unmarshal(data, &platform); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	platform.Name = name

	if platform.Settings.WindowMinutes == 0 {
		platform.Settings.WindowMinutes = 60
	}
	if platform.Settings.SpacingMinutes == 0 {
		platform.Settings.SpacingMinutes = 10
	}
	if platform.Settings.MaxAttempts == 0 {
		platform.Settings.MaxAttempts = 3
	}
	if platform.Settings.Timeout == 0 {
		platform.Settings.Timeout = 30
	}
	if platform.Format.Template == "" {
		platform.Format.Template = "{title}\n\n{summary}\n\n{hashtags}\n\n{url}"
	}
	if platform.Format.MaxLength == 0 {
		platform.Format.MaxLength = 2000
	}
	if platform.Format.HashtagLimit == 0 {
		platform.Format.HashtagLimit = 3
	}

	if err := validatePlatform(&platform); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.platforms[name] = &platform

	return &platform, nil
}

func (c *Cache) loadScoring() error {
	configFile := filepath.Join(c.configDir, "scoring.yml")

	var scoring Scoring
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, &scoring); err != nil {
			return fmt.Errorf("failed to parse %s: %w", configFile, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", configFile, err)
	}

	if scoring.NeutralScore == 0 {
		scoring.NeutralScore = 0.5
	}
	if scoring.DegradedThreshold == 0 {
		scoring.DegradedThreshold = 0.5
	}
	if scoring.ConfidencePenalty == 0 {
		scoring.ConfidencePenalty = 0.8
	}
	if scoring.ScorerTimeout == 0 {
		scoring.ScorerTimeout = 10
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.scoring = scoring

	return nil
}

func (c *Cache) loadCompliance() error {
	configFile := filepath.Join(c.configDir, "compliance.yml")

	var compliance Compliance
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, &compliance); err != nil {
			return fmt.Errorf("failed to parse %s: %w", configFile, err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", configFile, err)
	}

	for id, rule := range compliance.Licenses {
		if rule.Status != "allowed" && rule.Status != "needs_attribution" {
			return fmt.Errorf("invalid status for license '%s': %s", id, rule.Status)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.compliance = compliance

	return nil
}

func (c *Cache) GetSource(name string) (*Source, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	source, ok := c.sources[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return source, nil
}

func (c *Cache) GetSources() map[string]*Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sourcesCopy := make(map[string]*Source, len(c.sources))
	for k, v := range c.sources {
		sourcesCopy[k] = v
	}
	return sourcesCopy
}

func (c *Cache) GetEnabledSources() map[string]*Source {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabled := make(map[string]*Source)
	for k, v := range c.sources {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (c *Cache) GetPlatform(name string) (*Platform, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	platform, ok := c.platforms[name]
	if !ok {
		return nil, fmt.Errorf("platform config with name '%s' not found", name)
	}
	return platform, nil
}

func (c *Cache) GetPlatforms() map[string]*Platform {
	c.mu.RLock()
	defer c.mu.RUnlock()

	platformsCopy := make(map[string]*Platform, len(c.platforms))
	for k, v := range c.platforms {
		platformsCopy[k] = v
	}
	return platformsCopy
}

func (c *Cache) GetEnabledPlatforms() map[string]*Platform {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabled := make(map[string]*Platform)
	for k, v := range c.platforms {
		if v.Settings.Enabled {
			enabled[k] = v
		}
	}
	return enabled
}

func (c *Cache) GetScoring() Scoring {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scoring
}

func (c *Cache) GetCompliance() Compliance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.compliance
}

func (c *Cache) GetSourceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sources)
}

func (c *Cache) GetPlatformCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.platforms)
}

func validateSource(source *Source) error {
	if source.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if source.URL == "" {
		return fmt.Errorf("source URL is required")
	}

	nonNegativeFields := map[string]int{
		"refresh interval": source.Settings.RefreshInterval,
		"max items":        source.Settings.MaxItems,
		"timeout":          source.Settings.Timeout,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func validatePlatform(platform *Platform) error {
	if platform.Name == "" {
		return fmt.Errorf("platform name is required")
	}

	nonNegativeFields := map[string]int{
		"max per window":  platform.Settings.MaxPerWindow,
		"window minutes":  platform.Settings.WindowMinutes,
		"spacing minutes": platform.Settings.SpacingMinutes,
		"max attempts":    platform.Settings.MaxAttempts,
		"timeout":         platform.Settings.Timeout,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	return nil
}

func baseName(file string) string {
	fileName := filepath.Base(file)
	return fileName[:len(fileName)-len(filepath.Ext(fileName))]
}
