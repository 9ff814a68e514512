package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./social-comb.db" description:"Path to the SQLite database file"`

	// Application configuration
	ConfigDir         string `long:"config-dir" env:"CONFIG_DIR" default:"./config" description:"Directory containing source, platform, scoring and compliance configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for pipeline processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Deduplication configuration
	DedupThreshold int    `long:"dedup-threshold" env:"DEDUP_THRESHOLD" default:"3" description:"Maximum fingerprint hamming distance treated as a near-duplicate"`
	DedupTTL       int    `long:"dedup-ttl" env:"DEDUP_TTL" default:"86400" description:"TTL in seconds for the recent-identity duplicate cache"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for the duplicate fast-path cache (optional, e.g. localhost:6379)"`
	RedisPassword  string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB        int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`

	// Retention configuration
	RetentionDays int `long:"retention-days" env:"RETENTION_DAYS" default:"7" description:"Days to keep terminal posts and stale items before cleanup"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Social Comb/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		ConfigDir:         raw.ConfigDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		DedupThreshold:    raw.DedupThreshold,
		DedupTTL:          raw.DedupTTL,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		RetentionDays:     raw.RetentionDays,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
