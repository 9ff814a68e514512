package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	ConfigDir         string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Deduplication configuration
	DedupThreshold int
	DedupTTL       int
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Retention configuration
	RetentionDays int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
