package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the root configuration for the nuntius service.
// Priority: defaults -> config file(s) -> environment -> CLI flags.
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Logging     LoggingConfig    `toml:"logging"`
	Storage     StorageConfig    `toml:"storage"`
	Categories  CategoriesConfig `toml:"categories"`
	Jobs        JobsConfig       `toml:"jobs"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Extractor   ExtractorConfig  `toml:"extractor"`
	Dispatcher  DispatcherConfig `toml:"dispatcher"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// StorageConfig groups the storage backends
type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig holds the relational store settings
type SQLiteConfig struct {
	Path          string `toml:"path"`            // Database file path
	CacheSizeMB   int    `toml:"cache_size_mb"`   // Page cache size
	BusyTimeoutMS int    `toml:"busy_timeout_ms"` // Lock wait before SQLITE_BUSY
	WALMode       bool   `toml:"wal_mode"`        // Write-ahead logging
}

// BadgerConfig holds the fingerprint index settings
type BadgerConfig struct {
	Path string `toml:"path"` // Database directory path
}

// CategoriesConfig bounds category definitions
type CategoriesConfig struct {
	MaxKeywords      int `toml:"max_keywords"`       // Max keywords per category
	MaxKeywordLength int `toml:"max_keyword_length"` // Max length of a single keyword
	MaxNameLength    int `toml:"max_name_length"`    // Max category name length
}

// JobsConfig bounds crawl job execution
type JobsConfig struct {
	ExecutionTimeoutSeconds int `toml:"execution_timeout_seconds"` // Hard ceiling per job run
	CleanupDays             int `toml:"cleanup_days"`              // Retention for terminal jobs
	StuckThresholdHours     int `toml:"stuck_threshold_hours"`     // Running jobs older than this are reset
	MaxConcurrent           int `toml:"max_concurrent"`            // Dispatcher worker pool size
	DefaultMaxResults       int `toml:"default_max_results"`       // Default candidates per crawl
	MaxResultsLimit         int `toml:"max_results_limit"`         // Hard upper bound on candidates
}

// SchedulerConfig controls the periodic task cadences
type SchedulerConfig struct {
	ScanIntervalSeconds    int `toml:"scan_interval_seconds"`    // Due-category scan cadence
	HealthIntervalSeconds  int `toml:"health_interval_seconds"`  // Stuck-job sweep cadence
	CleanupIntervalSeconds int `toml:"cleanup_interval_seconds"` // Old-job cleanup cadence
}

// ExtractorConfig configures the search provider and browser pool
type ExtractorConfig struct {
	ProviderURL           string `toml:"provider_url"`            // News search provider endpoint
	APIKey                string `toml:"api_key"`                 // Provider API key
	Browsers              int    `toml:"browsers"`                // Headless browser instances
	TabsPerBrowser        int    `toml:"tabs_per_browser"`        // Concurrent tabs per browser
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"` // Per-request timeout
	UserAgent             string `toml:"user_agent"`              // User agent for page fetches
}

// DispatcherConfig holds per-queue rate limits
type DispatcherConfig struct {
	CrawlPerMinute     int `toml:"crawl_per_minute"`     // crawl_queue rate limit
	DefaultPerMinute   int `toml:"default_per_minute"`   // default queue rate limit
	MaintenancePerHour int `toml:"maintenance_per_hour"` // maintenance_queue rate limit
}

// NewDefaultConfig returns the configuration defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path:          "./data/nuntius.db",
				CacheSizeMB:   64,
				BusyTimeoutMS: 5000,
				WALMode:       true,
			},
			Badger: BadgerConfig{Path: "./data/fingerprints"},
		},
		Categories: CategoriesConfig{
			MaxKeywords:      20,
			MaxKeywordLength: 100,
			MaxNameLength:    255,
		},
		Jobs: JobsConfig{
			ExecutionTimeoutSeconds: 1800,
			CleanupDays:             30,
			StuckThresholdHours:     2,
			MaxConcurrent:           10,
			DefaultMaxResults:       100,
			MaxResultsLimit:         500,
		},
		Scheduler: SchedulerConfig{
			ScanIntervalSeconds:    60,
			HealthIntervalSeconds:  300,
			CleanupIntervalSeconds: 3600,
		},
		Extractor: ExtractorConfig{
			ProviderURL:           "",
			APIKey:                "",
			Browsers:              5,
			TabsPerBrowser:        10,
			RequestTimeoutSeconds: 30,
			UserAgent:             "Nuntius-Crawler/1.0",
		},
		Dispatcher: DispatcherConfig{
			CrawlPerMinute:     20,
			DefaultPerMinute:   100,
			MaintenancePerHour: 1,
		},
	}
}

// LoadFromFiles loads configuration from multiple files.
// Later files override earlier files; environment variables override all files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies NUNTIUS_* environment variable overrides
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NUNTIUS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("NUNTIUS_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("NUNTIUS_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if level := os.Getenv("NUNTIUS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("NUNTIUS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	if path := os.Getenv("NUNTIUS_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if path := os.Getenv("NUNTIUS_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	if v := os.Getenv("NUNTIUS_JOB_EXECUTION_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Jobs.ExecutionTimeoutSeconds = n
		}
	}
	if v := os.Getenv("NUNTIUS_JOB_CLEANUP_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Jobs.CleanupDays = n
		}
	}
	if v := os.Getenv("NUNTIUS_STUCK_JOB_THRESHOLD_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Jobs.StuckThresholdHours = n
		}
	}
	if v := os.Getenv("NUNTIUS_MAX_CONCURRENT_JOBS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Jobs.MaxConcurrent = n
		}
	}
	if v := os.Getenv("NUNTIUS_DEFAULT_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Jobs.DefaultMaxResults = n
		}
	}

	if v := os.Getenv("NUNTIUS_SCHEDULE_SCAN_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Scheduler.ScanIntervalSeconds = n
		}
	}

	if url := os.Getenv("NUNTIUS_PROVIDER_URL"); url != "" {
		config.Extractor.ProviderURL = url
	}
	if key := os.Getenv("NUNTIUS_PROVIDER_API_KEY"); key != "" {
		config.Extractor.APIKey = key
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
