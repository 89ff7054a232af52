package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration. Loaded once at startup
// into an immutable struct and passed down; no component consults the
// environment at call time.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Crawler     CrawlerConfig   `toml:"crawler"`
	Notify      NotifyConfig    `toml:"notify"`
	Storage     StorageConfig   `toml:"storage"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port   int    `toml:"port"`
	Host   string `toml:"host"`
	APIKey string `toml:"api_key"` // shared secret; empty disables auth with a warning
}

// CrawlerConfig tunes the fetcher and the multi-station fan-out.
type CrawlerConfig struct {
	BaseURL          string        `toml:"base_url"`          // listings site origin
	UserAgent        string        `toml:"user_agent"`        // UA header on every fetch
	AcceptLanguage   string        `toml:"accept_language"`   // language hint on every fetch
	MaxRetries       int           `toml:"max_retries"`       // attempts per fetch
	RetryDelay       time.Duration `toml:"retry_delay"`       // linear delay between attempts, doubled after HTTP 429
	RequestTimeout   time.Duration `toml:"request_timeout"`   // per-attempt timeout
	MaxConcurrent    int           `toml:"max_concurrent"`    // outstanding fetches per fan-out
	RequestDelay     time.Duration `toml:"request_delay"`     // minimum delay between fetch starts within a fan-out
	WalkingSpeed     float64       `toml:"walking_speed"`     // meters per minute, converts "N分鐘" to distance
	MaxImagesPerItem int           `toml:"max_images_per_item"`
}

type NotifyConfig struct {
	Enabled              bool          `toml:"enabled"`
	WebhookURL           string        `toml:"webhook_url"`
	RequestTimeout       time.Duration `toml:"request_timeout"`
	DelayBetweenMessages time.Duration `toml:"delay_between_messages"` // respects downstream rate limits
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
}

// SQLiteConfig represents SQLite-specific configuration
type SQLiteConfig struct {
	Path string `toml:"path"` // database file path
}

// SchedulerConfig controls the watch scheduler that re-crawls watched queries.
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // cron format
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values. Technical
// parameters are hardcoded here; only user-facing settings belong in
// rentwatch.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Crawler: CrawlerConfig{
			BaseURL:          "https://rent.591.com.tw",
			UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AcceptLanguage:   "zh-TW,zh;q=0.9,en;q=0.8",
			MaxRetries:       3,
			RetryDelay:       2 * time.Second,
			RequestTimeout:   30 * time.Second,
			MaxConcurrent:    3,
			RequestDelay:     1 * time.Second,
			WalkingSpeed:     80, // meters per walking minute
			MaxImagesPerItem: 10,
		},
		Notify: NotifyConfig{
			Enabled:              true,
			WebhookURL:           "", // user must provide webhook URL in config file
			RequestTimeout:       15 * time.Second,
			DelayBetweenMessages: 1 * time.Second,
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{
				Path: "./data/rentwatch.db",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,              // user must explicitly opt-in
			Schedule: "0 */30 * * * *",   // every 30 minutes (cron format)
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// defaults -> file1 -> file2 -> ... -> env. Later files override earlier
// files; CLI flags are applied afterwards via ApplyFlagOverrides.
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

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("RENTWATCH_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("RENTWATCH_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("RENTWATCH_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if key := os.Getenv("RENTWATCH_API_KEY"); key != "" {
		config.Server.APIKey = key
	}
	if webhook := os.Getenv("RENTWATCH_WEBHOOK_URL"); webhook != "" {
		config.Notify.WebhookURL = webhook
	}
	if path := os.Getenv("RENTWATCH_SQLITE_PATH"); path != "" {
		config.Storage.SQLite.Path = path
	}
	if level := os.Getenv("RENTWATCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
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

// ValidateSchedule validates a cron schedule expression (6-field format with
// seconds, matching robfig/cron's parser as configured by the scheduler).
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
