// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pricescout/pricescout/internal/sites"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Browser BrowserConfig  `mapstructure:"browser"`
	Extract ExtractConfig  `mapstructure:"extract"`
	Store   StoreConfig    `mapstructure:"store"`
	Export  ExportConfig   `mapstructure:"export"`
	Events  EventsConfig   `mapstructure:"events"`
	Sites   []sites.Config `mapstructure:"sites"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BrowserConfig governs the automation sessions and the delay policy.
type BrowserConfig struct {
	Headless          bool    `mapstructure:"headless"`
	UserAgent         string  `mapstructure:"user_agent"`
	NavTimeoutSec     int     `mapstructure:"nav_timeout_seconds"`
	TypingDelayMs     int     `mapstructure:"typing_delay_ms"`
	StepsPerSecond    float64 `mapstructure:"steps_per_second"`
	ScrollSettleMs    int     `mapstructure:"scroll_settle_ms"`
	MaxSessions       int     `mapstructure:"max_sessions"`
	MaxSitesPerJobRun int     `mapstructure:"max_sites_per_job_run"`
}

// ExtractConfig bounds the extraction loop and the per-job budget.
type ExtractConfig struct {
	MinProducts      int `mapstructure:"min_products"`
	MaxRetryRounds   int `mapstructure:"max_retry_rounds"`
	JobBudgetSeconds int `mapstructure:"job_budget_seconds"`
}

// StoreConfig bounds the in-process job store.
type StoreConfig struct {
	MaxJobs int `mapstructure:"max_jobs"`
}

// ExportConfig selects where per-site result documents go.
type ExportConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// EventsConfig selects the completion-event publisher.
type EventsConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Sites) == 0 {
		cfg.Sites = sites.Defaults()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", false)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("browser.typing_delay_ms", 80)
	v.SetDefault("browser.steps_per_second", 2.0)
	v.SetDefault("browser.scroll_settle_ms", 700)
	v.SetDefault("browser.max_sessions", 2)
	v.SetDefault("browser.max_sites_per_job_run", 1)
	v.SetDefault("extract.min_products", 20)
	v.SetDefault("extract.max_retry_rounds", 3)
	v.SetDefault("extract.job_budget_seconds", 480)
	v.SetDefault("store.max_jobs", 100)
	v.SetDefault("export.provider", "local")
	v.SetDefault("export.base_dir", "output")
	v.SetDefault("export.prefix", "results")
	v.SetDefault("events.provider", "memory")
	v.SetDefault("events.topic", "pricescout-jobs")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be > 0")
	}
	if c.Browser.MaxSitesPerJobRun <= 0 {
		return fmt.Errorf("browser.max_sites_per_job_run must be > 0")
	}
	if c.Browser.MaxSitesPerJobRun > c.Browser.MaxSessions {
		return fmt.Errorf("browser.max_sites_per_job_run must not exceed browser.max_sessions")
	}
	if c.Extract.MinProducts <= 0 {
		return fmt.Errorf("extract.min_products must be > 0")
	}
	if c.Extract.JobBudgetSeconds <= 0 {
		return fmt.Errorf("extract.job_budget_seconds must be > 0")
	}
	switch c.Export.Provider {
	case "local", "gcs", "noop":
	default:
		return fmt.Errorf("export.provider must be local, gcs or noop")
	}
	if c.Export.Provider == "gcs" && c.Export.Bucket == "" {
		return fmt.Errorf("export.bucket must be set when export.provider is gcs")
	}
	switch c.Events.Provider {
	case "memory", "pubsub", "noop":
	default:
		return fmt.Errorf("events.provider must be memory, pubsub or noop")
	}
	if c.Events.Provider == "pubsub" && c.Events.ProjectID == "" {
		return fmt.Errorf("events.project_id must be set when events.provider is pubsub")
	}
	for _, site := range c.Sites {
		if err := site.Validate(); err != nil {
			return fmt.Errorf("sites: %w", err)
		}
	}
	return nil
}

// NavTimeout converts the configured navigation timeout.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// JobBudget converts the configured per-job wall-clock limit.
func (c Config) JobBudget() time.Duration {
	return time.Duration(c.Extract.JobBudgetSeconds) * time.Second
}
