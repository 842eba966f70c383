// Package config defines the top-level configuration for forecastd and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FORECASTD_* environment variables.
type Config struct {
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Judge     JudgeConfig     `toml:"judge"`
	Evidence  EvidenceConfig  `toml:"evidence"`
	Resolver  ResolverConfig  `toml:"resolver"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
}

// S3Config holds S3-compatible object storage parameters for the cold-storage
// archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// JudgeConfig holds LLM judge parameters.
type JudgeConfig struct {
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	Temperature float64  `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
	Timeout     duration `toml:"timeout"`
	MaxRetries  int      `toml:"max_retries"`
}

// EvidenceConfig holds web-search evidence gathering parameters.
type EvidenceConfig struct {
	SearchURL   string   `toml:"search_url"`
	MaxResults  int      `toml:"max_results"`
	FetchPages  bool     `toml:"fetch_pages"`
	FetchLimit  int      `toml:"fetch_limit"`
	CharBudget  int      `toml:"char_budget"`
	HTTPTimeout duration `toml:"http_timeout"`
}

// ResolverConfig bounds a single resolution batch.
type ResolverConfig struct {
	Limit       int      `toml:"limit"`
	ItemTimeout duration `toml:"item_timeout"`
}

// SchedulerConfig controls the periodic resolution timer.
type SchedulerConfig struct {
	Enabled    bool     `toml:"enabled"`
	Interval   duration `toml:"interval"`
	RunOnStart bool     `toml:"run_on_start"`
	Limit      int      `toml:"limit"`
}

// ArchiveConfig controls cold-storage archival of old resolved forecasts.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds the HTTP API server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds operator alerting parameters.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding ("5m", "6h").
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// minSchedulerInterval is the floor for the resolution timer. Shorter values
// are clamped during validation so a misconfigured instance cannot hammer the
// judge backend.
const minSchedulerInterval = 5 * time.Minute

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "forecastd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			PoolSize:        20,
			MaxRetries:      3,
			CacheTTLMinutes: 30,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "forecastd-archive",
			ForcePathStyle: true,
		},
		Judge: JudgeConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
			MaxTokens:   2048,
			Timeout:     duration{90 * time.Second},
			MaxRetries:  2,
		},
		Evidence: EvidenceConfig{
			MaxResults:  8,
			FetchLimit:  4,
			CharBudget:  4000,
			HTTPTimeout: duration{20 * time.Second},
		},
		Resolver: ResolverConfig{
			Limit:       50,
			ItemTimeout: duration{2 * time.Minute},
		},
		Scheduler: SchedulerConfig{
			Enabled:    true,
			Interval:   duration{6 * time.Hour},
			RunOnStart: false,
			Limit:      50,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 180,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8090,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate checks the configuration for missing or inconsistent values and
// clamps fields that have a hard operational floor.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "serve", "schedule", "resolve":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Postgres.DSN == "" && c.Postgres.Host == "" {
		return fmt.Errorf("config: postgres host or dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis addr is required")
	}
	if c.Judge.APIKey == "" {
		return fmt.Errorf("config: judge api_key is required")
	}
	if c.Judge.Model == "" {
		return fmt.Errorf("config: judge model is required")
	}

	if c.Scheduler.Interval.Duration < minSchedulerInterval {
		c.Scheduler.Interval.Duration = minSchedulerInterval
	}
	if c.Scheduler.Limit < 1 {
		c.Scheduler.Limit = 1
	}
	if c.Scheduler.Limit > 200 {
		c.Scheduler.Limit = 200
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3 bucket is required when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			return fmt.Errorf("config: archive retention_days must be positive")
		}
	}

	if c.Server.Enabled && (c.Server.Port < 1 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server port %d out of range", c.Server.Port)
	}

	return nil
}
