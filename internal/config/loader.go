package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FORECASTD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FORECASTD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Postgres.DSN, "FORECASTD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FORECASTD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FORECASTD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FORECASTD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FORECASTD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FORECASTD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FORECASTD_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "FORECASTD_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "FORECASTD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FORECASTD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FORECASTD_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "FORECASTD_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "FORECASTD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FORECASTD_S3_REGION")
	setStr(&cfg.S3.Bucket, "FORECASTD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FORECASTD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FORECASTD_S3_SECRET_KEY")

	setStr(&cfg.Judge.APIKey, "FORECASTD_JUDGE_API_KEY")
	setStr(&cfg.Judge.APIKey, "OPENAI_API_KEY") // compatibility alias
	setStr(&cfg.Judge.BaseURL, "FORECASTD_JUDGE_BASE_URL")
	setStr(&cfg.Judge.Model, "FORECASTD_JUDGE_MODEL")
	setInt(&cfg.Judge.MaxRetries, "FORECASTD_JUDGE_MAX_RETRIES")
	setDuration(&cfg.Judge.Timeout, "FORECASTD_JUDGE_TIMEOUT")

	setStr(&cfg.Evidence.SearchURL, "FORECASTD_EVIDENCE_SEARCH_URL")
	setInt(&cfg.Evidence.MaxResults, "FORECASTD_EVIDENCE_MAX_RESULTS")
	setBool(&cfg.Evidence.FetchPages, "FORECASTD_EVIDENCE_FETCH_PAGES")

	setInt(&cfg.Resolver.Limit, "FORECASTD_RESOLVER_LIMIT")
	setDuration(&cfg.Resolver.ItemTimeout, "FORECASTD_RESOLVER_ITEM_TIMEOUT")

	setBool(&cfg.Scheduler.Enabled, "FORECASTD_SCHEDULER_ENABLED")
	setDuration(&cfg.Scheduler.Interval, "FORECASTD_SCHEDULER_INTERVAL")
	setBool(&cfg.Scheduler.RunOnStart, "FORECASTD_SCHEDULER_RUN_ON_START")
	setInt(&cfg.Scheduler.Limit, "FORECASTD_SCHEDULER_LIMIT")

	setBool(&cfg.Archive.Enabled, "FORECASTD_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FORECASTD_ARCHIVE_RETENTION_DAYS")

	setBool(&cfg.Server.Enabled, "FORECASTD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FORECASTD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "FORECASTD_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "FORECASTD_SERVER_CORS_ORIGINS")

	setStr(&cfg.Notify.TelegramToken, "FORECASTD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FORECASTD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FORECASTD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FORECASTD_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "FORECASTD_MODE")
	setStr(&cfg.LogLevel, "FORECASTD_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
