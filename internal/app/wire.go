package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/forecastlab/forecastd/internal/blob/s3"
	"github.com/forecastlab/forecastd/internal/cache/redis"
	"github.com/forecastlab/forecastd/internal/config"
	"github.com/forecastlab/forecastd/internal/domain"
	"github.com/forecastlab/forecastd/internal/evidence"
	"github.com/forecastlab/forecastd/internal/judge"
	"github.com/forecastlab/forecastd/internal/notify"
	"github.com/forecastlab/forecastd/internal/server/handler"
	"github.com/forecastlab/forecastd/internal/service"
	"github.com/forecastlab/forecastd/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. It is built by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	ForecastStore domain.ForecastStore
	AuditStore    domain.AuditStore

	EvidenceCache domain.EvidenceCache
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	Archiver   domain.Archiver   // nil unless archiving is enabled
	BlobReader domain.BlobReader // nil unless archiving is enabled

	Notifier *notify.Notifier

	Seeder   *service.Seeder
	Resolver *service.Resolver
	Metrics  *service.Metrics
	Backtest *service.Backtest

	HealthChecks map[string]handler.HealthCheck
}

// Wire constructs the concrete dependency graph from cfg. The cleanup
// function releases resources in reverse construction order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthChecks: make(map[string]handler.HealthCheck),
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	forecastStore := postgres.NewForecastStore(pgClient.Pool())
	deps.ForecastStore = forecastStore
	deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
	deps.HealthChecks["postgres"] = pgClient.Pool().Ping

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	cacheTTL := time.Duration(cfg.Redis.CacheTTLMinutes) * time.Minute
	deps.EvidenceCache = redis.NewEvidenceCache(redisClient, cacheTTL)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)
	deps.HealthChecks["redis"] = redisClient.Ping

	// --- S3 cold storage (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), forecastStore, deps.AuditStore)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.HealthChecks["s3"] = s3Client.Health
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.New(senders, cfg.Notify.Events, logger)
	}

	// --- Judge ---
	judgeClient, err := judge.NewOpenAIClient(judge.Config{
		APIKey:      cfg.Judge.APIKey,
		BaseURL:     cfg.Judge.BaseURL,
		Model:       cfg.Judge.Model,
		Temperature: cfg.Judge.Temperature,
		MaxTokens:   cfg.Judge.MaxTokens,
		Timeout:     cfg.Judge.Timeout.Duration,
		MaxRetries:  cfg.Judge.MaxRetries,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: judge: %w", err)
	}

	// --- Evidence ---
	gatherer := evidence.NewHTTPGatherer(evidence.Config{
		SearchURL:  cfg.Evidence.SearchURL,
		MaxResults: cfg.Evidence.MaxResults,
		FetchLimit: cfg.Evidence.FetchLimit,
		Timeout:    cfg.Evidence.HTTPTimeout.Duration,
	}, deps.EvidenceCache, logger)

	// --- Services ---
	deps.Seeder = service.NewSeeder(service.SeederConfig{
		Store:      deps.ForecastStore,
		Judge:      judgeClient,
		Gatherer:   gatherer,
		Notifier:   deps.Notifier,
		Bus:        deps.SignalBus,
		Audit:      deps.AuditStore,
		CharBudget: cfg.Evidence.CharBudget,
		Logger:     logger,
	})
	deps.Resolver = service.NewResolver(service.ResolverConfig{
		Store:       deps.ForecastStore,
		Judge:       judgeClient,
		Gatherer:    gatherer,
		Locks:       deps.LockManager,
		Notifier:    deps.Notifier,
		Bus:         deps.SignalBus,
		Audit:       deps.AuditStore,
		CharBudget:  cfg.Evidence.CharBudget,
		ItemTimeout: cfg.Resolver.ItemTimeout.Duration,
		Logger:      logger,
	})
	deps.Metrics = service.NewMetrics(deps.ForecastStore, logger)
	deps.Backtest = service.NewBacktest(service.BacktestConfig{
		Store:    deps.ForecastStore,
		Judge:    judgeClient,
		Notifier: deps.Notifier,
		Audit:    deps.AuditStore,
		Logger:   logger,
	})

	return deps, cleanup, nil
}
