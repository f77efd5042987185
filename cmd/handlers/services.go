package handlers

import (
	"context"
	"fmt"
	"net/http"

	"studio/internal/config"
	"studio/internal/contenttypes"
	"studio/internal/fetch"
	"studio/internal/generate"
	"studio/internal/linkedin"
	"studio/internal/llm"
	"studio/internal/lock"
	"studio/internal/logger"
	"studio/internal/metrics"
	"studio/internal/persistence"
	"studio/internal/publish"
	"studio/internal/store"
	"studio/internal/tokens"
)

// getDatabase opens the PostgreSQL database named by the configuration
func getDatabase(cfg *config.Config) (*persistence.PostgresDB, error) {
	if cfg.Database.ConnectionString == "" {
		return nil, fmt.Errorf("database connection string not configured (set database.connection_string in config or DATABASE_URL env var)")
	}

	db, err := persistence.NewPostgresDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openPageCache opens the SQLite page cache, or returns nil when caching is off
func openPageCache(cfg *config.Config) *store.Store {
	if !cfg.Cache.Enabled {
		return nil
	}
	cache, err := store.NewStore(cfg.Cache.Directory)
	if err != nil {
		logger.Warn("Page cache unavailable, fetching without it", "error", err, "directory", cfg.Cache.Directory)
		return nil
	}
	return cache
}

// newFetcher builds the page fetcher from the resolver settings
func newFetcher(cfg *config.Config, cache *store.Store, m *metrics.Metrics) *fetch.Fetcher {
	opts := []fetch.Option{
		fetch.WithHTTPClient(&http.Client{}),
		fetch.WithUserAgent(cfg.Resolver.UserAgent),
		fetch.WithTimeout(cfg.Resolver.FetchTimeout),
		fetch.WithMaxBodyBytes(cfg.Resolver.MaxBodyBytes),
		fetch.WithMetrics(m),
	}
	if cache != nil {
		opts = append(opts, fetch.WithCache(cache, cfg.Cache.TTL()))
	}
	return fetch.NewFetcher(opts...)
}

// newGenerator builds the orchestrator. Without an API key every generation
// reports the missing key.
func newGenerator(cfg *config.Config, registry *contenttypes.Registry, fetcher *fetch.Fetcher, m *metrics.Metrics) (*generate.Orchestrator, error) {
	var completer generate.Completer
	if cfg.Anthropic.APIKey != "" {
		client, err := llm.NewClient(llm.Options{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
			BaseURL:   cfg.Anthropic.BaseURL,
			Timeout:   cfg.Anthropic.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		completer = client
	} else {
		logger.Warn("ANTHROPIC_API_KEY is not set, generation requests will fail")
	}

	resolver := fetch.NewResolver(fetcher, cfg.Resolver.MaxConcurrency)
	return generate.New(registry, resolver, completer, m), nil
}

// newLocker returns a Redis lease when Redis is configured and an
// in-process lease otherwise. The returned func closes the Redis client.
func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.Redis.URL == "" {
		return lock.NewLocalLocker(), func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis for the sweep lease", "key_prefix", cfg.Redis.KeyPrefix)
	return lock.NewRedisLocker(client, cfg.Redis.KeyPrefix), func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close Redis client", "error", err)
		}
	}, nil
}

// publishing bundles the LinkedIn side of the studio
type publishing struct {
	client    *linkedin.Client
	tokens    *tokens.Manager
	publisher *publish.Service
}

func newPublishing(cfg *config.Config, db persistence.Database, registry *contenttypes.Registry, locker lock.Locker, m *metrics.Metrics) *publishing {
	client := linkedin.NewClient(cfg.LinkedIn, &http.Client{})
	tm := tokens.NewManager(db.Tokens(), client, m)
	svc := publish.NewService(db.Posts(), tm, client, registry, locker, m, publish.Options{
		ClaimTTL: cfg.LinkedIn.ClaimTTL,
		LeaseTTL: cfg.Cron.LeaseTTL,
	})
	return &publishing{client: client, tokens: tm, publisher: svc}
}
