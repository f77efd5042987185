package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"studio/internal/config"
	"studio/internal/contenttypes"
	"studio/internal/export"
	"studio/internal/logger"
	"studio/internal/metrics"
	"studio/internal/scheduler"
	"studio/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port        int
		host        string
		withCron    bool
		skipMigrate bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the studio API server.

The server provides:
  • Generation, scraping and content-type endpoints
  • LinkedIn OAuth, publishing and the cron-triggered sweep
  • Post, source, idea, instruction and export storage
  • Health check and Prometheus metrics

Examples:
  # Start server on default port 8080
  studio serve

  # Start on custom port with the in-process publish schedule
  studio serve --port 3000 --cron`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, withCron, skipMigrate)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().BoolVar(&withCron, "cron", false, "Run the scheduled publish sweep in-process (overrides cron.enabled)")
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply pending migrations on startup")

	return cmd
}

func runServe(ctx context.Context, port int, host string, withCron, skipMigrate bool) error {
	log := logger.Get()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	serverCfg := cfg.Server
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	log.Infow("Connecting to database")
	db, err := getDatabase(cfg)
	if err != nil {
		return fmt.Errorf("%w\n\nSet DATABASE_URL and run 'studio migrate up'", err)
	}
	defer db.Close()

	if !skipMigrate {
		if err := persistenceMigrate(ctx, db); err != nil {
			return err
		}
	}

	m := metrics.New()
	registry := contenttypes.Default()

	cache := openPageCache(cfg)
	if cache != nil {
		defer cache.Close()
		if removed, err := cache.CleanupOldCache(cfg.Cache.TTL()); err == nil && removed > 0 {
			log.Infow("Removed stale cached pages", "count", removed)
		}
	}
	fetcher := newFetcher(cfg, cache, m)

	generator, err := newGenerator(cfg, registry, fetcher, m)
	if err != nil {
		return err
	}

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer closeLocker()

	pub := newPublishing(cfg, db, registry, locker, m)

	srv := server.New(server.Deps{
		DB:         db,
		Generator:  generator,
		Fetcher:    fetcher,
		Publisher:  pub.publisher,
		Tokens:     pub.tokens,
		Authorizer: pub.client,
		Exporter:   export.NewService(db, registry),
		Registry:   registry,
		Metrics:    m,
		CronSecret: cfg.Cron.Secret,
	}, serverCfg)

	var sched *scheduler.Scheduler
	if withCron || cfg.Cron.Enabled {
		sched, err = scheduler.New(cfg.Cron.Schedule, pub.publisher, cfg.Cron.LeaseTTL)
		if err != nil {
			return err
		}
		sched.Start()
		log.Infow("Scheduled publish sweep enabled", "schedule", cfg.Cron.Schedule)
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infow("Server listening", "addr", fmt.Sprintf("http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("Server shutdown initiated", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()

		if sched != nil {
			sched.Stop(shutdownCtx)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Server shutdown failed", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Infow("Server stopped successfully")
	}

	return nil
}
