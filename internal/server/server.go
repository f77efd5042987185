package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"studio/internal/config"
	"studio/internal/contenttypes"
	"studio/internal/core"
	"studio/internal/export"
	"studio/internal/fetch"
	"studio/internal/generate"
	"studio/internal/logger"
	"studio/internal/metrics"
	"studio/internal/persistence"
	"studio/internal/publish"
)

// Generator runs the generation pipeline
type Generator interface {
	Generate(ctx context.Context, req generate.Request) ([]core.Post, error)
}

// PageFetcher scrapes a single page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// Publisher is the publish state machine
type Publisher interface {
	Schedule(ctx context.Context, id string, when time.Time) (*core.Post, error)
	PublishNow(ctx context.Context, id string) (*core.Post, error)
	PublishText(ctx context.Context, postID, text string) error
	Sweep(ctx context.Context) (*publish.SweepResult, error)
}

// TokenManager owns the LinkedIn credential
type TokenManager interface {
	ExchangeCode(ctx context.Context, code string) (*core.LinkedInToken, error)
	Active(ctx context.Context) (*core.LinkedInToken, error)
	IsExpired(token *core.LinkedInToken) bool
}

// Authorizer builds the LinkedIn authorization URL
type Authorizer interface {
	AuthCodeURL(state string) (string, error)
}

// Exporter renders CSV exports
type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Result, error)
}

// Deps are the services the HTTP layer delegates to
type Deps struct {
	DB         persistence.Database
	Generator  Generator
	Fetcher    PageFetcher
	Publisher  Publisher
	Tokens     TokenManager
	Authorizer Authorizer
	Exporter   Exporter
	Registry   *contenttypes.Registry
	Metrics    *metrics.Metrics
	CronSecret string
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	deps       Deps
	config     config.Server
	log        *zap.SugaredLogger
}

// New creates a new HTTP server instance
func New(deps Deps, cfg config.Server) *Server {
	if deps.Registry == nil {
		deps.Registry = contenttypes.Default()
	}

	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		config: cfg,
		log:    logger.Get(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.deps.Metrics.Middleware)
	s.router.Use(securityHeaders)

	if s.config.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Content-Disposition", "X-Export-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	s.router.MethodNotAllowed(s.handleMethodNotAllowed)
	s.router.NotFound(s.handleNotFound)
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.deps.Metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Post("/claude", s.handleGenerate)
		r.Post("/scrape", s.handleScrape)
		r.Get("/content-types", s.handleContentTypes)

		r.Route("/linkedin", func(r chi.Router) {
			r.Get("/auth", s.handleLinkedInAuth)
			r.Get("/callback", s.handleLinkedInCallback)
			r.Post("/publish", s.handleLinkedInPublish)
			r.Get("/status", s.handleLinkedInStatus)
		})

		r.With(s.requireCronSecret).Get("/cron/publish-scheduled", s.handlePublishScheduled)
		r.With(s.requireCronSecret).Post("/cron/publish-scheduled", s.handlePublishScheduled)

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", s.handleListPosts)
			r.Post("/", s.handleSavePosts)
			r.Get("/{id}", s.handleGetPost)
			r.Patch("/{id}", s.handleUpdatePost)
			r.Delete("/{id}", s.handleDeletePost)
			r.Post("/{id}/schedule", s.handleSchedulePost)
			r.Post("/{id}/publish", s.handlePublishPost)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Delete("/{id}", s.handleDeleteSource)
		})

		r.Route("/ideas", func(r chi.Router) {
			r.Get("/", s.handleListIdeas)
			r.Post("/", s.handleCreateIdea)
			r.Delete("/{id}", s.handleDeleteIdea)
		})

		r.Route("/instructions", func(r chi.Router) {
			r.Get("/", s.handleListInstructions)
			r.Post("/", s.handleCreateInstruction)
			r.Patch("/{id}", s.handleUpdateInstruction)
			r.Delete("/{id}", s.handleDeleteInstruction)
		})

		r.Route("/exports", func(r chi.Router) {
			r.Get("/", s.handleListExports)
			r.Post("/", s.handleCreateExport)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Infow("Shutting down HTTP server gracefully")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Infow("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
