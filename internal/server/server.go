package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"lumina/internal/ai"
	"lumina/internal/catalog"
	"lumina/internal/config"
	"lumina/internal/database"
	custommiddleware "lumina/internal/middleware"
	"lumina/internal/repository"
	"lumina/internal/service"
	"lumina/internal/session"
	"lumina/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// sweepInterval is how often expired in-memory sessions are dropped
const sweepInterval = 5 * time.Minute

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     *sql.DB
	redis  *redis.Client
	stop   chan struct{}
}

// Dependencies are the collaborators the router is built from
type Dependencies struct {
	Catalog service.CatalogLoader
	Store   session.Store
	Gateway service.AIGateway
	Redis   *redis.Client
	DB      *sql.DB
}

// NewServer connects the configured backends and builds the HTTP server
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deps := Dependencies{}

	// Catalog source
	var source catalog.Source
	switch cfg.Catalog.Source {
	case "postgres":
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Info("Database health check", zap.Any("health", database.Health(ctx, db)))

		if err := database.RunMigrations(db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("Database migrations completed successfully")

		if err := database.GetMigrationStatus(db); err != nil {
			logger.Warn("Failed to report migration status", zap.Error(err))
		}

		deps.DB = db
		source = repository.NewProductRepository(db)
	case "static", "":
		source = catalog.NewStatic()
	default:
		return nil, fmt.Errorf("unknown catalog source %q", cfg.Catalog.Source)
	}
	deps.Catalog = catalog.NewCached(source, logger)

	// Redis backs shared sessions and rate limiting
	if cfg.Session.Store == "redis" || cfg.RateLimit.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			closeQuietly(deps, logger)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Redis = client
	}

	switch cfg.Session.Store {
	case "redis":
		deps.Store = session.NewRedisStore(deps.Redis, cfg.Session.TTL)
	case "memory", "":
		deps.Store = session.NewMemoryStore(cfg.Session.TTL)
	default:
		closeQuietly(deps, logger)
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}

	if cfg.Gemini.APIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; search and chat will degrade")
	}
	client := ai.NewGeminiClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model, logger)
	deps.Gateway = ai.NewGateway(client, logger)
	logger.Info("AI gateway ready", zap.String("model", client.Model()))

	return New(cfg, logger, deps), nil
}

// New builds the server from already constructed dependencies
func New(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	s := &Server{
		config: cfg,
		logger: logger,
		db:     deps.DB,
		redis:  deps.Redis,
		stop:   make(chan struct{}),
	}

	s.Server = &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      NewRouter(cfg, logger, deps),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	if mem, ok := deps.Store.(*session.MemoryStore); ok {
		go s.sweep(mem)
	}

	return s
}

// NewRouter wires middleware, handlers and routes
func NewRouter(cfg *config.Config, logger *zap.Logger, deps Dependencies) http.Handler {
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{"status": "ok"}
		if deps.DB != nil {
			health["database"] = database.Health(r.Context(), deps.DB)
		}
		if deps.Redis != nil {
			if err := deps.Redis.Ping(r.Context()).Err(); err != nil {
				health["redis"] = "down"
			} else {
				health["redis"] = "up"
			}
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, health)
	})

	// Initialize services
	storefrontService := service.NewStorefrontService(deps.Catalog, deps.Store, deps.Gateway, logger)

	// Initialize handlers
	storefrontHandler := transport.NewStorefrontHandler(storefrontService, logger)
	cartHandler := transport.NewCartHandler(storefrontService, logger)
	chatHandler := transport.NewChatHandler(storefrontService, logger)

	// AI calls are rate limited per session when enabled
	aiLimiter := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimit.Enabled && deps.Redis != nil {
		aiLimiter = custommiddleware.RateLimitMiddleware(deps.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit:ai",
		}, logger)
	}

	// Register routes
	router.Group(func(r chi.Router) {
		r.Use(custommiddleware.SessionMiddleware(cfg.Session.Secret, cfg.Session.TTL, !cfg.Server.IsDevelopment(), logger))
		r.Use(custommiddleware.RequireJSON(logger))

		storefrontHandler.RegisterRoutes(r, aiLimiter)
		cartHandler.RegisterRoutes(r)
		chatHandler.RegisterRoutes(r, aiLimiter)
	})

	return router
}

func (s *Server) sweep(store *session.MemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if removed := store.Sweep(); removed > 0 {
				s.logger.Debug("Expired sessions removed", zap.Int("count", removed))
			}
		}
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	close(s.stop)
	closeQuietly(Dependencies{DB: s.db, Redis: s.redis}, s.logger)

	s.logger.Sync()
	return nil
}

func closeQuietly(deps Dependencies, logger *zap.Logger) {
	// Close database connection
	if deps.DB != nil {
		if err := deps.DB.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if deps.Redis != nil {
		if err := deps.Redis.Close(); err != nil {
			logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
}
