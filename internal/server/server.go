package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/videotube/accounts/config"
	"github.com/videotube/accounts/internal/auth"
	"github.com/videotube/accounts/internal/db"
	"github.com/videotube/accounts/internal/events"
	"github.com/videotube/accounts/internal/handlers"
	"github.com/videotube/accounts/internal/metrics"
	"github.com/videotube/accounts/internal/mq"
	"github.com/videotube/accounts/internal/ratelimit"
	"github.com/videotube/accounts/internal/services"
	"github.com/videotube/accounts/internal/storage"
	"github.com/videotube/accounts/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
)

// accountStore is what a database backend provides to the services.
type accountStore interface {
	services.UserRepository
	services.SessionStore
	services.ChannelRepository
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	logger     *slog.Logger

	db     *sql.DB
	mongo  *mongo.Client
	broker mq.Backend
	redis  *redis.Client
}

// New connects the configured backends and wires the account routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{logger: logger}

	repo, err := s.openStore(ctx, cfg.Database)
	if err != nil {
		s.closeBackends(ctx)
		return nil, err
	}

	hasher, err := auth.NewHasher(cfg.Auth.HashCost)
	if err != nil {
		s.closeBackends(ctx)
		return nil, err
	}
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenExpiry,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		RefreshTTL:    cfg.Auth.RefreshTokenExpiry,
	}, nil)
	if err != nil {
		s.closeBackends(ctx)
		return nil, err
	}

	publisher, err := s.openEvents(ctx, cfg.MQ)
	if err != nil {
		s.closeBackends(ctx)
		return nil, err
	}

	media, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		s.closeBackends(ctx)
		return nil, fmt.Errorf("open storage: %w", err)
	}

	m := metrics.New()
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithEvents(publisher),
		services.WithMetrics(m),
	}

	deps := handlers.Deps{
		Sessions:       services.NewSessionService(repo, repo, hasher, tokens, opts...),
		Users:          services.NewUserService(repo, hasher, opts...),
		Channels:       services.NewChannelService(repo, repo, opts...),
		LoginLimiter:   s.loginLimiter(cfg.RateLimit),
		Cookies:        handlers.CookieConfig{Secure: cfg.Server.CookieSecure},
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	}
	if media != nil {
		deps.Media = media
	} else {
		logger.Warn("media storage disabled, image uploads will be rejected")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	if cfg.Server.TrustProxyHeaders {
		router.Use(middleware.RealIP)
	}
	router.Use(
		middleware.Recoverer,
		handlers.RequestLogger(logger, m),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)
	if len(cfg.Server.CORSOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", m.Handler())
	router.Route("/api/v1/users", func(r chi.Router) {
		handlers.UsersRouter(r, deps)
	})

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

func (s *Server) openStore(ctx context.Context, cfg config.DatabaseConfig) (accountStore, error) {
	switch cfg.Backend {
	case "mongo":
		client, database, err := db.OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		s.mongo = client
		repo := store.NewMongoStore(database)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return repo, nil
	case "postgres":
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.db = conn
		return store.NewPostgresStore(conn), nil
	case "memory":
		s.logger.Warn("using in-memory store, accounts are lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

func (s *Server) openEvents(ctx context.Context, cfg config.MQConfig) (events.Publisher, error) {
	broker, err := mq.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open mq: %w", err)
	}
	if broker == nil {
		return events.Nop{}, nil
	}
	s.broker = broker
	return events.NewMQPublisher(broker, cfg.Channel, s.logger), nil
}

func (s *Server) loginLimiter(cfg config.RateLimitConfig) ratelimit.Limiter {
	if cfg.LoginLimit <= 0 {
		return nil
	}
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.LoginLimit, cfg.LoginWindow)
	}
	s.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return ratelimit.NewRedis(s.redis, cfg.LoginLimit, cfg.LoginWindow, "")
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is done or the listener fails, then shuts down,
// allowing in-flight requests up to shutdownTimeout. Backends are closed on
// both paths.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
		s.logger.Info("shutting down", slog.Duration("timeout", shutdownTimeout))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown drains in-flight requests and closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.closeBackends(ctx)
	return err
}

func (s *Server) closeBackends(ctx context.Context) {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("close postgres", slog.Any("error", err))
		}
	}
	if s.mongo != nil {
		if err := s.mongo.Disconnect(ctx); err != nil {
			s.logger.Error("close mongo", slog.Any("error", err))
		}
	}
	if s.broker != nil {
		if err := s.broker.Close(); err != nil {
			s.logger.Error("close mq", slog.Any("error", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("close redis", slog.Any("error", err))
		}
	}
}
