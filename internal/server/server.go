// Package server assembles the chat server from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/internal/cache"
	"github.com/weiawesome/wes-io-chat/internal/config"
	"github.com/weiawesome/wes-io-chat/internal/dispatcher"
	"github.com/weiawesome/wes-io-chat/internal/gate"
	chatgrpc "github.com/weiawesome/wes-io-chat/internal/grpc"
	"github.com/weiawesome/wes-io-chat/internal/handler"
	"github.com/weiawesome/wes-io-chat/internal/hub"
	"github.com/weiawesome/wes-io-chat/internal/idgen"
	"github.com/weiawesome/wes-io-chat/internal/kafka"
	"github.com/weiawesome/wes-io-chat/internal/media"
	"github.com/weiawesome/wes-io-chat/internal/metrics"
	"github.com/weiawesome/wes-io-chat/internal/registry"
	"github.com/weiawesome/wes-io-chat/internal/repository"
	"github.com/weiawesome/wes-io-chat/internal/service"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/storage"
)

const revocationCleanupInterval = 10 * time.Minute

// Server owns every long-lived component of the chat server.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	db       *gorm.DB
	tokens   *jwt.Manager
	hub      *hub.Hub
	cache    cache.HistoryCache
	producer kafka.EventProducer
	store    storage.Storage

	auth   service.AuthService
	chat   service.ChatService
	router *gin.Engine
}

// New connects to the configured backends and builds the HTTP router. The
// hub is not started until Run.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: log.L(),
	}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = db

	if err := repository.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}
	s.logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}
	s.tokens = tokens

	s.cache = cache.NopCache{}
	if cfg.Redis.Enabled {
		c, err := cache.NewRedisHistoryCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s.cache = c
		s.logger.Info().Str("address", cfg.Redis.Address).Msg("redis history cache connected")
	}

	s.producer = kafka.NopProducer{}
	if cfg.Kafka.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize kafka producer: %w", err)
		}
		s.producer = p
		s.logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka producer connected")
	}

	if cfg.Storage.Enabled {
		store, err := storage.New(ctx, cfg.Storage.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		s.store = store
		s.logger.Info().Str("driver", cfg.Storage.Driver).Msg("media storage ready")
	}

	reg := registry.New()
	s.hub = hub.NewHub(reg, cfg.WebSocket)
	events := dispatcher.NewDispatcher(reg)
	uploader := media.NewUploader(s.store, cfg.Storage.MaxImageBytes, cfg.Storage.URLExpiry)

	users := repository.NewGormUserRepository(db)
	s.auth = service.NewAuthService(users, tokens, s.hub, events, uploader, s.producer, cfg.Auth.BcryptCost)
	s.chat = service.NewChatService(service.ChatDeps{
		Users:    users,
		Messages: repository.NewGormMessageRepository(db),
		Cache:    s.cache,
		CacheTTL: cfg.Cache.TTL,
		IDs:      idgen.NewULIDGenerator(),
		Uploader: uploader,
		Router:   events,
		Sessions: s.hub,
		Producer: s.producer,
	})

	s.router = s.buildRouter()
	ok = true
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(log.GinMiddleware(s.logger, "/health", "/metrics"))
	r.Use(metrics.GinMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	authMiddleware := middleware.NewAuthMiddleware(s.tokens, s.cfg.Auth.CookieName)

	r.GET("/health", handler.Health(s.hub.Online))
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	handler.NewAuthHandler(s.auth, authMiddleware, handler.CookieConfig{
		Name:   s.cfg.Auth.CookieName,
		Secure: s.cfg.Auth.CookieSecure,
	}).RegisterRoutes(api)
	handler.NewMessageHandler(s.chat, authMiddleware).RegisterRoutes(api)

	wsGate := gate.NewTokenGate(s.tokens, s.cfg.Auth.CookieName)
	handler.NewWSHandler(s.hub, wsGate, s.cfg.WebSocket).RegisterRoutes(r)

	if s.store != nil && s.cfg.Storage.Driver == "local" {
		handler.NewMediaHandler(s.store).RegisterRoutes(r, mediaPrefix(s.cfg.Storage.Local.PublicURL))
	}

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the hub, the HTTP server and, if enabled, the gRPC health
// server. It blocks until ctx is cancelled, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go s.hub.Run(hubCtx)
	go s.cleanupRevocations(hubCtx)

	var health *chatgrpc.HealthServer
	if s.cfg.GRPC.Enabled {
		addr := fmt.Sprintf("%s:%d", s.cfg.GRPC.Host, s.cfg.GRPC.Port)
		hs, err := chatgrpc.NewHealthServer(addr, s.logger)
		if err != nil {
			return err
		}
		hs.Start(s.hub.Done())
		health = hs
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("chat server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		runErr = err
	}

	s.logger.Info().Msg("shutting down chat server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Closing the sockets first lets hijacked websocket connections end
	// before the HTTP server waits on them.
	stopHub()
	select {
	case <-s.hub.Done():
	case <-shutdownCtx.Done():
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn().Err(err).Msg("http server forced to shutdown")
	}
	if health != nil {
		health.Stop(shutdownCtx)
	}
	return runErr
}

// Close releases backend connections.
func (s *Server) Close() {
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close kafka producer")
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close history cache")
		}
	}
	if s.db != nil {
		if err := database.Close(s.db); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close database")
		}
	}
}

func (s *Server) cleanupRevocations(ctx context.Context) {
	ticker := time.NewTicker(revocationCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tokens.CleanupExpiredRevocations()
		}
	}
}

// mediaPrefix returns the route path local media is served under.
func mediaPrefix(publicURL string) string {
	u, err := url.Parse(publicURL)
	if err != nil || u.Path == "" {
		return "/media"
	}
	return u.Path
}
