package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/cache"
	"github.com/raaihank/textfix/internal/config"
	"github.com/raaihank/textfix/internal/corrector"
	"github.com/raaihank/textfix/internal/logger"
	"github.com/raaihank/textfix/internal/store"
	"github.com/raaihank/textfix/internal/web"
	"github.com/raaihank/textfix/internal/websocket"
)

// Version is reported by /info
const Version = "0.1.0"

// CacheStats reports result cache statistics
type CacheStats interface {
	GetStats(ctx context.Context) (*cache.CacheStats, error)
}

// StoreStats reports database statistics
type StoreStats interface {
	GetStats(ctx context.Context) (*store.Stats, error)
}

// Server is the textfix HTTP server
type Server struct {
	config    *config.Config
	logger    *logger.Logger
	corrector *corrector.Service
	wsHub     *websocket.Hub
	cache     CacheStats
	store     StoreStats
	limiter   *clientLimiter
	router    *mux.Router
	server    *http.Server
	startTime time.Time
}

// Option configures a Server
type Option func(*Server)

// WithHub serves the dashboard WebSocket from hub
func WithHub(hub *websocket.Hub) Option {
	return func(s *Server) {
		s.wsHub = hub
	}
}

// WithCacheStats includes cache statistics in /api/v1/stats
func WithCacheStats(c CacheStats) Option {
	return func(s *Server) {
		s.cache = c
	}
}

// WithStoreStats includes database statistics in /api/v1/stats
func WithStoreStats(st StoreStats) Option {
	return func(s *Server) {
		s.store = st
	}
}

// New creates a server for the correction service
func New(cfg *config.Config, log *logger.Logger, svc *corrector.Service, opts ...Option) *Server {
	s := &Server{
		config:    cfg,
		logger:    log.WithComponent("server"),
		corrector: svc,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.RateLimit.Enabled {
		s.limiter = newClientLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst)
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	s.router.HandleFunc("/", web.ServeDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/dashboard", web.ServeDashboard).Methods(http.MethodGet)

	if s.wsHub != nil && s.config.WebSocket.Enabled {
		s.router.HandleFunc(s.config.WebSocket.Path, s.wsHub.HandleWebSocket).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.Use(s.rateLimitMiddleware)
	api.HandleFunc("/correct", s.handleCorrect).Methods(http.MethodPost)
	api.HandleFunc("/trace", s.handleTrace).Methods(http.MethodPost)
	api.HandleFunc("/dataset", s.handleDataset).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Stop is called
func (s *Server) Start() error {
	s.logger.Info("Starting textfix server",
		zap.Int("port", s.config.Server.Port),
		zap.String("dataset_version", s.corrector.DatasetVersion()),
		zap.Bool("websocket_enabled", s.wsHub != nil && s.config.WebSocket.Enabled),
		zap.Bool("rate_limit_enabled", s.limiter != nil),
		zap.Bool("trust_proxy_headers", s.config.RateLimit.TrustProxyHeaders),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping textfix server")
	return s.server.Shutdown(ctx)
}
