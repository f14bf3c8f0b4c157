package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/textfix/internal/cache"
	"github.com/raaihank/textfix/internal/config"
	"github.com/raaihank/textfix/internal/corrector"
	"github.com/raaihank/textfix/internal/dataset"
	"github.com/raaihank/textfix/internal/logger"
	"github.com/raaihank/textfix/internal/server"
	"github.com/raaihank/textfix/internal/store"
	"github.com/raaihank/textfix/internal/websocket"
)

var (
	version = server.Version
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.String("health-check", "", "Check the server at this address (e.g. http://localhost:8080) and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("textfixd %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck != "" {
		performHealthCheck(*healthCheck)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting textfixd",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("textfixd failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		LogText: cfg.Logging.LogText,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: true,
			Path:    cfg.Logging.File.Path,
		}
	}
	return logger.New(loggerConfig)
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []corrector.Option
	var serverOpts []server.Option

	var db *store.Store
	if cfg.Store.Enabled || cfg.Dataset.Source == "store" {
		var err error
		db, err = store.NewStore(&store.Config{
			DatabaseURL:     cfg.Store.DatabaseURL,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		}, log.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to store: %w", err)
		}
		defer db.Close()

		serverOpts = append(serverOpts, server.WithStoreStats(db))
		if cfg.Store.RecordHistory {
			opts = append(opts, corrector.WithHistory(db))
		}
	}

	d, err := loadDataset(ctx, cfg, db)
	if err != nil {
		return err
	}
	log.Info("Dataset loaded",
		zap.String("source", cfg.Dataset.Source),
		zap.String("path", cfg.Dataset.Path),
		zap.String("version", d.Version()),
	)

	if cfg.Cache.Enabled {
		rc, err := cache.NewResultCache(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
			KeyPrefix:      cfg.Cache.KeyPrefix,
		}, log.Logger)
		if err != nil {
			// The service works without a cache, only slower
			log.Warn("Result cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer rc.Close()
			opts = append(opts, corrector.WithCache(rc))
			serverOpts = append(serverOpts, server.WithCacheStats(rc))
		}
	}

	if cfg.WebSocket.Enabled {
		hub := websocket.NewHub(&websocket.HubConfig{
			BroadcastCorrections: cfg.WebSocket.Events.BroadcastCorrections,
			BroadcastDataset:     cfg.WebSocket.Events.BroadcastDataset,
			BroadcastConnections: cfg.WebSocket.Events.BroadcastConnections,
			Username:             cfg.WebSocket.Username,
			Password:             cfg.WebSocket.Password,
			MaxConnections:       cfg.WebSocket.MaxConnections,
			PingInterval:         cfg.WebSocket.PingInterval,
			PongTimeout:          cfg.WebSocket.PongTimeout,
			WriteTimeout:         cfg.WebSocket.WriteTimeout,
			MaxMessageSize:       cfg.WebSocket.MaxMessageSize,
		}, log.Logger)
		go hub.Run(ctx)

		opts = append(opts, corrector.WithBroadcaster(hub))
		serverOpts = append(serverOpts, server.WithHub(hub))
	}

	svc, err := corrector.NewService(corrector.Config{
		DefaultTone:    cfg.Pipeline.DefaultTone,
		DefaultMode:    cfg.Pipeline.DefaultMode,
		MaxInputLength: cfg.Pipeline.MaxInputLength,
		MatchTimeout:   cfg.Pipeline.MatchTimeout,
	}, d, log, opts...)
	if err != nil {
		return fmt.Errorf("failed to create corrector: %w", err)
	}
	defer svc.Close()

	if cfg.Dataset.Source != "store" {
		reloader := newDatasetReloader(ctx, svc, log.Logger)
		if err := reloader.follow(cfg.Dataset.Path, cfg.Dataset.Watch); err != nil {
			return err
		}
		defer reloader.stop()

		watchConfig(reloader, log)
	}

	srv := server.New(cfg, log, svc, serverOpts...)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelShutdown()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server gracefully: %w", err)
		}

		log.Info("Server shutdown complete")
		return nil
	}
}

func loadDataset(ctx context.Context, cfg *config.Config, db *store.Store) (*dataset.Dataset, error) {
	if cfg.Dataset.Source == "store" {
		d, err := db.LoadDataset(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load dataset from store: %w", err)
		}
		return d, nil
	}

	d, err := dataset.LoadFile(cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return d, nil
}

// watchConfig moves the dataset to a new path when the configuration file
// changes it. Other settings take effect on restart.
func watchConfig(reloader *datasetReloader, log *logger.Logger) {
	err := config.Watch(func(next *config.Config) {
		if err := reloader.applyConfig(next); err != nil {
			log.Error("Failed to apply dataset configuration", zap.Error(err))
			return
		}
		path, watching := reloader.current()
		log.Info("Configuration changed",
			zap.String("dataset_path", path),
			zap.Bool("dataset_watch", watching))
	}, func(err error) {
		log.Warn("Ignoring configuration change", zap.Error(err))
	})
	if err != nil {
		log.Debug("Configuration watch disabled", zap.Error(err))
	}
}

// performHealthCheck performs a health check against a running server
func performHealthCheck(addr string) {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get(addr + "/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
