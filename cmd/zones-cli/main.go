package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-zones/internal/auth"
	"github.com/kjstillabower/weather-zones/internal/cache"
	"github.com/kjstillabower/weather-zones/internal/cli"
	"github.com/kjstillabower/weather-zones/internal/config"
	"github.com/kjstillabower/weather-zones/internal/gateway"
	"github.com/kjstillabower/weather-zones/internal/observability"
	"github.com/kjstillabower/weather-zones/internal/search"
	"github.com/kjstillabower/weather-zones/internal/session"
	"github.com/kjstillabower/weather-zones/internal/table"
	"github.com/kjstillabower/weather-zones/internal/ui"
	"github.com/kjstillabower/weather-zones/internal/zones"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	storage, err := session.NewFileStorage(cfg.StateDir)
	if err != nil {
		logger.Fatal("state dir", zap.Error(err))
	}
	sessions := session.NewStore(storage, logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	notifier := ui.NewNotifier()
	busy := ui.NewBusyTracker()

	client, err := gateway.New(gateway.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Tokens:  sessions,
		OnUnauthorized: func() {
			if err := sessions.Clear(); err != nil {
				logger.Warn("session clear", zap.Error(err))
			}
			notifier.Push(ui.SeverityWarning, "Your session has expired, please log in again")
		},
		Limiter: limiter,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("gateway", zap.Error(err))
	}

	var snapshots cache.SnapshotStore
	var memcacheCloser *cache.MemcachedSnapshots
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedSnapshots(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		memcacheCloser = mc
		snapshots = mc
		logger.Info("snapshot backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		snapshots = cache.NewInMemorySnapshots()
		logger.Info("snapshot backend: in_memory")
	}

	engine := cache.NewEngine(cache.Config{
		DefaultTTL:     cfg.CacheTTL,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, snapshots, logger)

	coord := zones.NewCoordinator(client, engine, notifier, busy, sessions, logger)
	authSvc := auth.NewService(client, sessions, engine, notifier, logger)
	tableCtrl := table.NewController(coord, cfg.TablePageSize)
	searchCtrl := search.NewController(client, engine, search.Options{
		Debounce:  cfg.SearchDebounce,
		MinLength: cfg.SearchMinLength,
		TTL:       cfg.SearchTTL,
	}, logger)

	if cfg.MetricsListenAddr != "" {
		go func() {
			httpMux := http.NewServeMux()
			httpMux.Handle("/metrics", observability.MetricsHandler())
			logger.Info("metrics listener", zap.String("addr", cfg.MetricsListenAddr))
			if err := http.ListenAndServe(cfg.MetricsListenAddr, httpMux); err != nil {
				logger.Warn("metrics listener", zap.Error(err))
			}
		}()
	}

	app := cli.NewApp(cli.Deps{
		Sessions: sessions,
		Auth:     authSvc,
		Zones:    coord,
		Table:    tableCtrl,
		Search:   searchCtrl,
		Notifier: notifier,
		Busy:     busy,
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Run(ctx)

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Warn("memcached close", zap.Error(err))
		}
	}
}
