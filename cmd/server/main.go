package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sellerdesk/variant-engine/config"
	httpDelivery "github.com/sellerdesk/variant-engine/internal/delivery/http"
	"github.com/sellerdesk/variant-engine/internal/domain"
	"github.com/sellerdesk/variant-engine/internal/infrastructure/cache"
	"github.com/sellerdesk/variant-engine/internal/infrastructure/catalog"
	"github.com/sellerdesk/variant-engine/internal/infrastructure/logging"
	"github.com/sellerdesk/variant-engine/internal/infrastructure/remote"
	"github.com/sellerdesk/variant-engine/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Server.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Infow("starting variant engine",
		"version", "1.0.0",
		"environment", cfg.Server.Environment,
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"cache", cfg.Cache.Type,
		"remoteDetection", cfg.Remote.Enabled,
	)

	// Initialize infrastructure dependencies
	catalogRepo, groupStore, feedbackLog, err := buildStores(cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
	}

	cacheRepo, err := buildCache(cfg)
	if err != nil {
		log.Fatalw("failed to connect cache", "type", cfg.Cache.Type, "error", err)
	}

	detector := buildDetector(cfg, log)

	// Initialize usecase layer
	detection := usecase.NewDetectionService(
		catalogRepo, groupStore, feedbackLog, detector, cacheRepo, log,
		usecase.DetectionServiceOptions{
			DebounceInterval: cfg.Detection.DebounceInterval,
			CacheTTL:         cfg.Cache.TTL,
			Defaults:         cfg.Detection.Defaults(),
		},
	)
	grouping := usecase.NewGroupingService(groupStore, catalogRepo, feedbackLog, detection, log)

	// Prime the membership index from persisted groups
	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	if err := grouping.ReloadGroups(startCtx); err != nil {
		cancelStart()
		log.Fatalw("failed to load variant groups", "error", err)
	}
	cancelStart()

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(detection, grouping, catalogRepo, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Infow("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Infow("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnw("shutdown incomplete", "error", err)
	}
	log.Infow("server stopped")
}

// buildStores selects the persistence backend. The memory backend keeps
// everything in-process; sqlite and postgres share the gorm implementation.
func buildStores(cfg *config.Config) (domain.CatalogRepository, domain.GroupStore, domain.FeedbackSink, error) {
	if cfg.Storage.Driver == "memory" {
		return catalog.NewMemoryCatalog(), catalog.NewMemoryGroupStore(), catalog.NewMemoryFeedbackLog(), nil
	}

	db, err := catalog.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	return catalog.NewGormCatalog(db), catalog.NewGormGroupStore(db), catalog.NewGormFeedbackLog(db), nil
}

// buildCache selects the cache backend from config.
func buildCache(cfg *config.Config) (domain.CacheRepository, error) {
	if cfg.Cache.Type == "redis" {
		return cache.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	}
	return cache.NewMemoryCache(), nil
}

// buildDetector picks the in-process engine unless a remote detection
// service is configured.
func buildDetector(cfg *config.Config, log *zap.SugaredLogger) domain.Detector {
	if cfg.Remote.Enabled {
		return remote.NewDetector(remote.Options{
			BaseURL:           cfg.Remote.BaseURL,
			APIKey:            cfg.Remote.APIKey,
			Timeout:           cfg.Remote.Timeout,
			RequestsPerSecond: cfg.Remote.RequestsPerSecond,
			Burst:             cfg.Remote.Burst,
		}, log)
	}
	return usecase.NewLocalDetector(usecase.DetectorOptions{
		RejectionLimit:  cfg.Detection.RejectionLimit,
		PriceRatioLimit: cfg.Detection.PriceRatioLimit,
		LargeGroupSize:  cfg.Detection.LargeGroupSize,
	}, log)
}
