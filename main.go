package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudslice/reductionist/pkg/cache"
	"github.com/cloudslice/reductionist/pkg/config"
	"github.com/cloudslice/reductionist/pkg/governor"
	"github.com/cloudslice/reductionist/pkg/logging"
	"github.com/cloudslice/reductionist/pkg/metrics"
	"github.com/cloudslice/reductionist/pkg/middleware"
	"github.com/cloudslice/reductionist/pkg/objectstore"
	"github.com/cloudslice/reductionist/pkg/orchestrator"
)

const acquireTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load configuration: %v", err)
	}

	log := logging.NewRoot(cfg.LogLevel, os.Stdout)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	s3Store, err := objectstore.NewS3Store(cfg.S3Region, cfg.S3PathStyle, cfg.S3ClientCache, log)
	if err != nil {
		log.Fatalf("failed to initialize S3 store: %v", err)
	}
	httpStore := objectstore.NewHTTPStore(cfg.HTTPTimeout, log)
	store := objectstore.NewRouter(s3Store, httpStore)

	metricsRegistry := metrics.New()

	var chunkCache *cache.Cache
	cacheMode := parseCacheAuthMode(cfg.CacheAuthMode, log)
	if cfg.CacheEnabled {
		chunkCache, err = cache.New(cache.Config{
			Dir:       cfg.CacheDir,
			TTL:       cfg.CacheTTL,
			SizeLimit: int64(cfg.CacheSizeLimit),
			QueueSize: cfg.CacheQueueSize,
			AuthMode:  cacheMode,
			AuthCheck: store.IsAuthorized,
			KeyFormat: cfg.CacheKeyFormat,
			Metrics:   metricsRegistry,
			OnDrop: func() {
				log.Warn("cache write queue full, dropping write")
				metricsRegistry.CacheWriteDropped()
			},
		}, log)
		if err != nil {
			log.Fatalf("failed to initialize chunk cache: %v", err)
		}
	} else {
		log.Info("chunk cache disabled")
	}

	gov := governor.New(governor.Config{
		S3Permits:  cfg.S3Connections,
		MemPermits: cfg.MemLimitBytes,
		CPUPermits: cfg.CPUThreads,
	})

	orch := orchestrator.New(log, orchestrator.Config{
		Store:          store,
		Cache:          chunkCache,
		CacheMode:      cacheMode,
		KeyFormat:      cfg.CacheKeyFormat,
		Governor:       gov,
		Metrics:        metricsRegistry,
		AcquireTimeout: acquireTimeout,
	})

	handler := middleware.CorsMiddleware(nil, orch)
	server := &http.Server{
		Addr:    cfg.ListenHost + ":" + cfg.ListenPort,
		Handler: handler,
	}
	if cfg.TLSEnabled {
		server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	serverErrors := make(chan error, 1)
	go func() {
		if cfg.TLSEnabled {
			log.Infof("listening on %s (TLS)", server.Addr)
			serverErrors <- server.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
			return
		}
		log.Infof("listening on %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	orchestratorErrors := make(chan error, 1)
	go func() {
		orchestratorErrors <- orch.Run(ctx, cfg.CachePruneInterval)
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Errorf("server error: %v", err)
		}
		cancel()
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Errorf("server shutdown error: %v", err)
		}
	}

	log.Info("waiting for background workers to stop")
	if err := <-orchestratorErrors; err != nil {
		log.Errorf("orchestrator worker error: %v", err)
	}
	log.Info("reductionist stopped")
}

// parseCacheAuthMode maps the CACHE_AUTH_MODE env string onto the cache
// package's enum, falling back to cache.AuthPerIdentity on an unrecognized
// value.
func parseCacheAuthMode(raw string, log logging.Logger) cache.AuthMode {
	switch raw {
	case "none":
		return cache.AuthNone
	case "shared_with_check":
		return cache.AuthSharedWithCheck
	case "per_identity":
		return cache.AuthPerIdentity
	default:
		log.Warnf("unrecognized CACHE_AUTH_MODE %q, defaulting to per_identity", raw)
		return cache.AuthPerIdentity
	}
}
