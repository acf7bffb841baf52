package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusledger/internal/cache"
	"campusledger/internal/config"
	apphttp "campusledger/internal/http"
	"campusledger/internal/log"
	"campusledger/internal/session"
	"campusledger/internal/storage"
)

func main() {
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	// Query cache: redis when configured and reachable, otherwise an
	// in-process LRU. The dashboard works the same either way.
	var (
		qc      cache.QueryCache
		manager *cache.Manager
	)
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(context.Background(), cfg.RedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Warn("Redis unavailable, continuing with in-process cache", log.FieldError, err)
		} else {
			defer rc.Close()
			qc = rc
			logger.Info("Initialized redis query cache")
		}
	}
	if qc == nil {
		lru := cache.NewLRUCache(cfg.CacheMaxSize, cfg.CacheTTL)
		manager = cache.NewManager()
		manager.Register(lru)
		manager.StartCleanup(10 * time.Minute)
		defer manager.Stop()
		qc = lru
		logger.Info("Initialized in-process query cache",
			"max_size", cfg.CacheMaxSize, "ttl", cfg.CacheTTL.String())
	}

	repo, err := storage.Open(cfg.DatabaseURL, qc)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err)
		os.Exit(1)
	}
	defer repo.Close()

	sessions, err := session.Open(cfg.SessionDBPath)
	if err != nil {
		logger.Error("Failed to open session store",
			"path", cfg.SessionDBPath, log.FieldError, err)
		os.Exit(1)
	}
	defer sessions.Close()

	srv := apphttp.NewServer(":"+cfg.Port, cfg.DefaultUser, repo, sessions, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting campusledger server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
