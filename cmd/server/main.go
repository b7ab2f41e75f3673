package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/compath-server/internal/api"
	"github.com/compath-server/internal/cache"
	"github.com/compath-server/internal/config"
	"github.com/compath-server/internal/manager"
	"github.com/compath-server/internal/store"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := config.NewLogger(cfg.Logging)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	pathwayStore, err := store.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to open pathway store: %v", err)
	}
	defer pathwayStore.Close()

	var opts []manager.Option
	if cfg.Cache.PathwayLRU > 0 {
		opts = append(opts, manager.WithPathwayCache(cfg.Cache.PathwayLRU))
	}
	svc, err := manager.NewFromStore(pathwayStore, logger, opts...)
	if err != nil {
		logger.Fatalf("Failed to create pathway manager: %v", err)
	}

	var queryCache api.QueryCache
	if cfg.Cache.Enabled {
		qc, err := cache.New(cfg.Cache, logger)
		if err != nil {
			// The server works without Redis; the store answers everything.
			logger.WithError(err).Warn("Query cache unavailable, continuing without it")
		} else {
			defer qc.Close()
			queryCache = qc
		}
	}

	server := api.NewServer(cfg, svc, queryCache, logger)
	if err := server.Start(ctx); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}

	logger.Info("Server stopped")
}
