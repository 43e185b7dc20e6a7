package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/cache"
	"github.com/dmitrijs2005/shopsync/internal/config"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/remote/dynamo"
	"github.com/dmitrijs2005/shopsync/internal/repositories/queue"
	"github.com/dmitrijs2005/shopsync/internal/repositories/store"
	"github.com/dmitrijs2005/shopsync/internal/scheduler"
	"github.com/dmitrijs2005/shopsync/internal/syncer"

	_ "modernc.org/sqlite"
)

func main() {
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db := store.NewDatabase(cfg.DatabasePath)
	defer db.Close()

	storeRepo := store.NewSQLiteRepository(db)
	queueRepo := queue.NewSQLiteRepository(db)

	remoteStore, err := dynamo.New(ctx, dynamo.Config{
		Table:    cfg.DynamoTable,
		Region:   cfg.AWSRegion,
		Endpoint: cfg.AWSEndpoint,
	})
	if err != nil {
		log.Fatalf("error initializing remote store: %v", err)
	}

	puller := syncer.NewPuller(storeRepo, remoteStore, cfg.Collections, cfg.BatchSize, logger)
	pusher := syncer.NewPusher(storeRepo, queueRepo, remoteStore, cfg.MaxRetries, logger)
	engine := syncer.New(puller, pusher, logger)

	sched := scheduler.New(engine, remoteStore, scheduler.Options{
		SyncInterval:        cfg.SyncInterval,
		OnlineCheckInterval: cfg.OnlineCheckInterval,
		WriteDelay:          cfg.WriteDelay,
	}, logger)

	svc := cache.NewService(storeRepo, queueRepo, remoteStore, sched, logger)

	sched.Start(ctx)
	defer sched.Stop()

	logger.Info(ctx, "cache engine started",
		"database", cfg.DatabasePath,
		"collections", cfg.Collections,
		"sync_interval", cfg.SyncInterval)

	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			status := svc.Status(ctx)
			logger.Info(ctx, "sync status",
				"online", status.Online, "pending", status.PendingSync)
		case <-ctx.Done():
			logger.Info(context.Background(), "shutting down")
			return
		}
	}
}
