// cmd/historian/main.go pops room actions from the Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/jason-s-yu/shadow-signal/internal/cache"
	"github.com/jason-s-yu/shadow-signal/internal/config"
	"github.com/jason-s-yu/shadow-signal/internal/database"
	"github.com/jason-s-yu/shadow-signal/internal/database/migrations"
	"github.com/jason-s-yu/shadow-signal/internal/historian"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrations.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatalf("migrations: %v", err)
	}
	pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	hs := historian.NewService(rdb, database.NewArchive(pool), cfg.HistorianQueue, logger)
	hs.BatchSize = cfg.HistorianBatchSize
	hs.FlushDelay = cfg.HistorianFlush
	hs.Run(ctx)

	logger.Info("Historian shutdown complete.")
}
