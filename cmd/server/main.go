// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jason-s-yu/shadow-signal/internal/cache"
	"github.com/jason-s-yu/shadow-signal/internal/config"
	"github.com/jason-s-yu/shadow-signal/internal/database"
	"github.com/jason-s-yu/shadow-signal/internal/database/migrations"
	"github.com/jason-s-yu/shadow-signal/internal/game"
	"github.com/jason-s-yu/shadow-signal/internal/handlers"
	"github.com/jason-s-yu/shadow-signal/internal/models"
	"github.com/jason-s-yu/shadow-signal/internal/store"
	"github.com/jason-s-yu/shadow-signal/internal/words"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rooms store.RoomStore
	var recorder game.Recorder
	switch cfg.RoomStore {
	case "redis":
		rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		rooms = store.NewRedisStore(rdb, cfg.RoomTTL)
		recorder = cache.NewPublisher(rdb, cfg.HistorianQueue)
		logger.Infof("room store: redis at %s", cfg.RedisAddr)
	default:
		mem := store.NewMemoryStore()
		go mem.RunSweeper(ctx, time.Minute, func(n int) {
			logger.WithField("removed", n).Debug("swept expired rooms")
		})
		rooms = mem
		logger.Info("room store: memory")
	}

	engine, err := newEngine(cfg, rooms, recorder, logger)
	if err != nil {
		logger.Fatalf("engine: %v", err)
	}

	if cfg.DatabaseURL != "" {
		if err := migrations.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatalf("migrations: %v", err)
		}
		pool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		archive := database.NewArchive(pool)
		engine.OnGameEnd = func(room *models.Room) {
			go archiveResult(archive, room, logger)
		}
		logger.Info("game results will be archived")
	}

	clock := game.NewTurnClock(ctx, engine, logger)
	defer clock.Stop()

	gs := handlers.NewGameServer(engine, clock, handlers.NewHub(logger, cfg.RedactRoomState), logger)
	gs.MessageRate = rate.Limit(cfg.WSMessagesPerSecond)
	gs.MessageBurst = cfg.WSBurst

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(logger, gs, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}

// newEngine builds the engine over rooms with the embedded word catalog and the configured timings.
func newEngine(cfg config.Config, rooms store.RoomStore, recorder game.Recorder, logger logrus.FieldLogger) (*game.Engine, error) {
	catalog, err := words.Default()
	if err != nil {
		return nil, fmt.Errorf("word catalog: %w", err)
	}
	engine := game.NewEngine(rooms, catalog, logger)
	engine.TurnSeconds = cfg.TurnSeconds
	engine.RoomTTL = cfg.RoomTTL
	engine.DecoyTimeout = cfg.DecoyTimeout
	if recorder != nil {
		engine.Recorder = recorder
	}
	return engine, nil
}

func archiveResult(archive *database.Archive, room *models.Room, logger logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := archive.RecordGameResult(ctx, room); err != nil {
		logger.WithError(err).WithField("room", room.Code).Warn("failed to archive game result")
	}
}
