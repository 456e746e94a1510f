package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"attendance/internal/app"
	"attendance/internal/config"
	"attendance/internal/logging"
	"attendance/internal/queue"
	"attendance/internal/store"
)

// Worker drains scanner check-ins from Redis and records automatic attendance.
func main() {
	cfg := config.Load()
	logger := logging.Configure(logging.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	rdb := a.Redis
	if rdb == nil {
		if rdb, err = store.NewRedis(ctx, cfg.RedisAddr); err != nil {
			log.Fatal().Err(err).Msg("redis connect failed")
		}
		defer rdb.Close()
	}

	q := queue.NewRedisQueue(rdb.Client, cfg.CheckinQueue, logger.With().Str("component", "queue").Logger())
	w := queue.NewWorker(q, a.Attendance, logger.With().Str("component", "worker").Logger())
	if _, err := w.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}
