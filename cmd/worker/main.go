package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/tramatex-erp/tramatex-erp/internal/app"
	jobmetrics "github.com/tramatex-erp/tramatex-erp/internal/jobs"
	"github.com/tramatex-erp/tramatex-erp/internal/platform/db"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
	"github.com/tramatex-erp/tramatex-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	idempotencyStore := shared.NewIdempotencyStore(pool)
	metrics := jobmetrics.NewMetrics(nil)

	sweepTask, err := jobs.NewQuotationDeadlineSweepTask(time.Now())
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeQuotationDeadlineSweep, Handler: jobs.NewQuotationDeadlineSweepHandler(pool, logger, metrics)},
			{Type: jobs.TaskTypeIdempotencyCleanup, Handler: jobs.NewIdempotencyCleanupHandler(idempotencyStore, logger, metrics)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: jobs.NewIdempotencyCleanupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
