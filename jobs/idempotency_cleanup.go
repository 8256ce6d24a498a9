package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tramatex-erp/tramatex-erp/internal/jobs"
	"github.com/tramatex-erp/tramatex-erp/internal/shared"
)

const (
	// TaskTypeIdempotencyCleanup prunes old idempotency keys.
	TaskTypeIdempotencyCleanup = "idempotencia:limpeza"

	idempotencyRetention = 7 * 24 * time.Hour
)

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupHandler returns the handler bound to the store.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("idempotency_cleanup")
		if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
			return tracker.End(err)
		}
		logger.Info("idempotency keys pruned", slog.Duration("retention", idempotencyRetention))
		return tracker.End(nil)
	}
}
