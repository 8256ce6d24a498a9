package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/tramatex-erp/tramatex-erp/internal/jobs"
)

const (
	// TaskTypeQuotationDeadlineSweep flags open quotations past deadline.
	TaskTypeQuotationDeadlineSweep = "cotacoes:varredura_prazo"
)

// QuotationDeadlineSweepPayload carries scheduling metadata.
type QuotationDeadlineSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewQuotationDeadlineSweepTask constructs the sweep task, typically
// registered on a cron spec.
func NewQuotationDeadlineSweepTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(QuotationDeadlineSweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeQuotationDeadlineSweep, body, asynq.Queue(QueueDefault)), nil
}

// NewQuotationDeadlineSweepHandler returns the handler bound to the
// database pool. Expired open quotations are surfaced to the buyers via
// log so the morning triage can close or extend them; the workflow
// itself never auto-closes.
func NewQuotationDeadlineSweepHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track("quotation_deadline_sweep")
		var payload QuotationDeadlineSweepPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		rows, err := pool.Query(ctx, `
			SELECT number, deadline FROM quotations
			WHERE status = 'ABERTA' AND deadline < NOW()`)
		if err != nil {
			return tracker.End(err)
		}
		defer rows.Close()
		expired := 0
		for rows.Next() {
			var number string
			var deadline time.Time
			if err := rows.Scan(&number, &deadline); err != nil {
				return tracker.End(err)
			}
			logger.Warn("quotation past deadline",
				slog.String("number", number),
				slog.Time("deadline", deadline))
			expired++
		}
		if err := rows.Err(); err != nil {
			return tracker.End(err)
		}
		metrics.AddOverdueQuotations(expired)
		logger.Info("quotation deadline sweep done", slog.Int("expired", expired))
		return tracker.End(nil)
	}
}
