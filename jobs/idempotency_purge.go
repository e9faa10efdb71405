package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-costing/internal/jobs"
)

// DefaultIdempotencyRetention keeps keys long enough to absorb client retries.
const DefaultIdempotencyRetention = 72 * time.Hour

// Purger deletes idempotency keys older than a retention window.
type Purger interface {
	PurgeIdempotencyKeys(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyPurgeJob drops expired idempotency keys.
type IdempotencyPurgeJob struct {
	Store   Purger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewIdempotencyPurgeJob initialises the purge handler.
func NewIdempotencyPurgeJob(store Purger, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyPurgeJob {
	return &IdempotencyPurgeJob{Store: store, Logger: logger, Metrics: metrics}
}

// Handle executes the task.
func (j *IdempotencyPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency purge: handler not configured")
	}
	var payload IdempotencyPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskIdempotencyPurge)
	_, err := j.Run(ctx, payload.Retention)
	return tracker.End(err)
}

// Run purges and returns the number of keys removed.
func (j *IdempotencyPurgeJob) Run(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	removed, err := j.Store.PurgeIdempotencyKeys(ctx, retention)
	if err != nil {
		logger.Error("idempotency purge failed", slog.String("job", TaskIdempotencyPurge), slog.Any("error", err))
		return 0, err
	}
	logger.Info("idempotency keys purged",
		slog.String("job", TaskIdempotencyPurge),
		slog.Int64("removed", removed),
		slog.Duration("retention", retention),
	)
	return removed, nil
}
