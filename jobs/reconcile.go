package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-costing/internal/jobs"
)

// ErrReconcileDrift reports at least one aggregate out of balance.
var ErrReconcileDrift = errors.New("inventory reconcile: drift detected")

// Reconciler is the inventory surface the reconcile job needs.
type Reconciler interface {
	Reconcile(ctx context.Context, key inventory.StockKey) (inventory.ReconcileReport, error)
	ListStockKeys(ctx context.Context) ([]inventory.StockKey, error)
}

// ReconcileSummary is the outcome of one run.
type ReconcileSummary struct {
	Checked    int
	Unbalanced []inventory.ReconcileReport
}

// ReconcileJob checks layer conservation across aggregates.
type ReconcileJob struct {
	Inventory   Reconciler
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
}

// NewReconcileJob initialises the reconcile handler.
func NewReconcileJob(inv Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Inventory: inv, Logger: logger, Metrics: metrics, Concurrency: 4}
}

// Handle executes the task. Drift fails the run without retrying since a
// retry would find the same drift.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("inventory reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskInventoryReconcile)
	summary, err := j.Run(ctx, payload)
	if err != nil {
		return tracker.End(err)
	}
	if len(summary.Unbalanced) > 0 {
		return tracker.End(fmt.Errorf("%w: %d aggregates: %w", ErrReconcileDrift, len(summary.Unbalanced), asynq.SkipRetry))
	}
	return tracker.End(nil)
}

// Run reconciles the aggregates the payload names.
func (j *ReconcileJob) Run(ctx context.Context, payload ReconcilePayload) (ReconcileSummary, error) {
	start := time.Now()
	logger := j.logger().With(slog.String("job", TaskInventoryReconcile))

	keys := []inventory.StockKey{{ItemID: payload.ItemID, WarehouseID: payload.WarehouseID}}
	if payload.All() {
		var err error
		keys, err = j.Inventory.ListStockKeys(ctx)
		if err != nil {
			logger.Error("list stock keys", slog.Any("error", err))
			return ReconcileSummary{}, err
		}
	}

	var (
		mu      sync.Mutex
		summary = ReconcileSummary{Checked: len(keys)}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency())
	for _, key := range keys {
		g.Go(func() error {
			report, err := j.Inventory.Reconcile(gctx, key)
			if err != nil {
				return fmt.Errorf("reconcile item %d warehouse %d: %w", key.ItemID, key.WarehouseID, err)
			}
			if report.Balanced {
				return nil
			}
			mu.Lock()
			summary.Unbalanced = append(summary.Unbalanced, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("reconcile failed", slog.Any("error", err))
		return ReconcileSummary{}, err
	}

	sort.Slice(summary.Unbalanced, func(a, b int) bool {
		ka, kb := summary.Unbalanced[a].Key, summary.Unbalanced[b].Key
		if ka.ItemID != kb.ItemID {
			return ka.ItemID < kb.ItemID
		}
		return ka.WarehouseID < kb.WarehouseID
	})
	for _, report := range summary.Unbalanced {
		logger.Warn("stock aggregate out of balance",
			slog.Int64("item_id", report.Key.ItemID),
			slog.Int64("warehouse_id", report.Key.WarehouseID),
			slog.String("drift", report.Drift.String()),
			slog.String("move_inbound", report.Totals.MoveInbound.String()),
			slog.String("layer_original", report.Totals.LayerOriginal.String()),
		)
	}
	j.Metrics.AddFindings(TaskInventoryReconcile, "unbalanced_aggregate", len(summary.Unbalanced))
	logger.Info("completed reconcile",
		slog.Int("checked", summary.Checked),
		slog.Int("unbalanced", len(summary.Unbalanced)),
		slog.Duration("duration", time.Since(start)),
	)
	return summary, nil
}

func (j *ReconcileJob) concurrency() int {
	if j.Concurrency <= 0 {
		return 1
	}
	return j.Concurrency
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
