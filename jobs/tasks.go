package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueMaintenance carries housekeeping work.
	QueueMaintenance = "maintenance"

	// TaskInventoryReconcile checks layer conservation for one aggregate or
	// for every aggregate when the payload key is empty.
	TaskInventoryReconcile = "inventory:reconcile"
	// TaskLedgerIntegrity re-validates journal balances.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyPurge drops expired idempotency keys.
	TaskIdempotencyPurge = "idempotency:purge"
)

// ReconcilePayload scopes a reconcile run. Zero ids mean every aggregate.
type ReconcilePayload struct {
	ItemID      int64 `json:"item_id,omitempty"`
	WarehouseID int64 `json:"warehouse_id,omitempty"`
}

// All reports whether the payload targets every aggregate.
func (p ReconcilePayload) All() bool {
	return p.ItemID == 0 && p.WarehouseID == 0
}

// NewInventoryReconcileTask builds a reconcile task. Single-aggregate tasks
// are deduplicated for a minute so bursts of moves collapse into one check.
func NewInventoryReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(3)}
	if !payload.All() {
		opts = append(opts, asynq.Unique(time.Minute))
	}
	return asynq.NewTask(TaskInventoryReconcile, body, opts...), nil
}

// LedgerIntegrityPayload bounds the journal window checked. Nil bounds are open.
type LedgerIntegrityPayload struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// NewLedgerIntegrityTask builds a ledger integrity task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// IdempotencyPurgePayload sets the retention window.
type IdempotencyPurgePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyPurgeTask builds a purge task.
func NewIdempotencyPurgeTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyPurgePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyPurge, body, asynq.Queue(QueueMaintenance), asynq.MaxRetry(1)), nil
}
