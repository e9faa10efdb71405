package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReconcilePublisher schedules a reconcile of every aggregate a committed
// move touched. It implements inventory.Publisher.
type ReconcilePublisher struct {
	client Enqueuer
}

var _ inventory.Publisher = (*ReconcilePublisher)(nil)

// NewReconcilePublisher wraps an asynq client.
func NewReconcilePublisher(client Enqueuer) *ReconcilePublisher {
	return &ReconcilePublisher{client: client}
}

// StockChanged enqueues a deduplicated reconcile task for the event's key.
func (p *ReconcilePublisher) StockChanged(ctx context.Context, evt inventory.StockChangedEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	task, err := NewInventoryReconcileTask(ReconcilePayload{ItemID: evt.Key.ItemID, WarehouseID: evt.Key.WarehouseID})
	if err != nil {
		return err
	}
	_, err = p.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}
