package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListLayers(ctx context.Context, key StockKey, includeDepleted bool) ([]StockLayer, error)
	LayersBySourceMove(ctx context.Context, moveID uuid.UUID) ([]StockLayer, error)
	ListMoves(ctx context.Context, filter MoveFilter) ([]StockMove, error)
	GetMove(ctx context.Context, id uuid.UUID) (StockMove, error)
	ListConsumptions(ctx context.Context, moveID uuid.UUID) ([]StockConsumption, error)
	StockTotals(ctx context.Context, key StockKey) (StockTotals, error)
	ListStockKeys(ctx context.Context) ([]StockKey, error)
}

// TxRepository exposes inventory persistence inside one transaction. Ledger
// returns the journal repository bound to the same transaction.
type TxRepository interface {
	InsertMove(ctx context.Context, move StockMove) error
	UpdateMove(ctx context.Context, move StockMove) error
	GetMoveForUpdate(ctx context.Context, id uuid.UUID) (StockMove, error)
	InsertLayer(ctx context.Context, layer StockLayer) error
	ListAvailableLayersForUpdate(ctx context.Context, key StockKey) ([]StockLayer, error)
	GetLayerForUpdate(ctx context.Context, id uuid.UUID) (StockLayer, error)
	DecrementLayer(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error
	LayersBySourceMove(ctx context.Context, moveID uuid.UUID) ([]StockLayer, error)
	InsertConsumptions(ctx context.Context, consumptions []StockConsumption) error
	ListConsumptions(ctx context.Context, moveID uuid.UUID) ([]StockConsumption, error)
	ClaimIdempotencyKey(ctx context.Context, key, module string) error
	Ledger() accounting.TxRepository
}

// ItemReader loads item master data.
type ItemReader interface {
	GetItem(ctx context.Context, id int64) (items.Item, error)
}

// Locker serialises writers of the same aggregates across goroutines or
// processes. The returned func releases every key.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (func(), error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CardCache keeps rendered stock cards between commits. Bump invalidates a
// scope.
type CardCache interface {
	FetchJSON(ctx context.Context, scope, key string, dest any, loader func(context.Context) (any, error)) error
	Bump(ctx context.Context, scope string) error
}

// Metrics receives costing counters.
type Metrics interface {
	MovePosted(moveType string, inbound bool)
	InsufficientStock(moveType string)
	ShortfallAccepted(qty float64)
	LayersConsumed(n int)
}

type noopMetrics struct{}

func (noopMetrics) MovePosted(string, bool)   {}
func (noopMetrics) InsufficientStock(string)  {}
func (noopMetrics) ShortfallAccepted(float64) {}
func (noopMetrics) LayersConsumed(int)        {}
