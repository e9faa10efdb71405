package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/money"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

const idempotencyModule = "inventory"

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	// AllowNegativeDefault accepts zero-cost shortfalls for every item.
	AllowNegativeDefault bool
}

// Service coordinates inventory operations.
type Service struct {
	repo      RepositoryPort
	items     ItemReader
	locker    Locker
	poster    Poster
	audit     AuditPort
	publisher Publisher
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
	cards     singleflight.Group
	cardCache CardCache
	allowNeg  bool
}

// NewService builds Service. A nil locker falls back to an in-process
// keyed mutex; a nil poster records moves without journals.
func NewService(repo RepositoryPort, itemReader ItemReader, locker Locker, poster Poster, cfg ServiceConfig) *Service {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Service{
		repo:     repo,
		items:    itemReader,
		locker:   locker,
		poster:   poster,
		metrics:  noopMetrics{},
		logger:   slog.Default(),
		now:      time.Now,
		allowNeg: cfg.AllowNegativeDefault,
	}
}

func (s *Service) WithAudit(audit AuditPort) *Service {
	s.audit = audit
	return s
}

func (s *Service) WithPublisher(publisher Publisher) *Service {
	s.publisher = publisher
	return s
}

func (s *Service) WithCardCache(cache CardCache) *Service {
	s.cardCache = cache
	return s
}

func (s *Service) WithMetrics(metrics Metrics) *Service {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

func (s *Service) WithLogger(logger *slog.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// write locks keys, opens a transaction and claims the idempotency key in it
// before running fn. fn may run more than once when the store retries.
func (s *Service) write(ctx context.Context, keys []StockKey, idempotencyKey string, fn func(context.Context, TxRepository) error) error {
	lockKeys := make([]string, 0, len(keys))
	for _, key := range keys {
		lockKeys = append(lockKeys, key.LockKey())
	}
	unlock, err := s.locker.Lock(ctx, shared.SortLockKeys(lockKeys...)...)
	if err != nil {
		return fmt.Errorf("inventory: acquire stock lock: %w", err)
	}
	defer unlock()

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if idempotencyKey != "" {
			if err := tx.ClaimIdempotencyKey(ctx, idempotencyKey, idempotencyModule); err != nil {
				return err
			}
		}
		return fn(ctx, tx)
	})
}

func (s *Service) item(ctx context.Context, id int64) (items.Item, error) {
	if id <= 0 {
		return items.Item{}, fmt.Errorf("%w: item id required", shared.ErrInvalidArgument)
	}
	return s.items.GetItem(ctx, id)
}

func (s *Service) allowNegative(item items.Item, override *bool) bool {
	if override != nil {
		return *override
	}
	return item.AllowNegative || s.allowNeg
}

func (s *Service) newMove(itemID, warehouseID int64, moveType MoveType, date time.Time, actorID int64) StockMove {
	now := s.now().UTC()
	if date.IsZero() {
		date = now
	}
	return StockMove{
		ID:          uuid.New(),
		ItemID:      itemID,
		WarehouseID: warehouseID,
		Type:        moveType,
		Qty:         decimal.Zero,
		UnitCost:    decimal.Zero,
		InputQty:    decimal.Zero,
		Shortfall:   decimal.Zero,
		Status:      MoveStatusPosted,
		CreatedBy:   actorID,
		MoveDate:    date,
		CreatedAt:   now,
		PostedAt:    &now,
	}
}

// toBase converts a caller quantity into the item base unit. The unit
// defaults to the item display unit.
func toBase(item items.Item, qty decimal.Decimal, unit units.Unit) (decimal.Decimal, units.Unit, error) {
	if unit == "" {
		unit = item.DisplayUnit
	}
	if unit == "" {
		unit = item.BaseUnit
	}
	if !qty.IsPositive() {
		return decimal.Zero, unit, ErrInvalidQuantity
	}
	base, err := units.Convert(qty, unit, item.BaseUnit)
	if err != nil {
		return decimal.Zero, unit, err
	}
	base = money.RoundQty(base)
	if !base.IsPositive() {
		return decimal.Zero, unit, fmt.Errorf("%w: %s %s rounds to zero %s", ErrInvalidQuantity, qty, unit, item.BaseUnit)
	}
	return base, unit, nil
}

// costToBase re-prices a cost per unit as a cost per base unit.
func costToBase(item items.Item, cost decimal.Decimal, unit units.Unit) (decimal.Decimal, error) {
	if cost.IsNegative() {
		return decimal.Zero, ErrInvalidUnitCost
	}
	perBase, err := units.ConvertUnitCost(cost, unit, item.BaseUnit)
	if err != nil {
		return decimal.Zero, err
	}
	return money.RoundCost(perBase), nil
}

// receive persists an inbound move and its layer.
func (s *Service) receive(ctx context.Context, tx TxRepository, move StockMove, lotCode string, expiresAt *time.Time) (MoveResult, error) {
	if err := tx.InsertMove(ctx, move); err != nil {
		return MoveResult{}, err
	}
	layer := NewLayer(move, lotCode, expiresAt, move.CreatedAt)
	if err := tx.InsertLayer(ctx, layer); err != nil {
		return MoveResult{}, err
	}
	return MoveResult{Move: move, Layers: []StockLayer{layer}}, nil
}

type issued struct {
	result MoveResult
	alloc  Allocation
	layers map[uuid.UUID]StockLayer
}

// issue allocates requested base units for move, then persists the move
// (insert or update), the layer decrements and the consumptions.
func (s *Service) issue(ctx context.Context, tx TxRepository, move StockMove, requested decimal.Decimal, allowNegative, insert bool) (issued, error) {
	key := move.Key()
	snapshot, err := tx.ListAvailableLayersForUpdate(ctx, key)
	if err != nil {
		return issued{}, err
	}
	alloc, err := Allocate(snapshot, requested, allowNegative)
	if err != nil {
		var insufficient *InsufficientStockError
		if errors.As(err, &insufficient) {
			insufficient.ItemID = key.ItemID
			insufficient.WarehouseID = key.WarehouseID
			s.metrics.InsufficientStock(string(move.Type))
		}
		return issued{}, err
	}

	move.Qty = alloc.ConsumedQty.Neg()
	move.UnitCost = alloc.AvgUnitCost
	move.Shortfall = alloc.Shortfall
	if insert {
		err = tx.InsertMove(ctx, move)
	} else {
		err = tx.UpdateMove(ctx, move)
	}
	if err != nil {
		return issued{}, err
	}

	layers := make(map[uuid.UUID]StockLayer, len(snapshot))
	for _, layer := range snapshot {
		layers[layer.ID] = layer
	}
	consumptions := make([]StockConsumption, 0, len(alloc.Parts))
	for _, part := range alloc.Parts {
		if part.LayerID != uuid.Nil {
			layer := layers[part.LayerID]
			if err := layer.Decrement(part.Qty); err != nil {
				return issued{}, err
			}
			if err := tx.DecrementLayer(ctx, layer.ID, part.Qty); err != nil {
				return issued{}, err
			}
			layers[layer.ID] = layer
		}
		consumptions = append(consumptions, StockConsumption{
			ID:        uuid.New(),
			MoveID:    move.ID,
			LayerID:   part.LayerID,
			Qty:       part.Qty,
			UnitCost:  part.UnitCost,
			CreatedAt: move.CreatedAt,
		})
	}
	if err := tx.InsertConsumptions(ctx, consumptions); err != nil {
		return issued{}, err
	}
	return issued{result: MoveResult{Move: move, Consumptions: consumptions}, alloc: alloc, layers: layers}, nil
}

func (s *Service) postMove(ctx context.Context, tx TxRepository, opts PostingOptions, move StockMove, item items.Item) (*accounting.JournalEntry, error) {
	if opts.Skip || s.poster == nil {
		return nil, nil
	}
	return s.poster.HandleMovePosted(ctx, tx.Ledger(), MovePostedEvent{Move: move, Item: item, Accounts: opts.Accounts})
}

// committed runs the post-commit side effects. Failures are logged only.
func (s *Service) committed(ctx context.Context, action string, moves ...StockMove) {
	for _, move := range moves {
		if s.cardCache != nil {
			if err := s.cardCache.Bump(ctx, cardScope(move.Key())); err != nil {
				s.logger.Warn("stock card cache bump failed", slog.String("move_id", move.ID.String()), slog.Any("error", err))
			}
		}
		if move.Status != MoveStatusDraft {
			s.metrics.MovePosted(string(move.Type), move.Inbound())
		}
		if move.Shortfall.IsPositive() {
			s.metrics.ShortfallAccepted(money.Float(move.Shortfall))
			s.logger.Warn("inventory shortfall accepted at zero cost",
				slog.String("move_id", move.ID.String()),
				slog.Int64("item_id", move.ItemID),
				slog.Int64("warehouse_id", move.WarehouseID),
				slog.String("shortfall", move.Shortfall.String()))
		}
		if s.audit != nil {
			err := s.audit.Record(ctx, shared.AuditLog{
				ActorID:  move.CreatedBy,
				Action:   action,
				Entity:   "stock_move",
				EntityID: move.ID.String(),
				Meta: map[string]any{
					"item_id":      move.ItemID,
					"warehouse_id": move.WarehouseID,
					"type":         move.Type,
					"status":       move.Status,
					"qty":          move.Qty.String(),
					"unit_cost":    move.UnitCost.String(),
				},
			})
			if err != nil {
				s.logger.Warn("inventory audit failed", slog.String("move_id", move.ID.String()), slog.Any("error", err))
			}
		}
		if s.publisher != nil && move.Status != MoveStatusDraft {
			err := s.publisher.StockChanged(ctx, StockChangedEvent{Key: move.Key(), MoveID: move.ID.String(), Type: move.Type})
			if err != nil {
				s.logger.Warn("inventory publish failed", slog.String("move_id", move.ID.String()), slog.Any("error", err))
			}
		}
	}
}

func moveAction(moveType MoveType) string {
	return "inventory.move." + strings.ToLower(string(moveType))
}

func actor(ctx context.Context, actorID int64) int64 {
	if actorID != 0 {
		return actorID
	}
	return shared.ActorFromContext(ctx)
}

// averageCost is the value-weighted cost of what is on hand.
func averageCost(layers []StockLayer) (decimal.Decimal, bool) {
	qty, value := decimal.Zero, decimal.Zero
	for _, layer := range layers {
		qty = qty.Add(layer.RemainingQty)
		value = value.Add(layer.RemainingQty.Mul(layer.UnitCost))
	}
	if !qty.IsPositive() {
		return decimal.Zero, false
	}
	return money.RoundCost(value.Div(qty)), true
}
