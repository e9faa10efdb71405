package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/db"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool   *pgxpool.Pool
	policy db.RetryPolicy
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, policy db.RetryPolicy) *Repository {
	return &Repository{pool: pool, policy: policy}
}

// WithTx executes the callback inside a serializable transaction, retrying
// serialization failures.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithSerializableTx(ctx, r.pool, r.policy, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const moveColumns = `id, item_id, warehouse_id, move_type, qty, unit_cost, input_qty, input_unit, shortfall,
ref_type, ref_id, note, status, reversal_of, created_by, move_date, created_at, posted_at`

const layerColumns = `id, item_id, warehouse_id, original_qty, remaining_qty, unit_cost, lot_code, expires_at, source_move_id, created_at`

const consumptionColumns = `id, move_id, layer_id, qty, unit_cost, created_at`

func scanMove(row pgx.Row) (StockMove, error) {
	var m StockMove
	err := row.Scan(&m.ID, &m.ItemID, &m.WarehouseID, &m.Type, &m.Qty, &m.UnitCost, &m.InputQty, &m.InputUnit, &m.Shortfall,
		&m.RefType, &m.RefID, &m.Note, &m.Status, &m.ReversalOf, &m.CreatedBy, &m.MoveDate, &m.CreatedAt, &m.PostedAt)
	return m, err
}

func scanLayer(row pgx.Row) (StockLayer, error) {
	var l StockLayer
	err := row.Scan(&l.ID, &l.ItemID, &l.WarehouseID, &l.OriginalQty, &l.RemainingQty, &l.UnitCost, &l.LotCode, &l.ExpiresAt, &l.SourceMoveID, &l.CreatedAt)
	return l, err
}

func scanConsumption(row pgx.Row) (StockConsumption, error) {
	var (
		c       StockConsumption
		layerID *uuid.UUID
	)
	if err := row.Scan(&c.ID, &c.MoveID, &layerID, &c.Qty, &c.UnitCost, &c.CreatedAt); err != nil {
		return StockConsumption{}, err
	}
	if layerID != nil {
		c.LayerID = *layerID
	}
	return c, nil
}

func collectLayers(rows pgx.Rows, err error) ([]StockLayer, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockLayer, error) {
		return scanLayer(row)
	})
}

func collectConsumptions(rows pgx.Rows, err error) ([]StockConsumption, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockConsumption, error) {
		return scanConsumption(row)
	})
}

func (r *Repository) ListLayers(ctx context.Context, key StockKey, includeDepleted bool) ([]StockLayer, error) {
	query := `SELECT ` + layerColumns + ` FROM stock_layers WHERE item_id = $1 AND warehouse_id = $2`
	if !includeDepleted {
		query += ` AND remaining_qty > 0`
	}
	query += ` ORDER BY expires_at NULLS LAST, created_at, id`
	return collectLayers(r.pool.Query(ctx, query, key.ItemID, key.WarehouseID))
}

func (r *Repository) LayersBySourceMove(ctx context.Context, moveID uuid.UUID) ([]StockLayer, error) {
	return collectLayers(r.pool.Query(ctx, `SELECT `+layerColumns+` FROM stock_layers WHERE source_move_id = $1 ORDER BY created_at, id`, moveID))
}

func (r *Repository) ListMoves(ctx context.Context, filter MoveFilter) ([]StockMove, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.ItemID != 0 {
		add("item_id = $%d", filter.ItemID)
	}
	if filter.WarehouseID != 0 {
		add("warehouse_id = $%d", filter.WarehouseID)
	}
	if filter.From != nil {
		add("move_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("move_date <= $%d", *filter.To)
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		add("move_type = ANY($%d)", types)
	}
	query := `SELECT ` + moveColumns + ` FROM stock_moves`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY move_date, created_at"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockMove, error) {
		return scanMove(row)
	})
}

func (r *Repository) GetMove(ctx context.Context, id uuid.UUID) (StockMove, error) {
	m, err := scanMove(r.pool.QueryRow(ctx, `SELECT `+moveColumns+` FROM stock_moves WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return StockMove{}, ErrMoveNotFound
	}
	return m, err
}

func (r *Repository) ListConsumptions(ctx context.Context, moveID uuid.UUID) ([]StockConsumption, error) {
	return collectConsumptions(r.pool.Query(ctx, `SELECT `+consumptionColumns+` FROM stock_consumptions WHERE move_id = $1 ORDER BY created_at, id`, moveID))
}

// StockTotals sums layers, consumptions and non-draft moves of one aggregate.
func (r *Repository) StockTotals(ctx context.Context, key StockKey) (StockTotals, error) {
	var t StockTotals
	err := r.pool.QueryRow(ctx, `SELECT
  (SELECT COALESCE(SUM(original_qty), 0) FROM stock_layers WHERE item_id = $1 AND warehouse_id = $2),
  (SELECT COALESCE(SUM(remaining_qty), 0) FROM stock_layers WHERE item_id = $1 AND warehouse_id = $2),
  (SELECT COALESCE(SUM(c.qty), 0) FROM stock_consumptions c JOIN stock_layers l ON l.id = c.layer_id
     WHERE l.item_id = $1 AND l.warehouse_id = $2),
  (SELECT COALESCE(SUM(qty), 0) FROM stock_moves WHERE item_id = $1 AND warehouse_id = $2 AND status <> 'DRAFT' AND qty > 0),
  (SELECT COALESCE(SUM(-qty), 0) FROM stock_moves WHERE item_id = $1 AND warehouse_id = $2 AND status <> 'DRAFT' AND qty < 0),
  (SELECT COALESCE(SUM(shortfall), 0) FROM stock_moves WHERE item_id = $1 AND warehouse_id = $2 AND status <> 'DRAFT' AND qty < 0)`,
		key.ItemID, key.WarehouseID).
		Scan(&t.LayerOriginal, &t.LayerRemaining, &t.LayerConsumed, &t.MoveInbound, &t.MoveOutbound, &t.Shortfall)
	return t, err
}

func (r *Repository) ListStockKeys(ctx context.Context) ([]StockKey, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT item_id, warehouse_id FROM stock_moves ORDER BY item_id, warehouse_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StockKey, error) {
		var k StockKey
		err := row.Scan(&k.ItemID, &k.WarehouseID)
		return k, err
	})
}

// PurgeIdempotencyKeys drops keys older than olderThan.
func (r *Repository) PurgeIdempotencyKeys(ctx context.Context, olderThan time.Duration) (int64, error) {
	return shared.PurgeIdempotencyKeys(ctx, r.pool, olderThan)
}

type txRepo struct {
	tx pgx.Tx
}

func (r *txRepo) InsertMove(ctx context.Context, m StockMove) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_moves (`+moveColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		m.ID, m.ItemID, m.WarehouseID, m.Type, m.Qty, m.UnitCost, m.InputQty, m.InputUnit, m.Shortfall,
		m.RefType, m.RefID, m.Note, m.Status, m.ReversalOf, m.CreatedBy, m.MoveDate, m.CreatedAt, m.PostedAt)
	return err
}

func (r *txRepo) UpdateMove(ctx context.Context, m StockMove) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_moves SET qty = $2, unit_cost = $3, shortfall = $4, status = $5, note = $6, posted_at = $7
WHERE id = $1`, m.ID, m.Qty, m.UnitCost, m.Shortfall, m.Status, m.Note, m.PostedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMoveNotFound
	}
	return nil
}

func (r *txRepo) GetMoveForUpdate(ctx context.Context, id uuid.UUID) (StockMove, error) {
	m, err := scanMove(r.tx.QueryRow(ctx, `SELECT `+moveColumns+` FROM stock_moves WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return StockMove{}, ErrMoveNotFound
	}
	return m, err
}

func (r *txRepo) InsertLayer(ctx context.Context, l StockLayer) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_layers (`+layerColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		l.ID, l.ItemID, l.WarehouseID, l.OriginalQty, l.RemainingQty, l.UnitCost, l.LotCode, l.ExpiresAt, l.SourceMoveID, l.CreatedAt)
	return err
}

// ListAvailableLayersForUpdate locks the open layers of key in FEFO order.
func (r *txRepo) ListAvailableLayersForUpdate(ctx context.Context, key StockKey) ([]StockLayer, error) {
	return collectLayers(r.tx.Query(ctx, `SELECT `+layerColumns+` FROM stock_layers
WHERE item_id = $1 AND warehouse_id = $2 AND remaining_qty > 0
ORDER BY expires_at NULLS LAST, created_at, id FOR UPDATE`, key.ItemID, key.WarehouseID))
}

func (r *txRepo) GetLayerForUpdate(ctx context.Context, id uuid.UUID) (StockLayer, error) {
	l, err := scanLayer(r.tx.QueryRow(ctx, `SELECT `+layerColumns+` FROM stock_layers WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return StockLayer{}, ErrLayerNotFound
	}
	return l, err
}

// DecrementLayer refuses to take more than the layer holds.
func (r *txRepo) DecrementLayer(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_layers SET remaining_qty = remaining_qty - $2 WHERE id = $1 AND remaining_qty >= $2`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var remaining decimal.Decimal
	if err := r.tx.QueryRow(ctx, `SELECT remaining_qty FROM stock_layers WHERE id = $1`, id).Scan(&remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLayerNotFound
		}
		return err
	}
	return &OverConsumptionError{LayerID: id, Requested: qty, Remaining: remaining}
}

func (r *txRepo) LayersBySourceMove(ctx context.Context, moveID uuid.UUID) ([]StockLayer, error) {
	return collectLayers(r.tx.Query(ctx, `SELECT `+layerColumns+` FROM stock_layers WHERE source_move_id = $1 ORDER BY created_at, id FOR UPDATE`, moveID))
}

func (r *txRepo) InsertConsumptions(ctx context.Context, consumptions []StockConsumption) error {
	if len(consumptions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, c := range consumptions {
		var layerID *uuid.UUID
		if !c.Shortfall() {
			id := c.LayerID
			layerID = &id
		}
		batch.Queue(`INSERT INTO stock_consumptions (`+consumptionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.MoveID, layerID, c.Qty, c.UnitCost, c.CreatedAt)
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepo) ListConsumptions(ctx context.Context, moveID uuid.UUID) ([]StockConsumption, error) {
	return collectConsumptions(r.tx.Query(ctx, `SELECT `+consumptionColumns+` FROM stock_consumptions WHERE move_id = $1 ORDER BY created_at, id`, moveID))
}

func (r *txRepo) ClaimIdempotencyKey(ctx context.Context, key, module string) error {
	return shared.ClaimIdempotencyKey(ctx, r.tx, key, module)
}

// Ledger shares the transaction with the journal writer.
func (r *txRepo) Ledger() accounting.TxRepository {
	return accounting.NewTxRepository(r.tx)
}
