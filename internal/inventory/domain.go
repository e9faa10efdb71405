package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

// MoveType enumerates the business events that move stock.
type MoveType string

const (
	MoveTypePurchase   MoveType = "PURCHASE"
	MoveTypeSale       MoveType = "SALE"
	MoveTypeAdjustment MoveType = "ADJUSTMENT"
	MoveTypeProduction MoveType = "PRODUCTION"
	MoveTypeTransfer   MoveType = "TRANSFER"
)

// Valid reports whether t is a known move type.
func (t MoveType) Valid() bool {
	switch t {
	case MoveTypePurchase, MoveTypeSale, MoveTypeAdjustment, MoveTypeProduction, MoveTypeTransfer:
		return true
	}
	return false
}

// MoveStatus enumerates the move lifecycle.
type MoveStatus string

const (
	MoveStatusDraft    MoveStatus = "DRAFT"
	MoveStatusPosted   MoveStatus = "POSTED"
	MoveStatusReversed MoveStatus = "REVERSED"
)

// StockKey identifies one (item, warehouse) aggregate.
type StockKey struct {
	ItemID      int64 `json:"item_id"`
	WarehouseID int64 `json:"warehouse_id"`
}

// LockKey is the key serialising writes to the aggregate.
func (k StockKey) LockKey() string {
	return shared.StockLockKey(k.ItemID, k.WarehouseID)
}

// StockLayer is one inbound batch. Quantities are in the item base unit and
// UnitCost is per base unit.
type StockLayer struct {
	ID           uuid.UUID       `json:"id"`
	ItemID       int64           `json:"item_id"`
	WarehouseID  int64           `json:"warehouse_id"`
	OriginalQty  decimal.Decimal `json:"original_qty"`
	RemainingQty decimal.Decimal `json:"remaining_qty"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	LotCode      string          `json:"lot_code,omitempty"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	SourceMoveID uuid.UUID       `json:"source_move_id"`
	CreatedAt    time.Time       `json:"created_at"`
}

// StockMove is one posted (or draft) movement in base units. Qty is signed:
// positive for inbound, negative for outbound.
type StockMove struct {
	ID          uuid.UUID       `json:"id"`
	ItemID      int64           `json:"item_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Type        MoveType        `json:"type"`
	Qty         decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	InputQty    decimal.Decimal `json:"input_qty"`
	InputUnit   units.Unit      `json:"input_unit"`
	Shortfall   decimal.Decimal `json:"shortfall"`
	RefType     string          `json:"ref_type,omitempty"`
	RefID       string          `json:"ref_id,omitempty"`
	Note        string          `json:"note,omitempty"`
	Status      MoveStatus      `json:"status"`
	ReversalOf  *uuid.UUID      `json:"reversal_of,omitempty"`
	CreatedBy   int64           `json:"created_by,omitempty"`
	MoveDate    time.Time       `json:"move_date"`
	CreatedAt   time.Time       `json:"created_at"`
	PostedAt    *time.Time      `json:"posted_at,omitempty"`
}

// Inbound reports whether the move adds stock.
func (m StockMove) Inbound() bool {
	return m.Qty.IsPositive()
}

// Key returns the aggregate the move belongs to.
func (m StockMove) Key() StockKey {
	return StockKey{ItemID: m.ItemID, WarehouseID: m.WarehouseID}
}

// StockConsumption records what an outbound move took from one layer. A
// zero-cost shortfall accepted under allowNegative has a nil LayerID.
type StockConsumption struct {
	ID        uuid.UUID       `json:"id"`
	MoveID    uuid.UUID       `json:"move_id"`
	LayerID   uuid.UUID       `json:"layer_id"`
	Qty       decimal.Decimal `json:"qty"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	CreatedAt time.Time       `json:"created_at"`
}

// Shortfall reports a consumption not backed by a layer.
func (c StockConsumption) Shortfall() bool {
	return c.LayerID == uuid.Nil
}

// PostingOptions controls the journal written with a move. Accounts, when
// set, replaces the resolved account map.
type PostingOptions struct {
	Skip     bool
	Accounts *accounting.AccountMap
}

// InboundInput receives stock. Qty and UnitCost are expressed in Unit, which
// defaults to the item display unit.
type InboundInput struct {
	ItemID         int64
	WarehouseID    int64
	Type           MoveType
	Qty            decimal.Decimal
	Unit           units.Unit
	UnitCost       decimal.Decimal
	LotCode        string
	ExpiresAt      *time.Time
	MoveDate       time.Time
	RefType        string
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
	Posting        PostingOptions
}

// OutboundInput issues stock. AllowNegative overrides the item default.
type OutboundInput struct {
	ItemID         int64
	WarehouseID    int64
	Type           MoveType
	Qty            decimal.Decimal
	Unit           units.Unit
	AllowNegative  *bool
	MoveDate       time.Time
	RefType        string
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
	Posting        PostingOptions
}

// AdjustmentInput corrects stock by a signed delta. UnitCost applies to a
// positive delta; when nil the current average cost is used.
type AdjustmentInput struct {
	ItemID         int64
	WarehouseID    int64
	Qty            decimal.Decimal
	Unit           units.Unit
	UnitCost       *decimal.Decimal
	AllowNegative  *bool
	Draft          bool
	MoveDate       time.Time
	RefType        string
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
	Posting        PostingOptions
}

// PostDraftInput posts a DRAFT adjustment.
type PostDraftInput struct {
	AllowNegative  *bool
	ActorID        int64
	IdempotencyKey string
	Posting        PostingOptions
}

// TransferInput moves stock between two warehouses of the same item.
// Posting.Accounts, when set, takes Inventory as the destination account and
// Offset as the source account.
type TransferInput struct {
	ItemID          int64
	FromWarehouseID int64
	ToWarehouseID   int64
	Qty             decimal.Decimal
	Unit            units.Unit
	MoveDate        time.Time
	RefID           string
	Note            string
	ActorID         int64
	IdempotencyKey  string
	Posting         PostingOptions
}

// ComponentInput is one material consumed by a production run.
type ComponentInput struct {
	ItemID int64
	Qty    decimal.Decimal
	Unit   units.Unit
}

// ProductionInput consumes components and receives the output item into the
// same warehouse at the summed component cost.
type ProductionInput struct {
	OutputItemID   int64
	WarehouseID    int64
	OutputQty      decimal.Decimal
	OutputUnit     units.Unit
	Components     []ComponentInput
	LotCode        string
	ExpiresAt      *time.Time
	MoveDate       time.Time
	RefID          string
	Note           string
	ActorID        int64
	IdempotencyKey string
	Posting        PostingOptions
}

// ReverseInput posts the offsetting move for a POSTED move.
type ReverseInput struct {
	MoveDate       time.Time
	Note           string
	ActorID        int64
	IdempotencyKey string
	Posting        PostingOptions
}

// MoveResult is the outcome of one recorded move.
type MoveResult struct {
	Move         StockMove                `json:"move"`
	Layers       []StockLayer             `json:"layers,omitempty"`
	Consumptions []StockConsumption       `json:"consumptions,omitempty"`
	Journal      *accounting.JournalEntry `json:"journal,omitempty"`
}

// TransferResult pairs both legs of a transfer.
type TransferResult struct {
	Out     MoveResult               `json:"out"`
	In      MoveResult               `json:"in"`
	Journal *accounting.JournalEntry `json:"journal,omitempty"`
}

// ProductionResult holds the output receipt and each component issue.
type ProductionResult struct {
	Output     MoveResult               `json:"output"`
	Components []MoveResult             `json:"components"`
	TotalCost  decimal.Decimal          `json:"total_cost"`
	Journal    *accounting.JournalEntry `json:"journal,omitempty"`
}

// MoveDetail is a move with its consumptions.
type MoveDetail struct {
	Move         StockMove          `json:"move"`
	Consumptions []StockConsumption `json:"consumptions"`
	Layers       []StockLayer       `json:"layers"`
}

// MoveFilter narrows move listings. Zero ids match everything.
type MoveFilter struct {
	ItemID      int64
	WarehouseID int64
	From        *time.Time
	To          *time.Time
	Types       []MoveType
	Limit       int
}

// StockCardFilter selects a stock card. Unit defaults to the item display unit.
type StockCardFilter struct {
	ItemID      int64
	WarehouseID int64
	Unit        units.Unit
	From        *time.Time
	To          *time.Time
}

// StockCardEntry is one line of a stock card in the requested unit.
type StockCardEntry struct {
	MoveID   uuid.UUID       `json:"move_id"`
	Type     MoveType        `json:"type"`
	Status   MoveStatus      `json:"status"`
	Date     time.Time       `json:"date"`
	QtyIn    decimal.Decimal `json:"qty_in"`
	QtyOut   decimal.Decimal `json:"qty_out"`
	Balance  decimal.Decimal `json:"balance"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Amount   decimal.Decimal `json:"amount"`
	Note     string          `json:"note,omitempty"`
}

// StockCard is the running history of one aggregate.
type StockCard struct {
	ItemID      int64            `json:"item_id"`
	WarehouseID int64            `json:"warehouse_id"`
	Unit        units.Unit       `json:"unit"`
	Opening     decimal.Decimal  `json:"opening"`
	Closing     decimal.Decimal  `json:"closing"`
	Value       decimal.Decimal  `json:"value"`
	Entries     []StockCardEntry `json:"entries"`
}

// StockTotals are the raw sums the reconciliation compares.
type StockTotals struct {
	LayerOriginal  decimal.Decimal `json:"layer_original"`
	LayerRemaining decimal.Decimal `json:"layer_remaining"`
	LayerConsumed  decimal.Decimal `json:"layer_consumed"`
	MoveInbound    decimal.Decimal `json:"move_inbound"`
	MoveOutbound   decimal.Decimal `json:"move_outbound"`
	Shortfall      decimal.Decimal `json:"shortfall"`
}

// ReconcileReport is the conservation check for one aggregate.
type ReconcileReport struct {
	Key       StockKey        `json:"key"`
	Totals    StockTotals     `json:"totals"`
	Drift     decimal.Decimal `json:"drift"`
	Balanced  bool            `json:"balanced"`
	CheckedAt time.Time       `json:"checked_at"`
}
