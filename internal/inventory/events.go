package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
)

// MovePostedEvent asks for the journal of a single priced move.
type MovePostedEvent struct {
	Move     StockMove
	Item     items.Item
	Accounts *accounting.AccountMap
}

// TransferPostedEvent carries both legs of a warehouse transfer. Amount is
// the rounded value of the layers that moved.
type TransferPostedEvent struct {
	Out      StockMove
	In       StockMove
	Item     items.Item
	Amount   decimal.Decimal
	Accounts *accounting.AccountMap
}

// ProductionComponent is one issued material of a production run.
type ProductionComponent struct {
	Move   StockMove
	Item   items.Item
	Amount decimal.Decimal
}

// ProductionPostedEvent carries a production run. TotalCost equals the sum
// of component amounts.
type ProductionPostedEvent struct {
	Output     StockMove
	OutputItem items.Item
	Components []ProductionComponent
	TotalCost  decimal.Decimal
	Accounts   *accounting.AccountMap
}

// MoveReversedEvent pairs a reversed move with its offset.
type MoveReversedEvent struct {
	Original StockMove
	Reversal StockMove
}

// StockChangedEvent is published after a commit touching an aggregate.
type StockChangedEvent struct {
	Key    StockKey
	MoveID string
	Type   MoveType
}

// Poster writes journals on the inventory transaction's ledger. A nil entry
// with a nil error means nothing was posted.
type Poster interface {
	HandleMovePosted(ctx context.Context, ledger accounting.TxRepository, evt MovePostedEvent) (*accounting.JournalEntry, error)
	HandleTransferPosted(ctx context.Context, ledger accounting.TxRepository, evt TransferPostedEvent) (*accounting.JournalEntry, error)
	HandleProductionPosted(ctx context.Context, ledger accounting.TxRepository, evt ProductionPostedEvent) (*accounting.JournalEntry, error)
	HandleMoveReversed(ctx context.Context, ledger accounting.TxRepository, evt MoveReversedEvent) (*accounting.JournalEntry, error)
}

// Publisher receives post-commit notifications.
type Publisher interface {
	StockChanged(ctx context.Context, evt StockChangedEvent) error
}
