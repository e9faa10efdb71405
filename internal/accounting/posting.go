package accounting

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/money"
)

// Error aliases so callers need not import accounting/shared.
var (
	ErrUnbalanced          = shared.ErrUnbalanced
	ErrTooFewLines         = shared.ErrTooFewLines
	ErrPeriodLocked        = shared.ErrPeriodLocked
	ErrJournalNotFound     = shared.ErrJournalNotFound
	ErrSourceAlreadyLinked = shared.ErrSourceAlreadyLinked
	ErrMappingNotFound     = shared.ErrMappingNotFound
)

// UnbalancedEntryError reports the sides of an entry that does not balance.
// It always indicates a defect in line derivation.
type UnbalancedEntryError struct {
	SourceType string
	SourceID   string
	Debit      decimal.Decimal
	Credit     decimal.Decimal
}

func (e *UnbalancedEntryError) Error() string {
	return fmt.Sprintf("accounting: %s %s unbalanced: debit %s credit %s", e.SourceType, e.SourceID, e.Debit.StringFixed(2), e.Credit.StringFixed(2))
}

// Is lets errors.Is match shared.ErrUnbalanced.
func (e *UnbalancedEntryError) Is(target error) bool {
	return target == shared.ErrUnbalanced
}

// RequireInbound checks the accounts an inbound move needs.
func (m AccountMap) RequireInbound() error {
	if m.Inventory == "" || m.Offset == "" {
		return fmt.Errorf("%w: inbound needs inventory and offset accounts", shared.ErrMappingNotFound)
	}
	return nil
}

// RequireOutbound checks the accounts an outbound move needs.
func (m AccountMap) RequireOutbound() error {
	if m.Inventory == "" || m.Expense == "" {
		return fmt.Errorf("%w: outbound needs inventory and expense accounts", shared.ErrMappingNotFound)
	}
	return nil
}

// MoveLines derives the two journal lines for a priced stock move.
// Inbound: Dr inventory / Cr offset. Outbound: Dr expense / Cr inventory.
// Zero amounts are kept so zero-cost shortfalls still leave a journal trail.
func MoveLines(move Move, accounts AccountMap) ([]PostingLineInput, error) {
	if move.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: negative unit cost", shared.ErrInvalidLine)
	}
	amount := money.Amount(move.Qty, move.UnitCost)
	switch {
	case move.Qty.IsPositive():
		if err := accounts.RequireInbound(); err != nil {
			return nil, err
		}
		return []PostingLineInput{
			{AccountCode: accounts.Inventory, Debit: amount, Credit: decimal.Zero},
			{AccountCode: accounts.Offset, Debit: decimal.Zero, Credit: amount},
		}, nil
	case move.Qty.IsNegative():
		if err := accounts.RequireOutbound(); err != nil {
			return nil, err
		}
		return []PostingLineInput{
			{AccountCode: accounts.Expense, Debit: amount, Credit: decimal.Zero},
			{AccountCode: accounts.Inventory, Debit: decimal.Zero, Credit: amount},
		}, nil
	default:
		return nil, fmt.Errorf("%w: zero quantity move", shared.ErrInvalidLine)
	}
}

// Validate ensures posting input meets minimum criteria.
func (in PostingInput) Validate() error {
	if in.SourceType == "" || in.SourceID == "" {
		return errors.New("accounting: source required")
	}
	if in.Date.IsZero() {
		return errors.New("accounting: date required")
	}
	if len(in.Lines) < 2 {
		return shared.ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountCode == "" {
			return fmt.Errorf("%w: line %d missing account", shared.ErrInvalidLine, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", shared.ErrInvalidLine, idx)
		}
		if line.Debit.IsPositive() && line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d cannot be both debit and credit", shared.ErrInvalidLine, idx)
		}
		debit = debit.Add(money.Round2(line.Debit))
		credit = credit.Add(money.Round2(line.Credit))
	}
	if !debit.Equal(credit) {
		return &UnbalancedEntryError{SourceType: in.SourceType, SourceID: in.SourceID, Debit: debit, Credit: credit}
	}
	return nil
}

func reverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountCode: line.AccountCode,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Memo:        line.Memo,
		})
	}
	return out
}

func toJournalLines(lines []PostingLineInput) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, JournalLine{
			LineNo:      idx + 1,
			AccountCode: line.AccountCode,
			Debit:       money.Round2(line.Debit),
			Credit:      money.Round2(line.Credit),
			Memo:        line.Memo,
		})
	}
	return out
}
