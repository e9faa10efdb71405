package accounting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusPosted   JournalStatus = "POSTED"
	JournalStatusReversed JournalStatus = "REVERSED"
)

// Source types referenced by journal entries.
const (
	SourceStockMove  = "STOCK_MOVE"
	SourceTransfer   = "STOCK_TRANSFER"
	SourceProduction = "PRODUCTION"
)

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID          uuid.UUID     `json:"id"`
	Number      string        `json:"number"`
	Date        time.Time     `json:"date"`
	SourceType  string        `json:"source_type"`
	SourceID    string        `json:"source_id"`
	Description string        `json:"description"`
	Status      JournalStatus `json:"status"`
	ReversalOf  *uuid.UUID    `json:"reversal_of,omitempty"`
	PostedBy    int64         `json:"posted_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	Lines       []JournalLine `json:"lines"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	LineNo      int             `json:"line_no"`
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// Totals sums both sides of the entry.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	for _, line := range e.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// AccountMap names the accounts a stock move posts to. Offset is the
// payable/cash (or gain) account credited by inbound moves; Expense is the
// COGS (or loss) account debited by outbound moves.
type AccountMap struct {
	Inventory string `json:"inventory"`
	Expense   string `json:"expense"`
	Offset    string `json:"offset"`
}

// Move is the accounting view of a priced stock move.
type Move struct {
	ID          uuid.UUID
	Type        string
	Date        time.Time
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	Description string
	PostedBy    int64
}

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountCode string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Memo        string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Date        time.Time
	SourceType  string
	SourceID    string
	Description string
	PostedBy    int64
	ReversalOf  *uuid.UUID
	Lines       []PostingLineInput
}

// ReverseInput wraps parameters for reversing the journal linked to a source.
type ReverseInput struct {
	SourceType       string
	SourceID         string
	ReversalSourceID string
	Date             time.Time
	Memo             string
	PostedBy         int64
}

// JournalFilter narrows journal listings.
type JournalFilter struct {
	SourceType string
	SourceID   string
	From       *time.Time
	To         *time.Time
	Limit      int
}

// TrialBalanceRow aggregates one account.
type TrialBalanceRow struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

// IntegrityReport summarises a ledger scan.
type IntegrityReport struct {
	EntriesChecked int             `json:"entries_checked"`
	Unbalanced     []uuid.UUID     `json:"unbalanced"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
}

// Balanced reports whether every entry and the ledger as a whole balance.
func (r IntegrityReport) Balanced() bool {
	return len(r.Unbalanced) == 0 && r.TotalDebit.Equal(r.TotalCredit)
}
