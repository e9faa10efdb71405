package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/money"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes ledger persistence inside a transaction. Stock
// services hand their own transaction's implementation to PostForMove so the
// journal commits or aborts together with the inventory writes.
type TxRepository interface {
	periods.Lookup
	NextJournalSequence(ctx context.Context, period string) (int64, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) error
	LinkSource(ctx context.Context, sourceType, sourceID string, entryID uuid.UUID) error
	GetJournal(ctx context.Context, id uuid.UUID) (JournalEntry, error)
	GetJournalBySource(ctx context.Context, sourceType, sourceID string) (JournalEntry, error)
	UpdateJournalStatus(ctx context.Context, id uuid.UUID, status JournalStatus) error
	ListJournals(ctx context.Context, filter JournalFilter) ([]JournalEntry, error)
	TrialBalance(ctx context.Context, asOf *time.Time) ([]TrialBalanceRow, error)
}

// PeriodGuard blocks postings dated inside closed or locked periods.
type PeriodGuard interface {
	EnsureOpen(ctx context.Context, lookup periods.Lookup, date time.Time) error
}

// Service derives and persists balanced journal entries.
type Service struct {
	repo    RepositoryPort
	guard   PeriodGuard
	now     func() time.Time
	printer *message.Printer
}

// NewService constructs the ledger service.
func NewService(repo RepositoryPort, guard PeriodGuard) *Service {
	return &Service{
		repo:    repo,
		guard:   guard,
		now:     time.Now,
		printer: message.NewPrinter(language.English),
	}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostForMove posts the journal for one priced stock move on tx.
func (s *Service) PostForMove(ctx context.Context, tx TxRepository, move Move, accounts AccountMap) (JournalEntry, error) {
	if move.ID == uuid.Nil {
		return JournalEntry{}, errors.New("accounting: move id required")
	}
	lines, err := MoveLines(move, accounts)
	if err != nil {
		return JournalEntry{}, err
	}
	description := move.Description
	if description == "" {
		description = s.describeMove(move)
	}
	return s.Post(ctx, tx, PostingInput{
		Date:        move.Date,
		SourceType:  SourceStockMove,
		SourceID:    move.ID.String(),
		Description: description,
		PostedBy:    move.PostedBy,
		Lines:       lines,
	})
}

// Post validates and persists a journal entry on tx.
func (s *Service) Post(ctx context.Context, tx TxRepository, input PostingInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	if s.guard != nil {
		if err := s.guard.EnsureOpen(ctx, tx, input.Date); err != nil {
			return JournalEntry{}, err
		}
	}
	seq, err := tx.NextJournalSequence(ctx, input.Date.Format("200601"))
	if err != nil {
		return JournalEntry{}, fmt.Errorf("accounting: journal number: %w", err)
	}
	entry := JournalEntry{
		ID:          uuid.New(),
		Number:      formatNumber(input.Date, seq),
		Date:        input.Date,
		SourceType:  input.SourceType,
		SourceID:    input.SourceID,
		Description: input.Description,
		Status:      JournalStatusPosted,
		ReversalOf:  input.ReversalOf,
		PostedBy:    input.PostedBy,
		CreatedAt:   s.now(),
		Lines:       toJournalLines(input.Lines),
	}
	if err := tx.InsertJournalEntry(ctx, entry); err != nil {
		return JournalEntry{}, err
	}
	if err := tx.LinkSource(ctx, input.SourceType, input.SourceID, entry.ID); err != nil {
		if errors.Is(err, shared.ErrSourceConflict) {
			return JournalEntry{}, shared.ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

// Reverse posts the mirror of the journal linked to in.SourceID and marks the
// original REVERSED. It returns shared.ErrJournalNotFound when the source
// never produced a journal.
func (s *Service) Reverse(ctx context.Context, tx TxRepository, in ReverseInput) (JournalEntry, error) {
	original, err := tx.GetJournalBySource(ctx, in.SourceType, in.SourceID)
	if err != nil {
		return JournalEntry{}, err
	}
	if original.Status != JournalStatusPosted {
		return JournalEntry{}, shared.ErrInvalidStatus
	}
	date := in.Date
	if date.IsZero() {
		date = s.now()
	}
	reversal, err := s.Post(ctx, tx, PostingInput{
		Date:        date,
		SourceType:  in.SourceType,
		SourceID:    in.ReversalSourceID,
		Description: defaultReversalMemo(in.Memo, original.Number),
		PostedBy:    in.PostedBy,
		ReversalOf:  &original.ID,
		Lines:       reverseLines(original.Lines),
	})
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.UpdateJournalStatus(ctx, original.ID, JournalStatusReversed); err != nil {
		return JournalEntry{}, err
	}
	return reversal, nil
}

// Get loads one journal with its lines.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournal(ctx, id)
		return err
	})
	return entry, err
}

// List returns journals matching filter, newest first.
func (s *Service) List(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entries, err = tx.ListJournals(ctx, filter)
		return err
	})
	return entries, err
}

// TrialBalance aggregates debit and credit per account up to asOf.
func (s *Service) TrialBalance(ctx context.Context, asOf *time.Time) ([]TrialBalanceRow, error) {
	var rows []TrialBalanceRow
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		rows, err = tx.TrialBalance(ctx, asOf)
		return err
	})
	return rows, err
}

// CheckIntegrity re-validates every journal in the window.
func (s *Service) CheckIntegrity(ctx context.Context, filter JournalFilter) (IntegrityReport, error) {
	filter.Limit = 0
	entries, err := s.List(ctx, filter)
	if err != nil {
		return IntegrityReport{}, err
	}
	var report IntegrityReport
	for _, entry := range entries {
		debit, credit := entry.Totals()
		report.EntriesChecked++
		report.TotalDebit = report.TotalDebit.Add(debit)
		report.TotalCredit = report.TotalCredit.Add(credit)
		if !money.Round2(debit).Equal(money.Round2(credit)) {
			report.Unbalanced = append(report.Unbalanced, entry.ID)
		}
	}
	return report, nil
}

func (s *Service) describeMove(move Move) string {
	amount := money.Float(money.Amount(move.Qty, move.UnitCost))
	qty, _ := move.Qty.Abs().Float64()
	return s.printer.Sprintf("%s %s: %v @ %s = %.2f",
		strings.ToLower(move.Type), shortID(move.ID), qty, move.UnitCost.String(), amount)
}

func formatNumber(date time.Time, seq int64) string {
	return fmt.Sprintf("JE-%s-%06d", date.Format("200601"), seq)
}

func shortID(id uuid.UUID) string {
	return strings.SplitN(id.String(), "-", 2)[0]
}

func defaultReversalMemo(memo, number string) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of %s", number)
}
