package accounting

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

type stubTx struct {
	periods  []periods.Period
	seq      map[string]int64
	journals map[uuid.UUID]JournalEntry
	sources  map[string]uuid.UUID
}

func newStubTx() *stubTx {
	return &stubTx{
		seq:      map[string]int64{},
		journals: map[uuid.UUID]JournalEntry{},
		sources:  map[string]uuid.UUID{},
	}
}

func (s *stubTx) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, s)
}

func (s *stubTx) FindPeriodByDate(_ context.Context, date time.Time) (periods.Period, error) {
	for _, p := range s.periods {
		if p.Covers(date) {
			return p, nil
		}
	}
	return periods.Period{}, shared.ErrPeriodNotFound
}

func (s *stubTx) NextJournalSequence(_ context.Context, period string) (int64, error) {
	s.seq[period]++
	return s.seq[period], nil
}

func (s *stubTx) InsertJournalEntry(_ context.Context, entry JournalEntry) error {
	s.journals[entry.ID] = entry
	return nil
}

func (s *stubTx) LinkSource(_ context.Context, sourceType, sourceID string, entryID uuid.UUID) error {
	key := sourceType + ":" + sourceID
	if _, ok := s.sources[key]; ok {
		return shared.ErrSourceConflict
	}
	s.sources[key] = entryID
	return nil
}

func (s *stubTx) GetJournal(_ context.Context, id uuid.UUID) (JournalEntry, error) {
	entry, ok := s.journals[id]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return entry, nil
}

func (s *stubTx) GetJournalBySource(ctx context.Context, sourceType, sourceID string) (JournalEntry, error) {
	id, ok := s.sources[sourceType+":"+sourceID]
	if !ok {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return s.GetJournal(ctx, id)
}

func (s *stubTx) UpdateJournalStatus(_ context.Context, id uuid.UUID, status JournalStatus) error {
	entry, ok := s.journals[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	entry.Status = status
	s.journals[id] = entry
	return nil
}

func (s *stubTx) ListJournals(context.Context, JournalFilter) ([]JournalEntry, error) {
	out := make([]JournalEntry, 0, len(s.journals))
	for _, entry := range s.journals {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *stubTx) TrialBalance(context.Context, *time.Time) ([]TrialBalanceRow, error) {
	return nil, nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

var testAccounts = AccountMap{Inventory: "1400", Expense: "5000", Offset: "2100"}

func TestPostForMoveOutboundDebitsCOGS(t *testing.T) {
	tx := newStubTx()
	svc := NewService(tx, periods.NewGuard(false))
	move := Move{ID: uuid.New(), Type: "SALE", Date: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), Qty: dec("-500"), UnitCost: dec("1.5")}

	entry, err := svc.PostForMove(context.Background(), tx, move, testAccounts)
	require.NoError(t, err)
	require.Equal(t, "JE-202603-000001", entry.Number)
	require.Equal(t, SourceStockMove, entry.SourceType)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, "5000", entry.Lines[0].AccountCode)
	require.True(t, entry.Lines[0].Debit.Equal(dec("750")))
	require.Equal(t, "1400", entry.Lines[1].AccountCode)
	require.True(t, entry.Lines[1].Credit.Equal(dec("750")))

	debit, credit := entry.Totals()
	require.True(t, debit.Equal(credit))
	require.NotEmpty(t, entry.Description)
}

func TestPostForMoveInboundCreditsOffset(t *testing.T) {
	tx := newStubTx()
	svc := NewService(tx, nil)
	move := Move{ID: uuid.New(), Type: "PURCHASE", Date: time.Now(), Qty: dec("1000"), UnitCost: dec("1.5")}

	entry, err := svc.PostForMove(context.Background(), tx, move, testAccounts)
	require.NoError(t, err)
	require.Equal(t, "1400", entry.Lines[0].AccountCode)
	require.True(t, entry.Lines[0].Debit.Equal(dec("1500")))
	require.Equal(t, "2100", entry.Lines[1].AccountCode)
	require.True(t, entry.Lines[1].Credit.Equal(dec("1500")))
}

func TestPostForMoveAllowsZeroAmount(t *testing.T) {
	tx := newStubTx()
	svc := NewService(tx, nil)
	move := Move{ID: uuid.New(), Type: "SALE", Date: time.Now(), Qty: dec("-3"), UnitCost: decimal.Zero}

	entry, err := svc.PostForMove(context.Background(), tx, move, testAccounts)
	require.NoError(t, err)
	require.True(t, entry.Lines[0].Debit.IsZero())
	require.True(t, entry.Lines[1].Credit.IsZero())
}

func TestPostRefusesLockedPeriod(t *testing.T) {
	tx := newStubTx()
	tx.periods = []periods.Period{{
		Code:      "2026-01",
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		Status:    periods.PeriodStatusLocked,
	}}
	svc := NewService(tx, periods.NewGuard(false))
	move := Move{ID: uuid.New(), Type: "SALE", Date: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), Qty: dec("-1"), UnitCost: dec("1")}

	_, err := svc.PostForMove(context.Background(), tx, move, testAccounts)
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	require.Empty(t, tx.journals)
}

func TestPostRejectsUnbalancedLines(t *testing.T) {
	tx := newStubTx()
	svc := NewService(tx, nil)
	_, err := svc.Post(context.Background(), tx, PostingInput{
		Date:       time.Now(),
		SourceType: SourceProduction,
		SourceID:   "run-1",
		Lines: []PostingLineInput{
			{AccountCode: "1400", Debit: dec("10.00")},
			{AccountCode: "1410", Credit: dec("9.99")},
		},
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	var unbalanced *UnbalancedEntryError
	require.True(t, errors.As(err, &unbalanced))
	require.True(t, unbalanced.Debit.Equal(dec("10")))
	require.Empty(t, tx.journals)
}

func TestPostLinksSourceOnce(t *testing.T) {
	tx := newStubTx()
	svc := NewService(tx, nil)
	move := Move{ID: uuid.New(), Type: "SALE", Date: time.Now(), Qty: dec("-1"), UnitCost: dec("2")}

	_, err := svc.PostForMove(context.Background(), tx, move, testAccounts)
	require.NoError(t, err)
	_, err = svc.PostForMove(context.Background(), tx, move, testAccounts)
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
}

func TestMoveLinesRequiresAccounts(t *testing.T) {
	_, err := MoveLines(Move{Qty: dec("-1"), UnitCost: dec("1")}, AccountMap{Inventory: "1400"})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
	_, err = MoveLines(Move{Qty: dec("1"), UnitCost: dec("1")}, AccountMap{Inventory: "1400"})
	require.ErrorIs(t, err, shared.ErrMappingNotFound)
	_, err = MoveLines(Move{Qty: decimal.Zero, UnitCost: dec("1")}, testAccounts)
	require.ErrorIs(t, err, shared.ErrInvalidLine)
}

func TestReverseMirrorsLines(t *testing.T) {
	tx := newStubTx()
	svc := NewService(tx, nil)
	ctx := context.Background()
	move := Move{ID: uuid.New(), Type: "SALE", Date: time.Now(), Qty: dec("-12"), UnitCost: dec("2.33")}
	original, err := svc.PostForMove(ctx, tx, move, testAccounts)
	require.NoError(t, err)

	reversalMove := uuid.New()
	reversal, err := svc.Reverse(ctx, tx, ReverseInput{
		SourceType:       SourceStockMove,
		SourceID:         move.ID.String(),
		ReversalSourceID: reversalMove.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.Equal(t, "Reversal of "+original.Number, reversal.Description)
	require.True(t, reversal.Lines[0].Credit.Equal(original.Lines[0].Debit))
	require.True(t, reversal.Lines[1].Debit.Equal(original.Lines[1].Credit))
	require.Equal(t, JournalStatusReversed, tx.journals[original.ID].Status)

	_, err = svc.Reverse(ctx, tx, ReverseInput{SourceType: SourceStockMove, SourceID: move.ID.String(), ReversalSourceID: uuid.NewString()})
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestCheckIntegrity(t *testing.T) {
	tx := newStubTx()
	svc := NewService(tx, nil)
	ctx := context.Background()
	_, err := svc.PostForMove(ctx, tx, Move{ID: uuid.New(), Type: "SALE", Date: time.Now(), Qty: dec("-2"), UnitCost: dec("3.335")}, testAccounts)
	require.NoError(t, err)

	report, err := svc.CheckIntegrity(ctx, JournalFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, report.EntriesChecked)
	require.True(t, report.Balanced())

	bad := JournalEntry{ID: uuid.New(), Number: "JE-X", Lines: []JournalLine{{AccountCode: "1", Debit: dec("1")}, {AccountCode: "2", Credit: dec("2")}}}
	tx.journals[bad.ID] = bad
	report, err = svc.CheckIntegrity(ctx, JournalFilter{})
	require.NoError(t, err)
	require.False(t, report.Balanced())
	require.Equal(t, []uuid.UUID{bad.ID}, report.Unbalanced)
}
