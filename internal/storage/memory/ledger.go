package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

type ledgerRepo struct {
	store *Store
}

func (r *ledgerRepo) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	return r.store.update(func(st *state) error {
		return fn(ctx, &ledgerTx{st: st})
	})
}

type ledgerTx struct {
	st *state
}

func (tx *ledgerTx) FindPeriodByDate(_ context.Context, date time.Time) (periods.Period, error) {
	var (
		found periods.Period
		ok    bool
	)
	for _, p := range tx.st.periods {
		if !p.Covers(date) {
			continue
		}
		if !ok || p.StartDate.Before(found.StartDate) {
			found, ok = p, true
		}
	}
	if !ok {
		return periods.Period{}, shared.ErrPeriodNotFound
	}
	return found, nil
}

func (tx *ledgerTx) NextJournalSequence(_ context.Context, period string) (int64, error) {
	tx.st.sequences[period]++
	return tx.st.sequences[period], nil
}

func (tx *ledgerTx) InsertJournalEntry(_ context.Context, entry accounting.JournalEntry) error {
	entry.Lines = append([]accounting.JournalLine(nil), entry.Lines...)
	tx.st.journals[entry.ID] = entry
	tx.st.journalOrder = append(tx.st.journalOrder, entry.ID)
	return nil
}

func (tx *ledgerTx) LinkSource(_ context.Context, sourceType, sourceID string, entryID uuid.UUID) error {
	key := sourceKey{sourceType: sourceType, sourceID: sourceID}
	if _, exists := tx.st.sources[key]; exists {
		return shared.ErrSourceConflict
	}
	if _, ok := tx.st.journals[entryID]; !ok {
		return shared.ErrJournalNotFound
	}
	tx.st.sources[key] = entryID
	return nil
}

func (tx *ledgerTx) GetJournal(_ context.Context, id uuid.UUID) (accounting.JournalEntry, error) {
	entry, ok := tx.st.journals[id]
	if !ok {
		return accounting.JournalEntry{}, shared.ErrJournalNotFound
	}
	return entry, nil
}

func (tx *ledgerTx) GetJournalBySource(ctx context.Context, sourceType, sourceID string) (accounting.JournalEntry, error) {
	id, ok := tx.st.sources[sourceKey{sourceType: sourceType, sourceID: sourceID}]
	if !ok {
		return accounting.JournalEntry{}, shared.ErrJournalNotFound
	}
	return tx.GetJournal(ctx, id)
}

func (tx *ledgerTx) UpdateJournalStatus(_ context.Context, id uuid.UUID, status accounting.JournalStatus) error {
	entry, ok := tx.st.journals[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	entry.Status = status
	tx.st.journals[id] = entry
	return nil
}

func (tx *ledgerTx) ListJournals(_ context.Context, filter accounting.JournalFilter) ([]accounting.JournalEntry, error) {
	var out []accounting.JournalEntry
	for _, id := range tx.st.journalOrder {
		entry := tx.st.journals[id]
		if filter.SourceType != "" && entry.SourceType != filter.SourceType {
			continue
		}
		if filter.SourceID != "" && entry.SourceID != filter.SourceID {
			continue
		}
		if filter.From != nil && entry.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && entry.Date.After(*filter.To) {
			continue
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Number > out[j].Number
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (tx *ledgerTx) TrialBalance(_ context.Context, asOf *time.Time) ([]accounting.TrialBalanceRow, error) {
	byCode := make(map[string]*accounting.TrialBalanceRow)
	for _, entry := range tx.st.journals {
		if asOf != nil && entry.Date.After(*asOf) {
			continue
		}
		for _, line := range entry.Lines {
			row, ok := byCode[line.AccountCode]
			if !ok {
				row = &accounting.TrialBalanceRow{AccountCode: line.AccountCode, Debit: decimal.Zero, Credit: decimal.Zero}
				byCode[line.AccountCode] = row
			}
			row.Debit = row.Debit.Add(line.Debit)
			row.Credit = row.Credit.Add(line.Credit)
		}
	}
	out := make([]accounting.TrialBalanceRow, 0, len(byCode))
	for _, row := range byCode {
		row.Balance = row.Debit.Sub(row.Credit)
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountCode < out[j].AccountCode })
	return out, nil
}
