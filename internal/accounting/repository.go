package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/db"
	sharedpkg "github.com/odyssey-erp/odyssey-costing/internal/shared"
)

// Repository persists journals in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a read-consistent transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds ledger persistence to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) FindPeriodByDate(ctx context.Context, date time.Time) (periods.Period, error) {
	return periods.FindByDate(ctx, r.tx, date)
}

func (r *txRepository) NextJournalSequence(ctx context.Context, period string) (int64, error) {
	var next int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_sequences (period, last_value) VALUES ($1, 1)
ON CONFLICT (period) DO UPDATE SET last_value = journal_sequences.last_value + 1
RETURNING last_value`, period).Scan(&next)
	return next, err
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_entries (id, number, entry_date, source_type, source_id, description, status, reversal_of, posted_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.Number, entry.Date, entry.SourceType, entry.SourceID, entry.Description, entry.Status, entry.ReversalOf, entry.PostedBy, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("accounting: insert journal: %w", err)
	}
	rows := make([][]any, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		rows = append(rows, []any{entry.ID, line.LineNo, line.AccountCode, line.Debit, line.Credit, line.Memo})
	}
	_, err = r.tx.CopyFrom(ctx, pgx.Identifier{"journal_lines"},
		[]string{"entry_id", "line_no", "account_code", "debit", "credit", "memo"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("accounting: insert journal lines: %w", err)
	}
	return nil
}

func (r *txRepository) LinkSource(ctx context.Context, sourceType, sourceID string, entryID uuid.UUID) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO journal_sources (source_type, source_id, entry_id) VALUES ($1, $2, $3)`, sourceType, sourceID, entryID)
	if err != nil {
		if sharedpkg.IsUniqueViolation(err) {
			return shared.ErrSourceConflict
		}
		return err
	}
	return nil
}

const journalColumns = `e.id, e.number, e.entry_date, e.source_type, e.source_id, e.description, e.status, e.reversal_of, e.posted_by, e.created_at`

func scanJournal(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.SourceType, &e.SourceID, &e.Description, &e.Status, &e.ReversalOf, &e.PostedBy, &e.CreatedAt)
	return e, err
}

func (r *txRepository) GetJournal(ctx context.Context, id uuid.UUID) (JournalEntry, error) {
	entry, err := scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journal_entries e WHERE e.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return r.withLines(ctx, entry)
}

func (r *txRepository) GetJournalBySource(ctx context.Context, sourceType, sourceID string) (JournalEntry, error) {
	entry, err := scanJournal(r.tx.QueryRow(ctx, `SELECT `+journalColumns+`
FROM journal_sources s JOIN journal_entries e ON e.id = s.entry_id
WHERE s.source_type = $1 AND s.source_id = $2 FOR UPDATE OF e`, sourceType, sourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	return r.withLines(ctx, entry)
}

func (r *txRepository) withLines(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT line_no, account_code, debit, credit, memo FROM journal_lines WHERE entry_id = $1 ORDER BY line_no`, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.LineNo, &line.AccountCode, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *txRepository) UpdateJournalStatus(ctx context.Context, id uuid.UUID, status JournalStatus) error {
	tag, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) ListJournals(ctx context.Context, filter JournalFilter) ([]JournalEntry, error) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.SourceType != "" {
		add("e.source_type = $%d", filter.SourceType)
	}
	if filter.SourceID != "" {
		add("e.source_id = $%d", filter.SourceID)
	}
	if filter.From != nil {
		add("e.entry_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("e.entry_date <= $%d", *filter.To)
	}
	query := `SELECT ` + journalColumns + ` FROM journal_entries e`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY e.entry_date DESC, e.number DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (JournalEntry, error) {
		return scanJournal(row)
	})
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i], err = r.withLines(ctx, entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (r *txRepository) TrialBalance(ctx context.Context, asOf *time.Time) ([]TrialBalanceRow, error) {
	rows, err := r.tx.Query(ctx, `SELECT l.account_code, COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.entry_id
WHERE $1::timestamptz IS NULL OR e.entry_date <= $1
GROUP BY l.account_code ORDER BY l.account_code`, asOf)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TrialBalanceRow, error) {
		var tb TrialBalanceRow
		if err := row.Scan(&tb.AccountCode, &tb.Debit, &tb.Credit); err != nil {
			return TrialBalanceRow{}, err
		}
		tb.Balance = tb.Debit.Sub(tb.Credit)
		return tb, nil
	})
}
