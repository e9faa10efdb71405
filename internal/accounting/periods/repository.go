package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

type Repository interface {
	List(ctx context.Context) ([]Period, error)
	Upsert(ctx context.Context, period Period) (Period, error)
}

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// FindByDate returns the period covering date, used from inside posting transactions.
func FindByDate(ctx context.Context, q Querier, date time.Time) (Period, error) {
	var p Period
	err := q.QueryRow(ctx, `SELECT id, code, start_date, end_date, status, updated_at
FROM accounting_periods WHERE $1::date BETWEEN start_date AND end_date ORDER BY start_date LIMIT 1 FOR SHARE`, date).
		Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrPeriodNotFound
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) List(ctx context.Context) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, start_date, end_date, status, updated_at FROM accounting_periods ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		var p Period
		if err := rows.Scan(&p.ID, &p.Code, &p.StartDate, &p.EndDate, &p.Status, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Upsert(ctx context.Context, period Period) (Period, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO accounting_periods (code, start_date, end_date, status, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (code) DO UPDATE SET start_date = EXCLUDED.start_date, end_date = EXCLUDED.end_date, status = EXCLUDED.status, updated_at = NOW()
RETURNING id, updated_at`, period.Code, period.StartDate, period.EndDate, period.Status).
		Scan(&period.ID, &period.UpdatedAt)
	if err != nil {
		return Period{}, err
	}
	return period, nil
}
