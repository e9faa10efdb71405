package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

type stubLookup struct {
	periods []Period
}

func (s stubLookup) FindPeriodByDate(_ context.Context, date time.Time) (Period, error) {
	for _, p := range s.periods {
		if p.Covers(date) {
			return p, nil
		}
	}
	return Period{}, shared.ErrPeriodNotFound
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGuardRefusesLockedAndClosedPeriods(t *testing.T) {
	lookup := stubLookup{periods: []Period{
		{Code: "2026-01", StartDate: day(2026, 1, 1), EndDate: day(2026, 1, 31), Status: PeriodStatusLocked},
		{Code: "2026-02", StartDate: day(2026, 2, 1), EndDate: day(2026, 2, 28), Status: PeriodStatusClosed},
		{Code: "2026-03", StartDate: day(2026, 3, 1), EndDate: day(2026, 3, 31), Status: PeriodStatusOpen},
	}}
	guard := NewGuard(false)
	ctx := context.Background()

	require.ErrorIs(t, guard.EnsureOpen(ctx, lookup, day(2026, 1, 31).Add(23*time.Hour)), shared.ErrPeriodLocked)
	require.ErrorIs(t, guard.EnsureOpen(ctx, lookup, day(2026, 2, 10)), shared.ErrPeriodLocked)
	require.NoError(t, guard.EnsureOpen(ctx, lookup, day(2026, 3, 1)))
	require.NoError(t, guard.EnsureOpen(ctx, lookup, day(2027, 1, 1)))
}

func TestGuardRequirePeriod(t *testing.T) {
	guard := NewGuard(true)
	err := guard.EnsureOpen(context.Background(), stubLookup{}, day(2026, 5, 1))
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
}

func TestPeriodValidate(t *testing.T) {
	p := Period{Code: "X", StartDate: day(2026, 2, 1), EndDate: day(2026, 1, 1), Status: PeriodStatusOpen}
	require.ErrorIs(t, p.Validate(), shared.ErrInvalidPeriod)
	p.EndDate = day(2026, 2, 28)
	p.Status = "FROZEN"
	require.ErrorIs(t, p.Validate(), shared.ErrInvalidPeriod)
	p.Status = PeriodStatusOpen
	require.NoError(t, p.Validate())
}

type memRepo struct {
	rows map[string]Period
}

func (m *memRepo) List(context.Context) ([]Period, error) {
	out := make([]Period, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	return out, nil
}

func (m *memRepo) Upsert(_ context.Context, p Period) (Period, error) {
	if m.rows == nil {
		m.rows = map[string]Period{}
	}
	m.rows[p.Code] = p
	return p, nil
}

func TestUpsertEnforcesStatusTransitions(t *testing.T) {
	svc := NewService(&memRepo{})
	ctx := context.Background()
	jan := Period{Code: "2024-01", StartDate: day(2024, 1, 1), EndDate: day(2024, 1, 31), Status: PeriodStatusOpen}

	_, err := svc.Upsert(ctx, jan)
	require.NoError(t, err)

	jan.Status = PeriodStatusLocked
	_, err = svc.Upsert(ctx, jan)
	require.NoError(t, err)

	jan.Status = PeriodStatusOpen
	_, err = svc.Upsert(ctx, jan)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	jan.Status = PeriodStatusClosed
	_, err = svc.Upsert(ctx, jan)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.Override(ctx, jan)
	require.NoError(t, err)

	jan.Status = PeriodStatusOpen
	_, err = svc.Upsert(ctx, jan)
	require.NoError(t, err)
}

func TestCanTransition(t *testing.T) {
	require.True(t, PeriodStatusOpen.CanTransition(PeriodStatusClosed, false))
	require.True(t, PeriodStatusClosed.CanTransition(PeriodStatusOpen, false))
	require.False(t, PeriodStatusLocked.CanTransition(PeriodStatusOpen, true))
	require.True(t, PeriodStatusLocked.CanTransition(PeriodStatusLocked, false))
}
