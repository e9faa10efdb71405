package periods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

// Lookup finds the period covering a date. Implementations return
// shared.ErrPeriodNotFound when none does.
type Lookup interface {
	FindPeriodByDate(ctx context.Context, date time.Time) (Period, error)
}

// Guard refuses postings into closed or locked periods.
type Guard struct {
	requirePeriod bool
}

// NewGuard builds a guard. With requirePeriod set, dates outside every
// configured period are refused as well.
func NewGuard(requirePeriod bool) *Guard {
	return &Guard{requirePeriod: requirePeriod}
}

// EnsureOpen returns shared.ErrPeriodLocked when date may not receive postings.
func (g *Guard) EnsureOpen(ctx context.Context, lookup Lookup, date time.Time) error {
	period, err := lookup.FindPeriodByDate(ctx, date)
	if err != nil {
		if errors.Is(err, shared.ErrPeriodNotFound) {
			if g != nil && g.requirePeriod {
				return fmt.Errorf("%w: %s", shared.ErrPeriodLocked, date.Format(time.DateOnly))
			}
			return nil
		}
		return err
	}
	if !period.AcceptsPostings() {
		return fmt.Errorf("%w: %s is %s", shared.ErrPeriodLocked, period.Code, period.Status)
	}
	return nil
}

// Service manages period rows for the posting guard.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Period, error) {
	return s.repo.List(ctx)
}

// Upsert creates or replaces the period identified by Code. Status changes
// of an existing period must follow CanTransition.
func (s *Service) Upsert(ctx context.Context, period Period) (Period, error) {
	return s.upsert(ctx, period, false)
}

// Override reopens a locked period to CLOSED, or applies any other change
// Upsert would refuse for a locked period.
func (s *Service) Override(ctx context.Context, period Period) (Period, error) {
	return s.upsert(ctx, period, true)
}

func (s *Service) upsert(ctx context.Context, period Period, override bool) (Period, error) {
	if err := period.Validate(); err != nil {
		return Period{}, err
	}
	existing, err := s.repo.List(ctx)
	if err != nil {
		return Period{}, err
	}
	for _, current := range existing {
		if current.Code != period.Code {
			continue
		}
		if !current.Status.CanTransition(period.Status, override) {
			return Period{}, fmt.Errorf("%w: period %s %s -> %s", shared.ErrInvalidStatus, period.Code, current.Status, period.Status)
		}
		break
	}
	return s.repo.Upsert(ctx, period)
}
