package periods

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// Period represents a fiscal period window. EndDate is inclusive.
type Period struct {
	ID        int64        `json:"id"`
	Code      string       `json:"code" validate:"required,max=32"`
	StartDate time.Time    `json:"start_date" validate:"required"`
	EndDate   time.Time    `json:"end_date" validate:"required"`
	Status    PeriodStatus `json:"status" validate:"required,oneof=OPEN CLOSED LOCKED"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Covers reports whether date falls inside the period, by calendar day.
func (p Period) Covers(date time.Time) bool {
	day := truncateDay(date)
	return !day.Before(truncateDay(p.StartDate)) && !day.After(truncateDay(p.EndDate))
}

// AcceptsPostings reports whether journals may be dated inside the period.
func (p Period) AcceptsPostings() bool {
	return p.Status == PeriodStatusOpen
}

// Validate checks the window and status.
func (p Period) Validate() error {
	if p.Code == "" {
		return fmt.Errorf("%w: code required", shared.ErrInvalidPeriod)
	}
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: end before start", shared.ErrInvalidPeriod)
	}
	switch p.Status {
	case PeriodStatusOpen, PeriodStatusClosed, PeriodStatusLocked:
	default:
		return fmt.Errorf("%w: status %q", shared.ErrInvalidPeriod, p.Status)
	}
	return nil
}

// CanTransition reports whether a period may move from s to target. A
// locked period only reopens to CLOSED, and only with override.
func (s PeriodStatus) CanTransition(target PeriodStatus, override bool) bool {
	if s == target {
		return true
	}
	switch s {
	case PeriodStatusOpen:
		return target == PeriodStatusClosed || target == PeriodStatusLocked
	case PeriodStatusClosed:
		return target == PeriodStatusOpen || target == PeriodStatusLocked
	case PeriodStatusLocked:
		return target == PeriodStatusClosed && override
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
