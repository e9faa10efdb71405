package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	jobmetrics "github.com/odyssey-erp/odyssey-costing/internal/jobs"
)

// ErrLedgerUnbalanced reports journals whose debits and credits differ.
var ErrLedgerUnbalanced = errors.New("ledger integrity: unbalanced journals")

// IntegrityChecker re-validates posted journals.
type IntegrityChecker interface {
	CheckIntegrity(ctx context.Context, filter accounting.JournalFilter) (accounting.IntegrityReport, error)
}

// LedgerIntegrityJob checks that every journal in a window balances.
type LedgerIntegrityJob struct {
	Ledger  IntegrityChecker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLedgerIntegrityJob initialises the integrity handler.
func NewLedgerIntegrityJob(ledger IntegrityChecker, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle executes the task.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskLedgerIntegrity)
	report, err := j.Run(ctx, payload)
	if err != nil {
		return tracker.End(err)
	}
	if !report.Balanced() {
		return tracker.End(fmt.Errorf("%w: %d entries: %w", ErrLedgerUnbalanced, len(report.Unbalanced), asynq.SkipRetry))
	}
	return tracker.End(nil)
}

// Run checks the window and logs each unbalanced entry.
func (j *LedgerIntegrityJob) Run(ctx context.Context, payload LedgerIntegrityPayload) (accounting.IntegrityReport, error) {
	start := time.Now()
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("job", TaskLedgerIntegrity))

	report, err := j.Ledger.CheckIntegrity(ctx, accounting.JournalFilter{From: payload.From, To: payload.To})
	if err != nil {
		logger.Error("integrity check failed", slog.Any("error", err))
		return accounting.IntegrityReport{}, err
	}
	for _, id := range report.Unbalanced {
		logger.Warn("unbalanced journal", slog.String("journal_id", id.String()))
	}
	j.Metrics.AddFindings(TaskLedgerIntegrity, "unbalanced_journal", len(report.Unbalanced))
	logger.Info("completed ledger integrity check",
		slog.Int("entries", report.EntriesChecked),
		slog.Int("unbalanced", len(report.Unbalanced)),
		slog.String("total_debit", report.TotalDebit.String()),
		slog.String("total_credit", report.TotalCredit.String()),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}
