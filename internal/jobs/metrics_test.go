package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, metrics.Track("inventory:reconcile").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("inventory:reconcile").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("inventory:reconcile", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("inventory:reconcile", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("inventory:reconcile")))
}

func TestFindings(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.AddFindings("ledger:integrity", "unbalanced_journal", 2)
	metrics.AddFindings("ledger:integrity", "unbalanced_journal", 0)
	require.Equal(t, 2.0, testutil.ToFloat64(metrics.findings.WithLabelValues("ledger:integrity", "unbalanced_journal")))
}

func TestNilMetricsTolerated(t *testing.T) {
	var metrics *Metrics
	tracker := metrics.Track("noop")
	require.NoError(t, tracker.End(nil))
	metrics.AddFindings("noop", "x", 1)
}
