package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/app"
	_ "github.com/odyssey-erp/odyssey-costing/testing"
)

func memoryConfig() (*app.Config, error) {
	return &app.Config{
		Storage:     app.StorageMemory,
		LockBackend: app.LockMemory,
		LogLevel:    "error",
	}, nil
}

func TestMainSkipsInTestMode(t *testing.T) {
	app.RefreshTestMode()
	require.True(t, app.InTestMode())
	main()
}

func TestRunUsage(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"help"}, &out, memoryConfig)
	require.ErrorIs(t, err, flag.ErrHelp)
	require.Contains(t, out.String(), "jobs run <task>")

	out.Reset()
	err = run(context.Background(), []string{"deploy"}, &out, memoryConfig)
	require.ErrorContains(t, err, "unknown command")
}

func TestRunIntegrityOnMemoryStore(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"jobs", "run", "integrity", "-from", "2024-01-01"}, &out, app.LoadConfig)
	require.NoError(t, err, out.String())

	var report struct {
		EntriesChecked int `json:"entries_checked"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Zero(t, report.EntriesChecked)
}

func TestRunReconcileAndPurge(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"jobs", "run", "reconcile"}, &out, memoryConfig))
	require.Contains(t, out.String(), `"checked": 0`)

	out.Reset()
	err := run(context.Background(), []string{"jobs", "run", "reconcile", "-item", "4"}, &out, memoryConfig)
	require.ErrorContains(t, err, "given together")

	out.Reset()
	require.NoError(t, run(context.Background(), []string{"jobs", "run", "purge"}, &out, memoryConfig))
	require.Contains(t, out.String(), `"removed": 0`)
}

func TestRunRejectsBadFlags(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"jobs", "run", "integrity", "-from", "yesterday"}, &out, memoryConfig)
	require.ErrorContains(t, err, "invalid date")

	err = run(context.Background(), []string{"jobs", "frobnicate"}, &out, memoryConfig)
	require.ErrorContains(t, err, "unknown subcommand")

	err = run(context.Background(), []string{"jobs", "run", "analytics"}, &out, memoryConfig)
	require.ErrorContains(t, err, "unsupported task")
}

func TestMigrateIsNoopOnMemoryStore(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"migrate"}, &out, memoryConfig))
	require.NoError(t, run(context.Background(), []string{"migrate", "-status"}, &out, memoryConfig))
}
