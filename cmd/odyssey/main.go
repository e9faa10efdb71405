package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/odyssey-costing/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-costing/internal/app"
	"github.com/odyssey-erp/odyssey-costing/jobs"
)

const usage = `usage: odyssey <command> [flags]

commands:
  serve                       run the HTTP API (default)
  migrate [-status]           apply database migrations
  jobs run <task> [flags]     run a maintenance task in-process
  jobs enqueue <task> [flags] queue a maintenance task for the worker
  jobs stats [-json]          print queue depths
  jobs scheduled [-n N]       list scheduled tasks

tasks: reconcile, integrity, purge
`

var taskAliases = map[string]string{
	"reconcile": jobs.TaskInventoryReconcile,
	"integrity": jobs.TaskLedgerIntegrity,
	"purge":     jobs.TaskIdempotencyPurge,
}

// errFindings marks a task that ran but reported drift or unbalanced entries.
var errFindings = errors.New("task reported findings")

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, app.LoadConfig); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		slog.Default().Error("odyssey", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, load func() (*app.Config, error)) error {
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return flag.ErrHelp
	case "serve", "migrate", "jobs":
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	cfg, err := load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	switch cmd {
	case "serve":
		return serve(ctx, cfg, logger)
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		fs.SetOutput(out)
		status := fs.Bool("status", false, "print migration status instead of applying")
		if err := fs.Parse(args); err != nil {
			return err
		}
		rt, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()
		if *status {
			return rt.MigrationStatus(ctx)
		}
		if err := rt.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
		return nil
	default:
		return runJobs(ctx, cfg, logger, args, out)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	rt, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if cfg.MigrateOnStart {
		if err := rt.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      rt.Router(),
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	return nil
}

type taskFlags struct {
	itemID      int64
	warehouseID int64
	from        string
	to          string
	retention   time.Duration
}

func (f *taskFlags) bind(fs *flag.FlagSet) {
	fs.Int64Var(&f.itemID, "item", 0, "item id (reconcile)")
	fs.Int64Var(&f.warehouseID, "warehouse", 0, "warehouse id (reconcile)")
	fs.StringVar(&f.from, "from", "", "first journal date, YYYY-MM-DD (integrity)")
	fs.StringVar(&f.to, "to", "", "last journal date, YYYY-MM-DD (integrity)")
	fs.DurationVar(&f.retention, "retention", 0, "idempotency key retention (purge)")
}

func (f taskFlags) options() (cli.TriggerOptions, error) {
	opts := cli.TriggerOptions{ItemID: f.itemID, WarehouseID: f.warehouseID, Retention: f.retention}
	var err error
	if opts.From, err = parseDay(f.from); err != nil {
		return opts, err
	}
	if opts.To, err = parseDay(f.to); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseDay(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", raw)
	}
	return &day, nil
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("jobs: subcommand required")
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "run", "enqueue":
		if len(args) == 0 {
			return fmt.Errorf("jobs %s: task required", sub)
		}
		task, ok := taskAliases[args[0]]
		if !ok {
			task = args[0]
		}
		fs := flag.NewFlagSet("jobs "+sub, flag.ContinueOnError)
		fs.SetOutput(out)
		var tf taskFlags
		tf.bind(fs)
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		opts, err := tf.options()
		if err != nil {
			return err
		}
		if sub == "enqueue" {
			return enqueue(ctx, cfg, task, opts, out)
		}
		rt, err := app.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rt.Close()
		return runTask(ctx, rt, task, opts, out)
	case "stats", "scheduled":
		fs := flag.NewFlagSet("jobs "+sub, flag.ContinueOnError)
		fs.SetOutput(out)
		asJSON := fs.Bool("json", false, "print JSON")
		size := fs.Int("n", 10, "page size")
		if err := fs.Parse(args); err != nil {
			return err
		}
		helper := cli.NewJobsCLI(cfg.AsynqOpts())
		defer func() {
			if err := helper.Close(); err != nil {
				logger.Warn("jobs cli close", slog.Any("error", err))
			}
		}()
		if sub == "scheduled" {
			tasks, err := helper.ListScheduled(ctx, *size)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Fprintf(out, "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
			}
			return nil
		}
		stats, err := helper.InspectQueues(ctx)
		if err != nil {
			return err
		}
		return cli.WriteStats(out, stats, *asJSON)
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", sub)
	}
}

func enqueue(ctx context.Context, cfg *app.Config, task string, opts cli.TriggerOptions, out io.Writer) error {
	helper := cli.NewJobsCLI(cfg.AsynqOpts())
	defer helper.Close()
	info, err := helper.Trigger(ctx, task, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return nil
}

func runTask(ctx context.Context, rt *app.Runtime, task string, opts cli.TriggerOptions, out io.Writer) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	switch task {
	case jobs.TaskInventoryReconcile:
		if (opts.ItemID == 0) != (opts.WarehouseID == 0) {
			return errors.New("reconcile: -item and -warehouse must be given together")
		}
		job := jobs.NewReconcileJob(rt.Inventory, rt.Logger, rt.JobMetrics)
		summary, err := job.Run(ctx, jobs.ReconcilePayload{ItemID: opts.ItemID, WarehouseID: opts.WarehouseID})
		if err != nil {
			return err
		}
		if err := enc.Encode(map[string]any{"checked": summary.Checked, "unbalanced": summary.Unbalanced}); err != nil {
			return err
		}
		if len(summary.Unbalanced) > 0 {
			return fmt.Errorf("%w: %w", errFindings, jobs.ErrReconcileDrift)
		}
		return nil
	case jobs.TaskLedgerIntegrity:
		job := jobs.NewLedgerIntegrityJob(rt.Ledger, rt.Logger, rt.JobMetrics)
		report, err := job.Run(ctx, jobs.LedgerIntegrityPayload{From: opts.From, To: opts.To})
		if err != nil {
			return err
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.Balanced() {
			return fmt.Errorf("%w: %w", errFindings, jobs.ErrLedgerUnbalanced)
		}
		return nil
	case jobs.TaskIdempotencyPurge:
		retention := opts.Retention
		if retention <= 0 {
			retention = rt.Config.IdempotencyRetention
		}
		if retention <= 0 {
			retention = jobs.DefaultIdempotencyRetention
		}
		job := jobs.NewIdempotencyPurgeJob(rt.Purger, rt.Logger, rt.JobMetrics)
		removed, err := job.Run(ctx, retention)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]any{"removed": removed, "retention": retention.String()})
	default:
		return fmt.Errorf("unsupported task %q", task)
	}
}
