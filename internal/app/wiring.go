package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/integration"
	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-costing/internal/jobs"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/observability"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/db"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/lock"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/storage/memory"
	"github.com/odyssey-erp/odyssey-costing/jobs"
)

// Runtime holds the wired services shared by the HTTP server, the worker
// and the CLI.
type Runtime struct {
	Config     *Config
	Logger     *slog.Logger
	Metrics    *observability.Metrics
	JobMetrics *jobmetrics.Metrics

	Pool   *pgxpool.Pool
	Memory *memory.Store
	Redis  *redis.Client
	Queue  *jobs.Client

	Items     *items.Service
	Periods   *periods.Service
	Ledger    *accounting.Service
	Inventory *inventory.Service
	Purger    jobs.Purger

	closers []func()
}

// Build connects the configured backends and wires every service.
func Build(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}
	rt.JobMetrics = jobmetrics.NewMetrics(rt.Metrics.Registerer())

	resolver, err := mappings.Load(cfg.AccountsFile)
	if err != nil {
		return nil, err
	}

	if cfg.NeedsRedis() {
		rt.Redis, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return nil, err
		}
		rt.onClose(func() {
			if err := rt.Redis.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
	}

	var (
		inventoryRepo inventory.RepositoryPort
		ledgerRepo    accounting.RepositoryPort
		itemRepo      items.Repository
		periodRepo    periods.Repository
		auditor       inventory.AuditPort
	)
	switch cfg.Storage {
	case StoragePostgres:
		rt.Pool, err = db.New(ctx, cfg.PGDSN)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.onClose(rt.Pool.Close)
		policy := db.RetryPolicy{MaxRetries: cfg.TxMaxRetries, BaseDelay: cfg.TxRetryBase, MaxDelay: cfg.TxRetryMax}
		pgInventory := inventory.NewRepository(rt.Pool, policy)
		inventoryRepo = pgInventory
		rt.Purger = pgInventory
		ledgerRepo = accounting.NewRepository(rt.Pool)
		itemRepo = items.NewRepository(rt.Pool)
		periodRepo = periods.NewRepository(rt.Pool)
		auditor = shared.NewAuditLogger(rt.Pool)
	case StorageMemory:
		rt.Memory = memory.New()
		inventoryRepo = rt.Memory.Inventory()
		rt.Purger = rt.Memory
		ledgerRepo = rt.Memory.Ledger()
		itemRepo = rt.Memory.Items()
		periodRepo = rt.Memory.Periods()
		auditor = shared.NewLogAuditor(logger)
	default:
		return nil, fmt.Errorf("app: unknown storage %q", cfg.Storage)
	}

	var locker inventory.Locker = lock.NewKeyedMutex()
	if cfg.LockBackend == LockRedis {
		locker = lock.NewRedisLocker(rt.Redis, cfg.LockTTL, cfg.LockWait)
	}

	rt.Items = items.NewService(itemRepo)
	rt.Periods = periods.NewService(periodRepo)
	rt.Ledger = accounting.NewService(ledgerRepo, periods.NewGuard(cfg.RequirePeriod))
	hooks := integration.NewHooks(rt.Ledger, resolver)
	rt.Inventory = inventory.NewService(inventoryRepo, rt.Items, locker, hooks, inventory.ServiceConfig{
		AllowNegativeDefault: cfg.AllowNegativeDefault,
	}).
		WithAudit(auditor).
		WithMetrics(rt.Metrics.Costing()).
		WithLogger(logger)

	if rt.Redis != nil {
		rt.Inventory.WithCardCache(cache.NewVersioned(rt.Redis, "costing", cfg.CardCacheTTL))
	}

	if cfg.JobsEnabled {
		rt.Queue = jobs.NewClient(rt.RedisOpts())
		rt.onClose(func() {
			if err := rt.Queue.Close(); err != nil {
				logger.Warn("queue close", slog.Any("error", err))
			}
		})
		rt.Inventory.WithPublisher(jobs.NewReconcilePublisher(rt.Queue.Asynq()))
	}

	logger.Info("runtime ready",
		slog.String("storage", cfg.Storage),
		slog.String("locks", cfg.LockBackend),
		slog.Bool("jobs", cfg.JobsEnabled),
	)
	return rt, nil
}

// RedisOpts returns the asynq connection options for the configured Redis.
func (rt *Runtime) RedisOpts() asynq.RedisClientOpt {
	return rt.Config.AsynqOpts()
}

// Migrate applies schema migrations when running on Postgres.
func (rt *Runtime) Migrate(ctx context.Context) error {
	if rt.Pool == nil {
		return nil
	}
	return db.Migrate(ctx, rt.Pool)
}

// MigrationStatus prints applied and pending migrations when running on
// Postgres.
func (rt *Runtime) MigrationStatus(ctx context.Context) error {
	if rt.Pool == nil {
		return nil
	}
	return db.MigrationStatus(ctx, rt.Pool)
}

// Close releases every backend in reverse order of acquisition.
func (rt *Runtime) Close() {
	if rt == nil {
		return
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func (rt *Runtime) onClose(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// JobHandlers builds the worker's task handlers over the runtime services.
func (rt *Runtime) JobHandlers() []jobs.TaskHandler {
	reconcile := jobs.NewReconcileJob(rt.Inventory, rt.Logger, rt.JobMetrics)
	integrity := jobs.NewLedgerIntegrityJob(rt.Ledger, rt.Logger, rt.JobMetrics)
	purge := jobs.NewIdempotencyPurgeJob(rt.Purger, rt.Logger, rt.JobMetrics)
	return []jobs.TaskHandler{
		{Type: jobs.TaskInventoryReconcile, Handler: reconcile.Handle},
		{Type: jobs.TaskLedgerIntegrity, Handler: integrity.Handle},
		{Type: jobs.TaskIdempotencyPurge, Handler: purge.Handle},
	}
}
