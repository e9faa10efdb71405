package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/observability"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-costing/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InventoryHandler  *inventory.Handler
	AccountingHandler *accounting.Handler
	ItemsHandler      *items.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	// Ready reports backend health for /readyz. Nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(r); err != nil {
				params.Logger.Warn("readiness check failed", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Not ready", err.Error())
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.AllowContentType("application/json"))
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.AccountingHandler != nil {
			r.Route("/accounting", params.AccountingHandler.MountRoutes)
		}
		if params.ItemsHandler != nil {
			r.Route("/items", params.ItemsHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}

// Router wires the runtime services into the HTTP router.
func (rt *Runtime) Router() http.Handler {
	var inspector jobs.QueueInspector
	if rt.Config.JobsEnabled {
		ins := asynq.NewInspector(rt.RedisOpts())
		rt.onClose(func() {
			if err := ins.Close(); err != nil {
				rt.Logger.Warn("inspector close", slog.Any("error", err))
			}
		})
		inspector = ins
	}
	return NewRouter(RouterParams{
		Logger:            rt.Logger,
		Config:            rt.Config,
		InventoryHandler:  inventory.NewHandler(rt.Logger, rt.Inventory),
		AccountingHandler: accounting.NewHandler(rt.Logger, rt.Ledger, rt.Periods),
		ItemsHandler:      items.NewHandler(rt.Logger, rt.Items),
		JobHandler:        jobs.NewHandler(inspector, rt.Logger),
		Metrics:           rt.Metrics,
		Ready:             rt.ready,
	})
}

func (rt *Runtime) ready(r *http.Request) error {
	if rt.Pool != nil {
		if err := rt.Pool.Ping(r.Context()); err != nil {
			return err
		}
	}
	if rt.Redis != nil {
		if err := rt.Redis.Ping(r.Context()).Err(); err != nil {
			return err
		}
	}
	return nil
}
