package accounting

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/httpx"
)

var errorMappings = []httpx.StatusMapping{
	{Err: shared.ErrJournalNotFound, Status: http.StatusNotFound, Title: "Journal Not Found"},
	{Err: shared.ErrPeriodLocked, Status: http.StatusConflict, Title: "Period Locked"},
	{Err: shared.ErrInvalidPeriod, Status: http.StatusBadRequest, Title: "Invalid Period"},
	{Err: shared.ErrInvalidStatus, Status: http.StatusConflict, Title: "Invalid Status Transition"},
}

// Handler serves read-only ledger endpoints and period maintenance.
type Handler struct {
	logger  *slog.Logger
	service *Service
	periods *periods.Service
}

// NewHandler builds the accounting HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, periodService *periods.Service) *Handler {
	return &Handler{logger: logger, service: service, periods: periodService}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/journals", h.listJournals)
	r.Get("/journals/{id}", h.getJournal)
	r.Get("/trial-balance", h.trialBalance)
	r.Get("/integrity", h.integrity)
	if h.periods != nil {
		r.Get("/periods", h.listPeriods)
		r.Put("/periods/{code}", h.upsertPeriod)
	}
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) listJournals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := JournalFilter{SourceType: q.Get("source_type"), SourceID: q.Get("source_id")}
	var err error
	if filter.From, err = httpx.ParseDate(q.Get("from"), false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.ParseDate(q.Get("to"), true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter.Limit = httpx.QueryInt(q, "limit", 100)
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": entries})
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, err := httpx.ParseDate(r.URL.Query().Get("as_of"), true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.TrialBalance(r.Context(), asOf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": rows})
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.CheckIntegrity(r.Context(), JournalFilter{})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if !report.Balanced() {
		status = http.StatusConflict
	}
	httpx.JSON(w, status, report)
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	list, err := h.periods.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": list})
}

type periodRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,oneof=OPEN CLOSED LOCKED"`
}

func (h *Handler) upsertPeriod(w http.ResponseWriter, r *http.Request) {
	var req periodRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	period := periods.Period{
		Code:      chi.URLParam(r, "code"),
		StartDate: start,
		EndDate:   end,
		Status:    periods.PeriodStatus(req.Status),
	}
	upsert := h.periods.Upsert
	if r.URL.Query().Get("override") == "1" {
		upsert = h.periods.Override
	}
	period, err := upsert(r.Context(), period)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, period)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := httpx.Classify(err, errorMappings...); !ok && !errors.Is(err, r.Context().Err()) {
		h.logger.Error("accounting request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}
