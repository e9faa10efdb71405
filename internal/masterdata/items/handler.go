package items

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-costing/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-costing/internal/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

var errorMappings = []httpx.StatusMapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Item Not Found"},
	{Err: ErrDuplicateCode, Status: http.StatusConflict, Title: "Duplicate"},
	{Err: ErrImmutableUnit, Status: http.StatusConflict, Title: "Immutable Unit"},
	{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrUnitKindMismatch, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: units.ErrUnknownUnit, Status: http.StatusBadRequest, Title: "Unknown Unit"},
}

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type itemRequest struct {
	Code             string `json:"code" validate:"required,max=64"`
	Name             string `json:"name" validate:"required,max=200"`
	BaseUnit         string `json:"base_unit"`
	DisplayUnit      string `json:"display_unit"`
	UnitKind         string `json:"unit_kind" validate:"omitempty,oneof=COUNT WEIGHT VOLUME LENGTH AREA"`
	InventoryAccount string `json:"inventory_account" validate:"max=32"`
	ExpenseAccount   string `json:"expense_account" validate:"max=32"`
	AllowNegative    bool   `json:"allow_negative"`
}

func (req itemRequest) toItem() (Item, error) {
	item := Item{
		Code:             req.Code,
		Name:             req.Name,
		UnitKind:         units.Family(req.UnitKind),
		InventoryAccount: req.InventoryAccount,
		ExpenseAccount:   req.ExpenseAccount,
		AllowNegative:    req.AllowNegative,
	}
	var err error
	if req.BaseUnit != "" {
		if item.BaseUnit, err = units.Parse(req.BaseUnit); err != nil {
			return Item{}, err
		}
	}
	if req.DisplayUnit != "" {
		if item.DisplayUnit, err = units.Parse(req.DisplayUnit); err != nil {
			return Item{}, err
		}
	}
	return item, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Search: q.Get("search"),
		Kind:   units.Family(q.Get("kind")),
		Page:   httpx.QueryInt(q, "page", 1),
		Limit:  httpx.QueryInt(q, "limit", 50),
	}
	list, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items":      list,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	item, err := req.toItem()
	if err != nil {
		h.fail(w, err)
		return
	}
	created, err := h.service.Create(r.Context(), item)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req itemRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	item, err := req.toItem()
	if err != nil {
		h.fail(w, err)
		return
	}
	updated, err := h.service.Update(r.Context(), id, item)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if _, ok := httpx.Classify(err, errorMappings...); !ok {
		h.logger.Error("items request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}
