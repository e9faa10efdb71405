package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting"
	acctshared "github.com/odyssey-erp/odyssey-costing/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-costing/internal/masterdata/items"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

var errorMappings = []httpx.StatusMapping{
	{Err: ErrMoveNotFound, Status: http.StatusNotFound, Title: "Move Not Found"},
	{Err: ErrLayerNotFound, Status: http.StatusNotFound, Title: "Layer Not Found"},
	{Err: items.ErrNotFound, Status: http.StatusNotFound, Title: "Item Not Found"},
	{Err: acctshared.ErrJournalNotFound, Status: http.StatusNotFound, Title: "Journal Not Found"},
	{Err: ErrInsufficientStock, Status: http.StatusUnprocessableEntity, Title: "Insufficient Stock"},
	{Err: acctshared.ErrPeriodLocked, Status: http.StatusConflict, Title: "Period Locked"},
	{Err: acctshared.ErrSourceConflict, Status: http.StatusConflict, Title: "Already Posted"},
	{Err: acctshared.ErrSourceAlreadyLinked, Status: http.StatusConflict, Title: "Already Posted"},
	{Err: ErrInvalidMoveStatus, Status: http.StatusConflict, Title: "Invalid Status"},
	{Err: ErrNotReversible, Status: http.StatusConflict, Title: "Not Reversible"},
	{Err: ErrLayerConsumed, Status: http.StatusConflict, Title: "Layer Consumed"},
	{Err: ErrUnsupportedMove, Status: http.StatusConflict, Title: "Unsupported Move"},
	{Err: units.ErrIncompatibleUnits, Status: http.StatusBadRequest, Title: "Incompatible Units"},
	{Err: units.ErrUnknownUnit, Status: http.StatusBadRequest, Title: "Unknown Unit"},
	{Err: ErrInvalidQuantity, Status: http.StatusBadRequest, Title: "Invalid Quantity"},
	{Err: ErrInvalidUnitCost, Status: http.StatusBadRequest, Title: "Invalid Unit Cost"},
	{Err: ErrInvalidMoveType, Status: http.StatusBadRequest, Title: "Invalid Move Type"},
	{Err: ErrInvalidComponent, Status: http.StatusBadRequest, Title: "Invalid Component"},
	{Err: ErrInvalidWarehouse, Status: http.StatusBadRequest, Title: "Invalid Warehouse"},
	{Err: acctshared.ErrMappingNotFound, Status: http.StatusBadRequest, Title: "Account Mapping Missing"},
}

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/inbound", h.handleInbound)
	r.Post("/outbound", h.handleOutbound)
	r.Post("/adjustments", h.handleAdjustment)
	r.Post("/transfers", h.handleTransfer)
	r.Post("/production", h.handleProduction)

	r.Get("/moves", h.listMoves)
	r.Get("/moves/{id}", h.getMove)
	r.Post("/moves/{id}/post", h.postDraft)
	r.Post("/moves/{id}/reverse", h.reverse)
	r.Post("/moves/{id}/journal", h.postJournal)

	r.Get("/layers", h.listLayers)
	r.Get("/stock-card", h.handleStockCard)
	r.Get("/reconcile", h.reconcile)
}

type accountsRequest struct {
	Inventory string `json:"inventory" validate:"max=32"`
	Expense   string `json:"expense" validate:"max=32"`
	Offset    string `json:"offset" validate:"max=32"`
}

type postingRequest struct {
	SkipJournal bool             `json:"skip_journal"`
	Accounts    *accountsRequest `json:"accounts"`
}

func (p postingRequest) options() PostingOptions {
	opts := PostingOptions{Skip: p.SkipJournal}
	if p.Accounts != nil {
		opts.Accounts = &accounting.AccountMap{Inventory: p.Accounts.Inventory, Expense: p.Accounts.Expense, Offset: p.Accounts.Offset}
	}
	return opts
}

type inboundRequest struct {
	ItemID      int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	Type        string          `json:"type" validate:"omitempty,oneof=PURCHASE ADJUSTMENT"`
	Qty         decimal.Decimal `json:"qty" validate:"gt=0"`
	Unit        string          `json:"unit"`
	UnitCost    decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	LotCode     string          `json:"lot_code" validate:"max=64"`
	ExpiresAt   *time.Time      `json:"expires_at"`
	MoveDate    time.Time       `json:"move_date"`
	RefType     string          `json:"ref_type" validate:"max=32"`
	RefID       string          `json:"ref_id" validate:"max=64"`
	Note        string          `json:"note" validate:"max=500"`
	postingRequest
}

type outboundRequest struct {
	ItemID        int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID   int64           `json:"warehouse_id" validate:"required,gt=0"`
	Type          string          `json:"type" validate:"omitempty,oneof=SALE ADJUSTMENT"`
	Qty           decimal.Decimal `json:"qty" validate:"gt=0"`
	Unit          string          `json:"unit"`
	AllowNegative *bool           `json:"allow_negative"`
	MoveDate      time.Time       `json:"move_date"`
	RefType       string          `json:"ref_type" validate:"max=32"`
	RefID         string          `json:"ref_id" validate:"max=64"`
	Note          string          `json:"note" validate:"max=500"`
	postingRequest
}

type adjustmentRequest struct {
	ItemID        int64            `json:"item_id" validate:"required,gt=0"`
	WarehouseID   int64            `json:"warehouse_id" validate:"required,gt=0"`
	Qty           decimal.Decimal  `json:"qty" validate:"required"`
	Unit          string           `json:"unit"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	AllowNegative *bool            `json:"allow_negative"`
	Draft         bool             `json:"draft"`
	MoveDate      time.Time        `json:"move_date"`
	RefType       string           `json:"ref_type" validate:"max=32"`
	RefID         string           `json:"ref_id" validate:"max=64"`
	Note          string           `json:"note" validate:"max=500"`
	postingRequest
}

type transferRequest struct {
	ItemID          int64           `json:"item_id" validate:"required,gt=0"`
	FromWarehouseID int64           `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int64           `json:"to_warehouse_id" validate:"required,gt=0,nefield=FromWarehouseID"`
	Qty             decimal.Decimal `json:"qty" validate:"gt=0"`
	Unit            string          `json:"unit"`
	MoveDate        time.Time       `json:"move_date"`
	RefID           string          `json:"ref_id" validate:"max=64"`
	Note            string          `json:"note" validate:"max=500"`
	postingRequest
}

type componentRequest struct {
	ItemID int64           `json:"item_id" validate:"required,gt=0"`
	Qty    decimal.Decimal `json:"qty" validate:"gt=0"`
	Unit   string          `json:"unit"`
}

type productionRequest struct {
	OutputItemID int64              `json:"output_item_id" validate:"required,gt=0"`
	WarehouseID  int64              `json:"warehouse_id" validate:"required,gt=0"`
	OutputQty    decimal.Decimal    `json:"output_qty" validate:"gt=0"`
	OutputUnit   string             `json:"output_unit"`
	Components   []componentRequest `json:"components" validate:"required,min=1,dive"`
	LotCode      string             `json:"lot_code" validate:"max=64"`
	ExpiresAt    *time.Time         `json:"expires_at"`
	MoveDate     time.Time          `json:"move_date"`
	RefID        string             `json:"ref_id" validate:"max=64"`
	Note         string             `json:"note" validate:"max=500"`
	postingRequest
}

type postDraftRequest struct {
	AllowNegative *bool `json:"allow_negative"`
	postingRequest
}

type reverseRequest struct {
	MoveDate time.Time `json:"move_date"`
	Note     string    `json:"note" validate:"max=500"`
	postingRequest
}

type journalRequest struct {
	Accounts *accountsRequest `json:"accounts"`
}

// parseUnit keeps an empty unit empty so the service falls back to the item
// display unit.
func parseUnit(raw string) (units.Unit, error) {
	if raw == "" {
		return "", nil
	}
	return units.Parse(raw)
}

func idempotencyKey(r *http.Request) string {
	return r.Header.Get("Idempotency-Key")
}

func (h *Handler) handleInbound(w http.ResponseWriter, r *http.Request) {
	var req inboundRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	unit, err := parseUnit(req.Unit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.RecordInbound(r.Context(), InboundInput{
		ItemID:         req.ItemID,
		WarehouseID:    req.WarehouseID,
		Type:           MoveType(req.Type),
		Qty:            req.Qty,
		Unit:           unit,
		UnitCost:       req.UnitCost,
		LotCode:        req.LotCode,
		ExpiresAt:      req.ExpiresAt,
		MoveDate:       req.MoveDate,
		RefType:        req.RefType,
		RefID:          req.RefID,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
		Posting:        req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleOutbound(w http.ResponseWriter, r *http.Request) {
	var req outboundRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	unit, err := parseUnit(req.Unit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.RecordOutbound(r.Context(), OutboundInput{
		ItemID:         req.ItemID,
		WarehouseID:    req.WarehouseID,
		Type:           MoveType(req.Type),
		Qty:            req.Qty,
		Unit:           unit,
		AllowNegative:  req.AllowNegative,
		MoveDate:       req.MoveDate,
		RefType:        req.RefType,
		RefID:          req.RefID,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
		Posting:        req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	unit, err := parseUnit(req.Unit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.RecordAdjustment(r.Context(), AdjustmentInput{
		ItemID:         req.ItemID,
		WarehouseID:    req.WarehouseID,
		Qty:            req.Qty,
		Unit:           unit,
		UnitCost:       req.UnitCost,
		AllowNegative:  req.AllowNegative,
		Draft:          req.Draft,
		MoveDate:       req.MoveDate,
		RefType:        req.RefType,
		RefID:          req.RefID,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
		Posting:        req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	unit, err := parseUnit(req.Unit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	result, err := h.service.RecordTransfer(r.Context(), TransferInput{
		ItemID:          req.ItemID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Qty:             req.Qty,
		Unit:            unit,
		MoveDate:        req.MoveDate,
		RefID:           req.RefID,
		Note:            req.Note,
		IdempotencyKey:  idempotencyKey(r),
		Posting:         req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) handleProduction(w http.ResponseWriter, r *http.Request) {
	var req productionRequest
	if !httpx.Bind(w, r, &req) {
		return
	}
	outUnit, err := parseUnit(req.OutputUnit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	components := make([]ComponentInput, 0, len(req.Components))
	for _, c := range req.Components {
		unit, err := parseUnit(c.Unit)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		components = append(components, ComponentInput{ItemID: c.ItemID, Qty: c.Qty, Unit: unit})
	}
	result, err := h.service.RecordProduction(r.Context(), ProductionInput{
		OutputItemID:   req.OutputItemID,
		WarehouseID:    req.WarehouseID,
		OutputQty:      req.OutputQty,
		OutputUnit:     outUnit,
		Components:     components,
		LotCode:        req.LotCode,
		ExpiresAt:      req.ExpiresAt,
		MoveDate:       req.MoveDate,
		RefID:          req.RefID,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
		Posting:        req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func moveID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) postDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := moveID(w, r)
	if !ok {
		return
	}
	var req postDraftRequest
	if r.ContentLength != 0 && !httpx.Bind(w, r, &req) {
		return
	}
	result, err := h.service.PostDraft(r.Context(), id, PostDraftInput{
		AllowNegative:  req.AllowNegative,
		IdempotencyKey: idempotencyKey(r),
		Posting:        req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, ok := moveID(w, r)
	if !ok {
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 && !httpx.Bind(w, r, &req) {
		return
	}
	result, err := h.service.Reverse(r.Context(), id, ReverseInput{
		MoveDate:       req.MoveDate,
		Note:           req.Note,
		IdempotencyKey: idempotencyKey(r),
		Posting:        req.options(),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	id, ok := moveID(w, r)
	if !ok {
		return
	}
	var req journalRequest
	if r.ContentLength != 0 && !httpx.Bind(w, r, &req) {
		return
	}
	entry, err := h.service.PostJournal(r.Context(), id, postingRequest{Accounts: req.Accounts}.options().Accounts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getMove(w http.ResponseWriter, r *http.Request) {
	id, ok := moveID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetMove(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

func (h *Handler) listMoves(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MoveFilter{Limit: httpx.QueryInt(q, "limit", 200)}
	var err error
	if raw := q.Get("item_id"); raw != "" {
		if filter.ItemID, err = httpx.QueryInt64(q, "item_id"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	if raw := q.Get("warehouse_id"); raw != "" {
		if filter.WarehouseID, err = httpx.QueryInt64(q, "warehouse_id"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	for _, t := range q["type"] {
		filter.Types = append(filter.Types, MoveType(t))
	}
	if filter.From, err = httpx.ParseDate(q.Get("from"), false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.ParseDate(q.Get("to"), true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	moves, err := h.service.GetMoves(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"moves": moves})
}

func stockKey(r *http.Request) (StockKey, error) {
	q := r.URL.Query()
	itemID, err := httpx.QueryInt64(q, "item_id")
	if err != nil {
		return StockKey{}, err
	}
	warehouseID, err := httpx.QueryInt64(q, "warehouse_id")
	if err != nil {
		return StockKey{}, err
	}
	return StockKey{ItemID: itemID, WarehouseID: warehouseID}, nil
}

func (h *Handler) listLayers(w http.ResponseWriter, r *http.Request) {
	key, err := stockKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	includeDepleted, _ := strconv.ParseBool(r.URL.Query().Get("include_depleted"))
	layers, err := h.service.GetLayers(r.Context(), key, includeDepleted)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"layers": layers})
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	key, err := stockKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	q := r.URL.Query()
	filter := StockCardFilter{ItemID: key.ItemID, WarehouseID: key.WarehouseID}
	if filter.Unit, err = parseUnit(q.Get("unit")); err != nil {
		h.fail(w, r, err)
		return
	}
	if filter.From, err = httpx.ParseDate(q.Get("from"), false); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if filter.To, err = httpx.ParseDate(q.Get("to"), true); err != nil {
		httpx.RespondError(w, err)
		return
	}
	card, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, card)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	key, err := stockKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.Reconcile(r.Context(), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if !report.Balanced {
		status = http.StatusConflict
	}
	httpx.JSON(w, status, report)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := httpx.Classify(err, errorMappings...); !ok {
		h.logger.Error("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}
