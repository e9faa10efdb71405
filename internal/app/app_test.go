package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/shared"
)

func TestConfigValidate(t *testing.T) {
	cfg := Config{Storage: StorageMemory, LockBackend: LockMemory}
	require.NoError(t, cfg.Validate())
	require.False(t, cfg.NeedsRedis())

	cfg.Storage = "sqlite"
	require.Error(t, cfg.Validate())

	cfg = Config{Storage: StoragePostgres, LockBackend: LockRedis, RedisAddr: "localhost:6379", PGDSN: "postgres://x"}
	require.NoError(t, cfg.Validate())
	require.True(t, cfg.NeedsRedis())

	cfg.LockBackend = "zookeeper"
	require.Error(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLevel("debug").String())
	require.Equal(t, "WARN", parseLevel(" Warning ").String())
	require.Equal(t, "INFO", parseLevel("").String())
}

func TestActorMiddleware(t *testing.T) {
	var seen int64
	handler := ActorMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "42")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualValues(t, 42, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(ActorHeader, "abc")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

type apiClient struct {
	t      *testing.T
	router http.Handler
}

func (c apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(ActorHeader, "7")
	rr := httptest.NewRecorder()
	c.router.ServeHTTP(rr, req)
	return rr
}

type journalLine struct {
	AccountCode string          `json:"account_code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
}

type moveResponse struct {
	Move struct {
		ID        string          `json:"id"`
		UnitCost  decimal.Decimal `json:"unit_cost"`
		CreatedBy int64           `json:"created_by"`
	} `json:"move"`
	Journal *struct {
		Lines []journalLine `json:"lines"`
	} `json:"journal"`
}

func TestRouterPostsSaleOnMemoryRuntime(t *testing.T) {
	cfg := &Config{Storage: StorageMemory, LockBackend: LockMemory, AppEnv: "test"}
	rt, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer rt.Close()
	api := apiClient{t: t, router: rt.Router()}

	rr := api.do(http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = api.do(http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(http.MethodPost, "/api/v1/items", map[string]any{"code": "WIDGET", "name": "Widget", "base_unit": "EA"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var item struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))

	for _, in := range []struct{ qty, cost string }{{"10", "2"}, {"5", "4"}} {
		rr = api.do(http.MethodPost, "/api/v1/inventory/inbound", map[string]any{
			"item_id": item.ID, "warehouse_id": 1, "qty": in.qty, "unit_cost": in.cost,
		})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr = api.do(http.MethodPost, "/api/v1/inventory/outbound", map[string]any{
		"item_id": item.ID, "warehouse_id": 1, "qty": "12",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var sale moveResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sale))
	require.True(t, sale.Move.UnitCost.Round(2).Equal(decimal.RequireFromString("2.33")), sale.Move.UnitCost.String())
	require.EqualValues(t, 7, sale.Move.CreatedBy)
	require.NotNil(t, sale.Journal)
	require.Len(t, sale.Journal.Lines, 2)
	require.Equal(t, "5000", sale.Journal.Lines[0].AccountCode)
	require.True(t, sale.Journal.Lines[0].Debit.Equal(decimal.RequireFromString("27.96")))
	require.Equal(t, "1400", sale.Journal.Lines[1].AccountCode)
	require.True(t, sale.Journal.Lines[1].Credit.Equal(decimal.RequireFromString("27.96")))

	rr = api.do(http.MethodPost, "/api/v1/inventory/outbound", map[string]any{
		"item_id": item.ID, "warehouse_id": 1, "qty": "100",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())

	rr = api.do(http.MethodGet, fmt.Sprintf("/api/v1/inventory/reconcile?item_id=%d&warehouse_id=1", item.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(http.MethodGet, "/api/v1/accounting/integrity", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `odyssey_costing_moves_total{direction="out",type="SALE"} 1`)
	require.Contains(t, rr.Body.String(), `odyssey_costing_insufficient_stock_total{type="SALE"} 1`)
}

func TestJobHandlersRunOnMemoryRuntime(t *testing.T) {
	rt, err := Build(context.Background(), &Config{Storage: StorageMemory, LockBackend: LockMemory}, nil)
	require.NoError(t, err)
	defer rt.Close()

	handlers := rt.JobHandlers()
	require.Len(t, handlers, 3)
	for _, h := range handlers {
		require.NotNil(t, h.Handler, h.Type)
	}
	require.NoError(t, rt.Migrate(context.Background()))
}
