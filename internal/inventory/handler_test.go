package inventory_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-costing/internal/inventory"
	"github.com/odyssey-erp/odyssey-costing/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-costing/internal/units"
)

func newHandlerRouter(f *fixture) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	inventory.NewHandler(logger, f.svc).MountRoutes(r)
	return r
}

func call(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func requireProblem(t *testing.T, rr *httptest.ResponseRecorder, status int, title string) {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, title, problem.Title)
}

func TestHandlerMapsDomainErrors(t *testing.T) {
	f := newFixture(t)
	router := newHandlerRouter(f)
	f.receive(t, f.flour, 1, "2", units.Kilogram, "1500")

	rr := call(router, http.MethodPost, "/outbound",
		fmt.Sprintf(`{"item_id":%d,"warehouse_id":1,"qty":"1","unit":"L"}`, f.flour.ID))
	requireProblem(t, rr, http.StatusBadRequest, "Incompatible Units")

	rr = call(router, http.MethodPost, "/outbound",
		fmt.Sprintf(`{"item_id":%d,"warehouse_id":1,"qty":"1","unit":"FURLONG"}`, f.flour.ID))
	requireProblem(t, rr, http.StatusBadRequest, "Unknown Unit")

	_, err := f.store.Periods().Upsert(f.ctx, periods.Period{
		Code:      "2026-02",
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		Status:    periods.PeriodStatusLocked,
	})
	require.NoError(t, err)
	rr = call(router, http.MethodPost, "/inbound",
		fmt.Sprintf(`{"item_id":%d,"warehouse_id":1,"qty":"5","unit_cost":"2","move_date":"2026-02-10T12:00:00Z"}`, f.sugar.ID))
	requireProblem(t, rr, http.StatusConflict, "Period Locked")
	require.True(t, f.onHand(t, f.sugar, 1).IsZero())

	transfer, err := f.svc.RecordTransfer(f.ctx, inventory.TransferInput{
		ItemID: f.flour.ID, FromWarehouseID: 1, ToWarehouseID: 2, Qty: dec("0.5"),
	})
	require.NoError(t, err)
	rr = call(router, http.MethodPost, "/moves/"+transfer.Out.Move.ID.String()+"/reverse", "")
	requireProblem(t, rr, http.StatusConflict, "Not Reversible")

	missing := uuid.NewString()
	rr = call(router, http.MethodGet, "/moves/"+missing, "")
	requireProblem(t, rr, http.StatusNotFound, "Move Not Found")
	rr = call(router, http.MethodPost, "/moves/"+missing+"/reverse", "")
	requireProblem(t, rr, http.StatusNotFound, "Move Not Found")

	rr = call(router, http.MethodPost, "/outbound",
		fmt.Sprintf(`{"item_id":%d,"warehouse_id":1,"qty":"100"}`, f.flour.ID))
	requireProblem(t, rr, http.StatusUnprocessableEntity, "Insufficient Stock")

	rr = call(router, http.MethodPost, "/outbound", `{"item_id":999,"warehouse_id":1,"qty":"1"}`)
	requireProblem(t, rr, http.StatusNotFound, "Item Not Found")
}
