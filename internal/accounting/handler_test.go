package accounting

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-costing/internal/accounting/periods"
)

type periodRows struct {
	rows []periods.Period
}

func (p *periodRows) List(context.Context) ([]periods.Period, error) {
	return p.rows, nil
}

func (p *periodRows) Upsert(_ context.Context, period periods.Period) (periods.Period, error) {
	for i := range p.rows {
		if p.rows[i].Code == period.Code {
			p.rows[i] = period
			return period, nil
		}
	}
	p.rows = append(p.rows, period)
	return period, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(logger, NewService(newStubTx(), periods.NewGuard(false)), periods.NewService(&periodRows{}))
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func send(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerJournalLookup(t *testing.T) {
	router := newTestRouter(t)

	rr := send(router, http.MethodGet, "/journals/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = send(router, http.MethodGet, "/journals/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = send(router, http.MethodGet, "/integrity", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerPeriodTransitions(t *testing.T) {
	router := newTestRouter(t)
	body := func(status string) string {
		return `{"start_date":"2024-03-01","end_date":"2024-03-31","status":"` + status + `"}`
	}

	rr := send(router, http.MethodPut, "/periods/2024-03", body("LOCKED"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = send(router, http.MethodPut, "/periods/2024-03", body("OPEN"))
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

	rr = send(router, http.MethodPut, "/periods/2024-03?override=1", body("CLOSED"))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = send(router, http.MethodPut, "/periods/2024-03", body("ARCHIVED"))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = send(router, http.MethodGet, "/periods", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"CLOSED"`)
}
