package invoices

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHandlerInvalidatesAggregatesOnWrites(t *testing.T) {
	repo := seedLedger()
	invalidations := 0
	h := NewHandler(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewService(repo),
		func(context.Context) { invalidations++ },
	)
	router := chi.NewRouter()
	h.MountRoutes(router)

	body := `{
		"invoiceNo": "FTR-2026-009",
		"type": "Sales",
		"customerId": "cust-1",
		"date": "2026-08-01T00:00:00Z",
		"items": [{"stockId": "stock-1", "quantity": 2, "unitPrice": 100}]
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 1, invalidations)

	var inv Invoice
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))

	payment := `{
		"amount": 50,
		"date": "2026-08-02T00:00:00Z",
		"paymentMethod": "CashBox",
		"sourceId": "box-1"
	}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID+"/payments", strings.NewReader(payment)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, 2, invalidations)

	// Reads never drop the cache.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, invalidations)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invoices/"+inv.ID+"/cancel", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, invalidations)
}
