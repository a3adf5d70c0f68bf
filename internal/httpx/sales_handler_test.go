package httpx_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/httpx"
	"github.com/ariefcatur/beyou-storefront/internal/telemetry"
)

// shelf is a catalog.SaleStore over an in-memory stock table.
type shelf struct {
	mu    sync.Mutex
	stock map[string]int
	price map[string]int64
	sales []catalog.Sale
	err   error
}

func (s *shelf) RecordSale(_ context.Context, productID string, qty int) (catalog.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if qty < 1 {
		return catalog.Sale{}, catalog.ErrInvalidQuantity
	}
	if s.err != nil {
		return catalog.Sale{}, s.err
	}
	left, ok := s.stock[productID]
	if !ok {
		return catalog.Sale{}, catalog.ErrNotFound
	}
	if left < qty {
		return catalog.Sale{}, fmt.Errorf("%w: %d left", catalog.ErrInsufficientStock, left)
	}
	s.stock[productID] = left - qty
	sale := catalog.Sale{
		ID:                    uuid.NewString(),
		ProductID:             productID,
		QuantitySold:          qty,
		SalePricePerUnitCents: s.price[productID],
		TotalAmountCents:      s.price[productID] * int64(qty),
		SaleDate:              time.Now().UTC(),
	}
	s.sales = append(s.sales, sale)
	return sale, nil
}

func (s *shelf) ListSales(_ context.Context, limit int) ([]catalog.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.sales) {
		limit = len(s.sales)
	}
	return append([]catalog.Sale(nil), s.sales[:limit]...), nil
}

func salesRouter(t *testing.T, store *shelf, notes *recorder) http.Handler {
	t.Helper()
	log := zap.NewNop().Sugar()
	tel := telemetry.Noop()
	sales, err := catalog.NewSales(store, notes, log, tel.Tracer, tel.Meter)
	require.NoError(t, err)

	r := httpx.NewRouter(log)
	h := &httpx.SalesHandler{Sales: sales, Logger: log}
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(httpx.AdminAuth(adminToken))
		h.RegisterAdmin(r)
	})
	return r
}

func TestRecordSale_StatusMapping(t *testing.T) {
	// given: P1 has 5 units at 150.000
	store := &shelf{stock: map[string]int{"P1": 5}, price: map[string]int64{"P1": 15000000}}
	notes := &recorder{}
	r := salesRouter(t, store, notes)

	cases := []struct {
		name  string
		body  string
		code  int
		error string
	}{
		{"sell all", `{"productId":"P1","quantitySold":5}`, http.StatusCreated, ""},
		{"sold out", `{"productId":"P1","quantitySold":1}`, http.StatusBadRequest, "insufficient stock"},
		{"unknown product", `{"productId":"P9","quantitySold":1}`, http.StatusNotFound, "not found"},
		{"zero quantity", `{"productId":"P1","quantitySold":0}`, http.StatusBadRequest, "quantity"},
		{"missing product", `{"quantitySold":1}`, http.StatusBadRequest, "productId"},
		{"quantity as string", `{"productId":"P1","quantitySold":"2"}`, http.StatusBadRequest, "invalid json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, "/api/admin/sales", "application/json", strings.NewReader(tc.body))
			require.Equal(t, tc.code, rec.Code, rec.Body.String())
			if tc.error != "" {
				var out map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
				require.Contains(t, out["error"], tc.error)
			}
		})
	}

	// then: exactly one sale, stock at zero, one invalidation
	require.Equal(t, 0, store.stock["P1"])
	require.Len(t, store.sales, 1)
	require.Equal(t, int64(75000000), store.sales[0].TotalAmountCents)
	ev := notes.Events()
	require.Len(t, ev, 1)
	require.Equal(t, catalog.EventSaleRecorded, ev[0].Event)
	require.Equal(t, catalog.SalePaths("P1"), ev[0].Paths)
	require.NotNil(t, ev[0].Sale)
}

func TestRecordSale_InternalErrorIsGeneric(t *testing.T) {
	store := &shelf{stock: map[string]int{"P1": 5}, err: errors.New("connection reset by peer")}
	r := salesRouter(t, store, &recorder{})

	rec := do(t, r, http.MethodPost, "/api/admin/sales", "application/json", jsonBody(`{"productId":"P1","quantitySold":1}`))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestRecordSale_SuccessBody(t *testing.T) {
	store := &shelf{stock: map[string]int{"P1": 5}, price: map[string]int64{"P1": 15000000}}
	r := salesRouter(t, store, &recorder{})

	rec := do(t, r, http.MethodPost, "/api/admin/sales", "application/json", jsonBody(`{"productId":"P1","quantitySold":2}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	var out httpx.RecordSaleResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "Sale recorded", out.Message)
	require.Equal(t, 2, out.Sale.QuantitySold)
	require.Equal(t, int64(30000000), out.Sale.TotalAmountCents)
}

func TestListSales_Limit(t *testing.T) {
	store := &shelf{stock: map[string]int{"P1": 10}, price: map[string]int64{"P1": 100}}
	r := salesRouter(t, store, &recorder{})
	for i := 0; i < 3; i++ {
		rec := do(t, r, http.MethodPost, "/api/admin/sales", "application/json", jsonBody(`{"productId":"P1","quantitySold":1}`))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, r, http.MethodGet, "/api/admin/sales?limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sales []catalog.Sale
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sales))
	require.Len(t, sales, 2)

	rec = do(t, r, http.MethodGet, "/api/admin/sales?limit=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListSales_EmptyIsArray(t *testing.T) {
	r := salesRouter(t, &shelf{}, &recorder{})

	rec := do(t, r, http.MethodGet, "/api/admin/sales", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}
