package httpx

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
)

type SalesRecorder interface {
	Record(ctx context.Context, productID string, qty int) (catalog.Sale, error)
	List(ctx context.Context, limit int) ([]catalog.Sale, error)
}

type SalesHandler struct {
	Sales  SalesRecorder
	Logger *zap.SugaredLogger
}

type RecordSaleReq struct {
	ProductID    string `json:"productId"`
	QuantitySold int    `json:"quantitySold"`
}

type RecordSaleResp struct {
	Message string       `json:"message"`
	Sale    catalog.Sale `json:"sale"`
}

func (h *SalesHandler) RegisterAdmin(r chi.Router) {
	r.Post("/sales", h.recordSale)
	r.Get("/sales", h.listSales)
}

func (h *SalesHandler) recordSale(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleReq
	if err := decodeJSON(r, &req, 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	// the sale transaction runs to commit or rollback even if the client goes away
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	defer cancel()

	sale, err := h.Sales.Record(ctx, req.ProductID, req.QuantitySold)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordSaleResp{Message: "Sale recorded", Sale: sale})
}

func (h *SalesHandler) listSales(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sales, err := h.Sales.List(ctx, limit)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	if sales == nil {
		sales = []catalog.Sale{}
	}
	writeJSON(w, http.StatusOK, sales)
}
