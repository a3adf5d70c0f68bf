package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/checkout"
)

type OrderBuilder interface {
	Build(ctx context.Context, req checkout.Request) (checkout.Order, error)
}

type CheckoutHandler struct {
	Checkout OrderBuilder
	Logger   *zap.SugaredLogger
}

func (h *CheckoutHandler) Register(r chi.Router) {
	r.Post("/api/checkout/whatsapp", h.whatsapp)
}

func (h *CheckoutHandler) whatsapp(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := decodeJSON(r, &req, 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Checkout.Build(ctx, req)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
