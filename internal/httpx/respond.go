package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/checkout"
	"github.com/ariefcatur/beyou-storefront/internal/images"
	"github.com/ariefcatur/beyou-storefront/internal/uploads"
)

var validate = validator.New()

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}

// statusFor maps domain errors to a status and a client-safe message. Unknown errors are 500
// with a generic message; the detail only goes to the log.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, catalog.ErrInsufficientStock):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, catalog.ErrInvalidQuantity):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict, err.Error()

	case errors.Is(err, uploads.ErrInvalidChunk):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, uploads.ErrChunkOutOfRange):
		return http.StatusBadRequest, "chunk index out of range"
	case errors.Is(err, uploads.ErrTotalMismatch):
		return http.StatusConflict, "total chunks mismatch"
	case errors.Is(err, uploads.ErrSessionUnknown):
		return http.StatusBadRequest, "unknown upload session: send totalChunks with the first chunk"

	case errors.Is(err, images.ErrUnsupportedType),
		errors.Is(err, images.ErrUnknownCategory),
		errors.Is(err, images.ErrEmpty):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, checkout.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, checkout.ErrNotConfigured):
		return http.StatusServiceUnavailable, err.Error()

	case errors.Is(err, errNoImage):
		return http.StatusBadRequest, err.Error()

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail writes the mapped error and logs server-side failures with their detail.
func fail(w http.ResponseWriter, r *http.Request, log *zap.SugaredLogger, err error) {
	code, msg := statusFor(err)
	if code >= 500 {
		log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
	}
	writeError(w, code, msg)
}

const defaultMaxJSON = 1 << 20

// decodeJSON reads one JSON value of at most limit bytes, or defaultMaxJSON when limit is 0.
func decodeJSON(r *http.Request, v any, limit int64) error {
	if limit <= 0 {
		limit = defaultMaxJSON
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limit))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
