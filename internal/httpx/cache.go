package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type PageCache interface {
	Get(ctx context.Context, path string) ([]byte, bool, error)
	Set(ctx context.Context, path string, body []byte) error
}

// serveCached answers a public read from the page cache when possible. Only unfiltered
// requests are cached because invalidation works on bare paths.
func serveCached(w http.ResponseWriter, r *http.Request, cache PageCache, log *zap.SugaredLogger, load func(ctx context.Context) (any, error)) {
	ctx := r.Context()
	cacheable := cache != nil && r.URL.RawQuery == ""
	path := r.URL.Path

	if cacheable {
		body, ok, err := cache.Get(ctx, path)
		if err != nil {
			log.Warnw("page cache read failed", "path", path, "error", err)
		}
		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Cache", "HIT")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
	}

	v, err := load(ctx)
	if err != nil {
		fail(w, r, log, err)
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		fail(w, r, log, err)
		return
	}
	if cacheable {
		if err := cache.Set(ctx, path, body); err != nil {
			log.Warnw("page cache write failed", "path", path, "error", err)
		}
		w.Header().Set("X-Cache", "MISS")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
