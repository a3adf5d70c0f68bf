package httpx_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/httpx"
	"github.com/ariefcatur/beyou-storefront/internal/images"
	"github.com/ariefcatur/beyou-storefront/internal/revalidate"
	"github.com/ariefcatur/beyou-storefront/internal/telemetry"
	"github.com/ariefcatur/beyou-storefront/internal/uploads"
)

const adminToken = "s3cret"

// 8-byte PNG signature followed by filler, so the image store accepts it as .png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), []byte("0123456789abcdefghijkl")...)

type notified struct {
	Event string
	catalog.ChangedPayload
}

// recorder is a catalog.Notifier that remembers every call and forwards to next when set.
type recorder struct {
	mu     sync.Mutex
	events []notified
	next   catalog.Notifier
}

func (r *recorder) Notify(ctx context.Context, eventType string, p catalog.ChangedPayload) {
	r.mu.Lock()
	r.events = append(r.events, notified{Event: eventType, ChangedPayload: p})
	r.mu.Unlock()
	if r.next != nil {
		r.next.Notify(ctx, eventType, p)
	}
}

func (r *recorder) Events() []notified {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notified(nil), r.events...)
}

// mediaRows is an in-memory MediaStore and uploads.BannerStore.
type mediaRows struct {
	mu         sync.Mutex
	banners    []catalog.Banner
	categories map[string]catalog.CategoryImage
	createErr  error
}

func (m *mediaRows) ListBanners(context.Context) ([]catalog.Banner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.Banner{}, m.banners...), nil
}

func (m *mediaRows) CreateBanner(_ context.Context, imagePath, title, subtitle string) (catalog.Banner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return catalog.Banner{}, m.createErr
	}
	b := catalog.Banner{ID: uuid.NewString(), ImagePath: imagePath, Title: title, Subtitle: subtitle, CreatedAt: time.Now().UTC()}
	m.banners = append(m.banners, b)
	return b, nil
}

func (m *mediaRows) DeleteBanner(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.banners {
		if b.ID == id {
			m.banners = append(m.banners[:i], m.banners[i+1:]...)
			return b.ImagePath, nil
		}
	}
	return "", catalog.ErrNotFound
}

func (m *mediaRows) ListCategoryImages(context.Context) ([]catalog.CategoryImage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []catalog.CategoryImage{}
	for _, c := range m.categories {
		out = append(out, c)
	}
	return out, nil
}

func (m *mediaRows) UpsertCategoryImage(_ context.Context, name, imagePath string) (catalog.CategoryImage, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.categories == nil {
		m.categories = map[string]catalog.CategoryImage{}
	}
	old := m.categories[name].ImagePath
	ci := catalog.CategoryImage{ID: uuid.NewString(), CategoryName: name, ImagePath: imagePath}
	m.categories[name] = ci
	return ci, old, nil
}

func (m *mediaRows) DeleteCategoryImage(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ci, ok := m.categories[name]
	if !ok {
		return "", catalog.ErrNotFound
	}
	delete(m.categories, name)
	return ci.ImagePath, nil
}

type harness struct {
	Router   *chi.Mux
	FS       afero.Fs
	Files    *images.Store
	Media    *mediaRows
	Notes    *recorder
	Cache    *revalidate.PageCache
	Sessions *uploads.MemoryStore
}

// newHarness wires the media and chunk upload routes against in-memory collaborators. The
// recorder forwards to a revalidate.Publisher so page cache invalidation is real.
func newHarness(t *testing.T) *harness {
	t.Helper()
	log := zap.NewNop().Sugar()
	tel := telemetry.Noop()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		FS:       afero.NewMemMapFs(),
		Media:    &mediaRows{},
		Cache:    revalidate.NewPageCache(rdb, time.Minute),
		Sessions: uploads.NewMemoryStore(time.Hour),
	}
	h.Files = images.NewStore(h.FS, "/srv/uploads", "/uploads")
	h.Notes = &recorder{next: &revalidate.Publisher{Cache: h.Cache, Service: "test", Logger: log}}

	re, err := uploads.NewReassembler(h.Sessions, h.Files, h.Media, 1<<20, log, tel.Tracer, tel.Meter)
	require.NoError(t, err)

	media := &httpx.MediaHandler{
		Media:    h.Media,
		Files:    h.Files,
		Chunks:   re,
		Cache:    h.Cache,
		Notifier: h.Notes,
		Logger:   log,

		MaxChunkBytes: 1 << 20,
	}

	h.Router = httpx.NewRouter(log)
	media.Register(h.Router)
	httpx.MountFiles(h.Router, "/uploads", h.Files.FileSystem())
	h.Router.Route("/api/admin", func(r chi.Router) {
		r.Use(httpx.AdminAuth(adminToken))
		media.RegisterAdmin(r)
	})
	return h
}

func do(t *testing.T, h http.Handler, method, target, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.HasPrefix(target, "/api/admin") {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func jsonBody(format string, args ...any) io.Reader {
	return strings.NewReader(fmt.Sprintf(format, args...))
}
