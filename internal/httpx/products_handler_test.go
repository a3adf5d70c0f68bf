package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/checkout"
	"github.com/ariefcatur/beyou-storefront/internal/httpx"
	"github.com/ariefcatur/beyou-storefront/internal/images"
)

// productRows is an in-memory ProductStore and ProductImageStore.
type productRows struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	filters  []catalog.ProductFilter
}

func (p *productRows) ListProducts(_ context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, f)
	out := []catalog.Product{}
	for _, v := range p.products {
		if f.Category != "" && v.Category != f.Category {
			continue
		}
		if f.BestSeller != nil && v.IsBestSeller != *f.BestSeller {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (p *productRows) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return v, nil
}

func (p *productRows) CreateProduct(_ context.Context, in catalog.ProductInput) (catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := catalog.Product{
		ID: uuid.NewString(), Name: in.Name, Category: in.Category, PriceCents: in.PriceCents,
		StockQuantity: in.StockQuantity, IsBestSeller: in.IsBestSeller, CreatedAt: time.Now().UTC(),
	}
	p.products[v.ID] = v
	return v, nil
}

func (p *productRows) UpdateProduct(_ context.Context, id string, in catalog.ProductInput) (catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	v.Name, v.Category, v.PriceCents, v.StockQuantity = in.Name, in.Category, in.PriceCents, in.StockQuantity
	p.products[id] = v
	return v, nil
}

func (p *productRows) DeleteProduct(_ context.Context, id string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	delete(p.products, id)
	var paths []string
	for _, img := range v.Images {
		paths = append(paths, img.ImagePath)
	}
	return paths, nil
}

func (p *productRows) ProductsByID(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]catalog.Product{}
	for _, id := range ids {
		if v, ok := p.products[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (p *productRows) AddProductImage(_ context.Context, productID, imagePath string, primary bool) (catalog.ProductImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.products[productID]
	if !ok {
		return catalog.ProductImage{}, catalog.ErrNotFound
	}
	img := catalog.ProductImage{ID: uuid.NewString(), ProductID: productID, ImagePath: imagePath, IsPrimary: primary || len(v.Images) == 0}
	v.Images = append(v.Images, img)
	p.products[productID] = v
	return img, nil
}

func (p *productRows) SetPrimaryImage(context.Context, string, string) error { return nil }

func (p *productRows) DeleteProductImage(context.Context, string, string) (string, error) {
	return "", catalog.ErrNotFound
}

type productsHarness struct {
	Router http.Handler
	Rows   *productRows
	FS     afero.Fs
	Notes  *recorder
}

func newProductsHarness(t *testing.T, seed ...catalog.Product) *productsHarness {
	t.Helper()
	log := zap.NewNop().Sugar()
	h := &productsHarness{
		Rows:  &productRows{products: map[string]catalog.Product{}},
		FS:    afero.NewMemMapFs(),
		Notes: &recorder{},
	}
	for _, p := range seed {
		h.Rows.products[p.ID] = p
	}
	files := images.NewStore(h.FS, "/srv/uploads", "/uploads")

	ph := &httpx.ProductsHandler{Products: h.Rows, Images: h.Rows, Files: files, Notifier: h.Notes, Logger: log}
	ch := &httpx.CheckoutHandler{Checkout: checkout.NewService(h.Rows, "6281234567890"), Logger: log}

	r := httpx.NewRouter(log)
	ph.Register(r)
	ch.Register(r)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(httpx.AdminAuth(adminToken))
		ph.RegisterAdmin(r)
	})
	h.Router = r
	return h
}

func TestListProducts_Filters(t *testing.T) {
	best := catalog.Product{ID: "a", Name: "Glow Serum", Category: "serum", IsBestSeller: true}
	plain := catalog.Product{ID: "b", Name: "Rose Toner", Category: "toner"}
	h := newProductsHarness(t, best, plain)

	rec := do(t, h.Router, http.MethodGet, "/api/products?bestSeller=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].ID)

	rec = do(t, h.Router, http.MethodGet, "/api/products?category=toner", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].ID)

	rec = do(t, h.Router, http.MethodGet, "/api/products?bestSeller=maybe", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Router, http.MethodGet, "/api/products/missing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_Validation(t *testing.T) {
	h := newProductsHarness(t)

	rec := do(t, h.Router, http.MethodPost, "/api/admin/products", "application/json",
		strings.NewReader(`{"name":"","category":"serum","price_cents":100,"stock_quantity":1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Router, http.MethodPost, "/api/admin/products", "application/json",
		strings.NewReader(`{"name":"Serum","category":"serum","price_cents":-1,"stock_quantity":1}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, h.Notes.Events())

	rec = do(t, h.Router, http.MethodPost, "/api/admin/products", "application/json",
		strings.NewReader(`{"name":"Serum","category":"serum","price_cents":15000000,"stock_quantity":4}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	var p catalog.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, 4, p.StockQuantity)

	ev := h.Notes.Events()
	require.Len(t, ev, 1)
	require.Equal(t, catalog.EventProductChanged, ev[0].Event)
	require.Contains(t, ev[0].Paths, catalog.ProductPath(p.ID))
}

func TestProductImages_AddThenDeleteProductRemovesFiles(t *testing.T) {
	// given
	h := newProductsHarness(t, catalog.Product{ID: "p1", Name: "Glow Serum", Category: "serum"})

	body, ct := multipartImage(t, "front.png", pngBytes, map[string]string{"primary": "true"})
	rec := do(t, h.Router, http.MethodPost, "/api/admin/products/p1/images", ct, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var img catalog.ProductImage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &img))
	require.True(t, img.IsPrimary)
	require.True(t, strings.HasPrefix(img.ImagePath, "/uploads/products/"))
	onDisk := "/srv/uploads/" + strings.TrimPrefix(img.ImagePath, "/uploads/")
	exists, err := afero.Exists(h.FS, onDisk)
	require.NoError(t, err)
	require.True(t, exists)

	// when
	rec = do(t, h.Router, http.MethodDelete, "/api/admin/products/p1", "", nil)

	// then
	require.Equal(t, http.StatusNoContent, rec.Code)
	exists, err = afero.Exists(h.FS, onDisk)
	require.NoError(t, err)
	require.False(t, exists)

	ev := h.Notes.Events()
	require.Len(t, ev, 2)
	require.Equal(t, catalog.EventProductImagesChanged, ev[0].Event)
	require.Equal(t, catalog.EventProductDeleted, ev[1].Event)
}

func TestProductImages_UnknownProductLeavesNoFile(t *testing.T) {
	h := newProductsHarness(t)

	body, ct := multipartImage(t, "front.png", pngBytes, nil)
	rec := do(t, h.Router, http.MethodPost, "/api/admin/products/nope/images", ct, body)

	require.Equal(t, http.StatusNotFound, rec.Code)
	entries, err := afero.ReadDir(h.FS, "/srv/uploads/products")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCheckoutWhatsApp(t *testing.T) {
	h := newProductsHarness(t, catalog.Product{ID: "p1", Name: "Glow Serum", PriceCents: 15000000, StockQuantity: 3})

	rec := do(t, h.Router, http.MethodPost, "/api/checkout/whatsapp", "application/json",
		strings.NewReader(`{"items":[{"productId":"p1","quantity":2}],"customerName":"Sari"}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var o checkout.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	require.Equal(t, int64(30000000), o.TotalCents)
	require.True(t, strings.HasPrefix(o.URL, "https://wa.me/6281234567890?text="))

	rec = do(t, h.Router, http.MethodPost, "/api/checkout/whatsapp", "application/json",
		strings.NewReader(`{"items":[{"productId":"p1","quantity":4}]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Router, http.MethodPost, "/api/checkout/whatsapp", "application/json",
		strings.NewReader(`{"items":[]}`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
