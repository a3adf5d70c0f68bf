package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/images"
)

type ProductStore interface {
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	UpdateProduct(ctx context.Context, id string, in catalog.ProductInput) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id string) ([]string, error)
}

type ProductImageStore interface {
	AddProductImage(ctx context.Context, productID, imagePath string, primary bool) (catalog.ProductImage, error)
	SetPrimaryImage(ctx context.Context, productID, imageID string) error
	DeleteProductImage(ctx context.Context, productID, imageID string) (string, error)
}

type ImageFiles interface {
	Save(category images.Category, filename string, data []byte) (string, error)
	Delete(publicPath string) error
}

type ProductsHandler struct {
	Products       ProductStore
	Images         ProductImageStore
	Files          ImageFiles
	Cache          PageCache
	Notifier       catalog.Notifier
	Logger         *zap.SugaredLogger
	MaxUploadBytes int64
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get(catalog.PathAPIProducts, h.listProducts)
	r.Get(catalog.PathAPIProducts+"/{id}", h.getProduct)
}

// RegisterAdmin mounts the mutating routes. The caller applies AdminAuth.
func (h *ProductsHandler) RegisterAdmin(r chi.Router) {
	r.Post("/products", h.createProduct)
	r.Put("/products/{id}", h.updateProduct)
	r.Delete("/products/{id}", h.deleteProduct)
	r.Post("/products/{id}/images", h.addImage)
	r.Put("/products/{id}/images/{imageID}/primary", h.setPrimary)
	r.Delete("/products/{id}/images/{imageID}", h.deleteImage)
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	var f catalog.ProductFilter
	q := r.URL.Query()
	f.Category = q.Get("category")
	if v := q.Get("bestSeller"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bestSeller must be true or false")
			return
		}
		f.BestSeller = &b
	}

	serveCached(w, r, h.Cache, h.Logger, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return h.Products.ListProducts(ctx, f)
	})
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	serveCached(w, r, h.Cache, h.Logger, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return h.Products.GetProduct(ctx, id)
	})
}

func (h *ProductsHandler) decodeInput(w http.ResponseWriter, r *http.Request) (catalog.ProductInput, bool) {
	var in catalog.ProductInput
	if err := decodeJSON(r, &in, 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return in, false
	}
	if err := validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return in, false
	}
	return in, true
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Products.CreateProduct(ctx, in)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	h.Notifier.Notify(ctx, catalog.EventProductChanged, catalog.ChangedPayload{EntityID: p.ID, Paths: catalog.ProductPaths(p.ID)})
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInput(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Products.UpdateProduct(ctx, id, in)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	h.Notifier.Notify(ctx, catalog.EventProductChanged, catalog.ChangedPayload{EntityID: id, Paths: catalog.ProductPaths(id)})
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	paths, err := h.Products.DeleteProduct(ctx, id)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	for _, p := range paths {
		h.removeFile(p)
	}
	h.Notifier.Notify(ctx, catalog.EventProductDeleted, catalog.ChangedPayload{EntityID: id, Paths: catalog.ProductPaths(id)})
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) addImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	filename, data, err := readImage(w, r, "image", h.MaxUploadBytes)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	primary, _ := strconv.ParseBool(r.FormValue("primary"))

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	path, err := h.Files.Save(images.CategoryProducts, filename, data)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	img, err := h.Images.AddProductImage(ctx, id, path, primary)
	if err != nil {
		h.removeFile(path)
		fail(w, r, h.Logger, err)
		return
	}
	h.Notifier.Notify(ctx, catalog.EventProductImagesChanged, catalog.ChangedPayload{EntityID: id, Paths: catalog.ProductPaths(id)})
	writeJSON(w, http.StatusCreated, img)
}

func (h *ProductsHandler) setPrimary(w http.ResponseWriter, r *http.Request) {
	id, imageID := chi.URLParam(r, "id"), chi.URLParam(r, "imageID")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Images.SetPrimaryImage(ctx, id, imageID); err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	h.Notifier.Notify(ctx, catalog.EventProductImagesChanged, catalog.ChangedPayload{EntityID: id, Paths: catalog.ProductPaths(id)})
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id, imageID := chi.URLParam(r, "id"), chi.URLParam(r, "imageID")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	path, err := h.Images.DeleteProductImage(ctx, id, imageID)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	h.removeFile(path)
	h.Notifier.Notify(ctx, catalog.EventProductImagesChanged, catalog.ChangedPayload{EntityID: id, Paths: catalog.ProductPaths(id)})
	w.WriteHeader(http.StatusNoContent)
}

// removeFile deletes a stored image after its row is gone. Failures are only logged.
func (h *ProductsHandler) removeFile(path string) {
	removeFile(h.Files, h.Logger, path)
}

func removeFile(files ImageFiles, log *zap.SugaredLogger, path string) {
	if path == "" {
		return
	}
	if err := files.Delete(path); err != nil {
		if errors.Is(err, images.ErrDelete) {
			log.Warnw("image file left behind", "path", path, "error", err)
			return
		}
		log.Errorw("image delete refused", "path", path, "error", err)
	}
}
