package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/images"
	"github.com/ariefcatur/beyou-storefront/internal/uploads"
)

type MediaStore interface {
	ListBanners(ctx context.Context) ([]catalog.Banner, error)
	CreateBanner(ctx context.Context, imagePath, title, subtitle string) (catalog.Banner, error)
	DeleteBanner(ctx context.Context, id string) (string, error)
	ListCategoryImages(ctx context.Context) ([]catalog.CategoryImage, error)
	UpsertCategoryImage(ctx context.Context, name, imagePath string) (catalog.CategoryImage, string, error)
	DeleteCategoryImage(ctx context.Context, name string) (string, error)
}

type ChunkAcceptor interface {
	Accept(ctx context.Context, c uploads.Chunk) (uploads.Result, error)
}

// MediaHandler serves banners and category images, including the chunked banner upload.
type MediaHandler struct {
	Media          MediaStore
	Files          ImageFiles
	Chunks         ChunkAcceptor
	Cache          PageCache
	Notifier       catalog.Notifier
	Logger         *zap.SugaredLogger
	MaxUploadBytes int64
	// MaxChunkBytes should match the reassembler's chunk limit. Zero keeps the JSON default.
	MaxChunkBytes  int64
}

// room for the chunk fields around chunkData
const chunkEnvelope = 64 << 10

type ChunkProgressResp struct {
	Message        string `json:"message"`
	SessionID      string `json:"sessionId"`
	ReceivedChunks int    `json:"receivedChunks"`
	TotalChunks    int    `json:"totalChunks"`
}

func (h *MediaHandler) Register(r chi.Router) {
	r.Get(catalog.PathAPIBanners, h.listBanners)
	r.Get(catalog.PathAPICategoryImages, h.listCategoryImages)
}

func (h *MediaHandler) RegisterAdmin(r chi.Router) {
	r.Post("/banners", h.createBanner)
	r.Post("/banners/upload-chunk", h.uploadChunk)
	r.Delete("/banners/{id}", h.deleteBanner)
	r.Put("/categories/{name}/image", h.putCategoryImage)
	r.Delete("/categories/{name}/image", h.deleteCategoryImage)
}

func (h *MediaHandler) listBanners(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, h.Cache, h.Logger, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return h.Media.ListBanners(ctx)
	})
}

func (h *MediaHandler) listCategoryImages(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, h.Cache, h.Logger, func(ctx context.Context) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		return h.Media.ListCategoryImages(ctx)
	})
}

func (h *MediaHandler) createBanner(w http.ResponseWriter, r *http.Request) {
	filename, data, err := readImage(w, r, "image", h.MaxUploadBytes)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	title, subtitle := r.FormValue("title"), r.FormValue("subtitle")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	path, err := h.Files.Save(images.CategoryBanners, filename, data)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	b, err := h.Media.CreateBanner(ctx, path, title, subtitle)
	if err != nil {
		removeFile(h.Files, h.Logger, path)
		fail(w, r, h.Logger, err)
		return
	}
	h.Notifier.Notify(ctx, catalog.EventBannerChanged, catalog.ChangedPayload{EntityID: b.ID, Paths: catalog.BannerPaths()})
	writeJSON(w, http.StatusCreated, b)
}

// uploadChunk accepts a JSON body or, for clients that cannot send one, the same fields as
// query or form values.
func (h *MediaHandler) uploadChunk(w http.ResponseWriter, r *http.Request) {
	c, err := h.parseChunk(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "Invalid chunk", Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	res, err := h.Chunks.Accept(ctx, c)
	if err != nil {
		code, msg := statusFor(err)
		if errors.Is(err, uploads.ErrAssembly) {
			h.Logger.Errorw("chunked upload failed", "session_id", c.SessionID, "error", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Upload failed, please restart the upload", Error: "internal error"})
			return
		}
		if code >= 500 {
			h.Logger.Errorw("chunk rejected", "session_id", c.SessionID, "error", err)
		}
		writeJSON(w, code, errorBody{Message: "Chunk rejected", Error: msg})
		return
	}

	if !res.Complete {
		writeJSON(w, http.StatusOK, ChunkProgressResp{
			Message:        "Chunk received",
			SessionID:      res.SessionID,
			ReceivedChunks: res.ReceivedChunks,
			TotalChunks:    res.TotalChunks,
		})
		return
	}
	h.Notifier.Notify(ctx, catalog.EventBannerChanged, catalog.ChangedPayload{EntityID: res.Banner.ID, Paths: catalog.BannerPaths()})
	writeJSON(w, http.StatusCreated, res.Banner)
}

func (h *MediaHandler) parseChunk(r *http.Request) (uploads.Chunk, error) {
	var c uploads.Chunk
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var limit int64
		if h.MaxChunkBytes > 0 {
			limit = h.MaxChunkBytes + chunkEnvelope
		}
		if err := decodeJSON(r, &c, limit); err != nil {
			return c, errors.New("invalid json")
		}
		return c, nil
	}

	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.SessionID = r.Form.Get("sessionId")
	// form decoding turns '+' into a space, which base64 never contains
	c.ChunkData = strings.ReplaceAll(r.Form.Get("chunkData"), " ", "+")
	c.Filename = r.Form.Get("filename")
	c.Title = r.Form.Get("title")
	c.Subtitle = r.Form.Get("subtitle")
	if v := r.Form.Get("chunkIndex"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.New("chunkIndex must be an integer")
		}
		c.ChunkIndex = &n
	}
	if v := r.Form.Get("totalChunks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return c, errors.New("totalChunks must be an integer")
		}
		c.TotalChunks = n
	}
	return c, nil
}

func (h *MediaHandler) deleteBanner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	path, err := h.Media.DeleteBanner(ctx, id)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	removeFile(h.Files, h.Logger, path)
	h.Notifier.Notify(ctx, catalog.EventBannerChanged, catalog.ChangedPayload{EntityID: id, Paths: catalog.BannerPaths()})
	w.WriteHeader(http.StatusNoContent)
}

func categoryName(r *http.Request) (string, bool) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	return name, name != "" && len(name) <= 100
}

func (h *MediaHandler) putCategoryImage(w http.ResponseWriter, r *http.Request) {
	name, ok := categoryName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category name")
		return
	}
	filename, data, err := readImage(w, r, "image", h.MaxUploadBytes)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	path, err := h.Files.Save(images.CategoryCategories, filename, data)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	ci, old, err := h.Media.UpsertCategoryImage(ctx, name, path)
	if err != nil {
		removeFile(h.Files, h.Logger, path)
		fail(w, r, h.Logger, err)
		return
	}
	if old != path {
		removeFile(h.Files, h.Logger, old)
	}
	h.Notifier.Notify(ctx, catalog.EventCategoryImageChanged, catalog.ChangedPayload{EntityID: name, Paths: catalog.CategoryImagePaths()})
	writeJSON(w, http.StatusOK, ci)
}

func (h *MediaHandler) deleteCategoryImage(w http.ResponseWriter, r *http.Request) {
	name, ok := categoryName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid category name")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	path, err := h.Media.DeleteCategoryImage(ctx, name)
	if err != nil {
		fail(w, r, h.Logger, err)
		return
	}
	removeFile(h.Files, h.Logger, path)
	h.Notifier.Notify(ctx, catalog.EventCategoryImageChanged, catalog.ChangedPayload{EntityID: name, Paths: catalog.CategoryImagePaths()})
	w.WriteHeader(http.StatusNoContent)
}
