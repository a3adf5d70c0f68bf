package uploads

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/beyou-storefront/internal/catalog"
	"github.com/ariefcatur/beyou-storefront/internal/images"
)

// Chunk is one request of a chunked banner upload. ChunkIndex is a pointer so a missing index
// can be told apart from index 0.
type Chunk struct {
	SessionID   string `json:"sessionId" validate:"required,max=128"`
	ChunkIndex  *int   `json:"chunkIndex" validate:"required,min=0"`
	ChunkData   string `json:"chunkData" validate:"required"`
	TotalChunks int    `json:"totalChunks" validate:"min=0,max=10000"`
	Filename    string `json:"filename" validate:"max=255"`
	Title       string `json:"title" validate:"max=200"`
	Subtitle    string `json:"subtitle" validate:"max=500"`
}

// Result is either an in-progress acknowledgement or, once every slot is filled, the
// persisted banner.
type Result struct {
	Complete       bool
	SessionID      string
	ReceivedChunks int
	TotalChunks    int
	Banner         catalog.Banner
}

type ImageStore interface {
	Save(category images.Category, filename string, data []byte) (string, error)
	Delete(publicPath string) error
}

type BannerStore interface {
	CreateBanner(ctx context.Context, imagePath, title, subtitle string) (catalog.Banner, error)
}

type Reassembler struct {
	Sessions      SessionStore
	Images        ImageStore
	Banners       BannerStore
	Logger        *zap.SugaredLogger
	Tracer        trace.Tracer
	MaxChunkBytes int

	validate  *validator.Validate
	chunks    metric.Int64Counter
	completed metric.Int64Counter
	failed    metric.Int64Counter
}

func NewReassembler(sessions SessionStore, imgs ImageStore, banners BannerStore, maxChunkBytes int,
	logger *zap.SugaredLogger, tracer trace.Tracer, meter metric.Meter) (*Reassembler, error) {
	r := &Reassembler{
		Sessions:      sessions,
		Images:        imgs,
		Banners:       banners,
		Logger:        logger,
		Tracer:        tracer,
		MaxChunkBytes: maxChunkBytes,
		validate:      validator.New(),
	}

	var err error
	r.chunks, err = meter.Int64Counter(
		"uploads.chunks.received",
		metric.WithDescription("Chunks accepted into an upload session"),
	)
	if err != nil {
		return nil, err
	}
	r.completed, err = meter.Int64Counter(
		"uploads.completed",
		metric.WithDescription("Uploads reassembled and persisted"),
	)
	if err != nil {
		return nil, err
	}
	r.failed, err = meter.Int64Counter(
		"uploads.failed",
		metric.WithDescription("Uploads discarded after a decode or persistence failure"),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Accept stores one chunk and, when it fills the last empty slot, reassembles the upload.
// Invalid chunks are rejected before the session is touched. After reassembly the session is
// gone whether or not persisting succeeded.
func (r *Reassembler) Accept(ctx context.Context, c Chunk) (Result, error) {
	if err := r.validate.Struct(c); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidChunk, err)
	}
	if r.MaxChunkBytes > 0 && len(c.ChunkData) > r.MaxChunkBytes {
		return Result{}, fmt.Errorf("%w: chunk larger than %d bytes", ErrInvalidChunk, r.MaxChunkBytes)
	}
	if c.Filename != "" {
		if _, err := images.Ext(c.Filename); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrInvalidChunk, err)
		}
	}

	meta := Meta{TotalChunks: c.TotalChunks, Filename: c.Filename, Title: c.Title, Subtitle: c.Subtitle}
	stored, received, err := r.Sessions.Put(ctx, c.SessionID, meta, *c.ChunkIndex, c.ChunkData)
	if err != nil {
		return Result{}, err
	}
	r.chunks.Add(ctx, 1)

	res := Result{SessionID: c.SessionID, ReceivedChunks: received, TotalChunks: stored.TotalChunks}
	if received < stored.TotalChunks {
		return res, nil
	}

	banner, err := r.assemble(ctx, c.SessionID)
	if err != nil {
		return Result{}, err
	}
	res.Complete = true
	res.Banner = banner
	return res, nil
}

func (r *Reassembler) assemble(ctx context.Context, sessionID string) (catalog.Banner, error) {
	ctx, span := r.Tracer.Start(ctx, "uploads.assemble", trace.WithAttributes(attribute.String("session_id", sessionID)))
	defer span.End()

	meta, slots, err := r.Sessions.Take(ctx, sessionID)
	if err != nil {
		// a concurrent request filling the same last slot already took it
		return catalog.Banner{}, err
	}

	fail := func(stage string, err error) (catalog.Banner, error) {
		r.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		r.Logger.Errorw("upload discarded", "session_id", sessionID, "stage", stage, "error", err)
		return catalog.Banner{}, fmt.Errorf("%w: %s: %v", ErrAssembly, stage, err)
	}

	data, mime, err := Decode(slots)
	if err != nil {
		return fail("decode", err)
	}
	span.SetAttributes(attribute.Int("bytes", len(data)))

	filename := meta.Filename
	if filename == "" {
		if mime == "" {
			mime = http.DetectContentType(data)
		}
		filename = "banner" + extForMIME(mime)
	}
	path, err := r.Images.Save(images.CategoryBanners, filename, data)
	if err != nil {
		return fail("store", err)
	}
	banner, err := r.Banners.CreateBanner(ctx, path, meta.Title, meta.Subtitle)
	if err != nil {
		if derr := r.Images.Delete(path); derr != nil {
			r.Logger.Warnw("remove orphaned banner file", "path", path, "error", derr)
		}
		return fail("persist", err)
	}

	r.completed.Add(ctx, 1)
	r.Logger.Infow("upload reassembled", "session_id", sessionID, "banner_id", banner.ID, "bytes", len(data), "chunks", len(slots))
	return banner, nil
}

// Decode joins the slots in index order and base64-decodes the result. A leading
// "data:<mime>;base64," prefix is stripped and its mime type returned.
func Decode(slots []string) ([]byte, string, error) {
	for i, s := range slots {
		if s == "" {
			return nil, "", fmt.Errorf("slot %d empty", i)
		}
	}
	joined := strings.Join(slots, "")

	var mime string
	if strings.HasPrefix(joined, "data:") {
		comma := strings.IndexByte(joined, ',')
		if comma < 0 {
			return nil, "", errors.New("malformed data URL")
		}
		header := joined[len("data:"):comma]
		mime, _, _ = strings.Cut(header, ";")
		joined = joined[comma+1:]
	}
	joined = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, joined)

	data, err := base64.StdEncoding.DecodeString(joined)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty payload")
	}
	return data, mime, nil
}

func extForMIME(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/avif":
		return ".avif"
	default:
		return ".jpg"
	}
}
