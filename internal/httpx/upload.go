package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

const defaultMaxUpload = 10 << 20

var errNoImage = errors.New("image file is required")

// readImage pulls one file out of a multipart form. The whole request is capped at roughly limit bytes.
func readImage(w http.ResponseWriter, r *http.Request, field string, limit int64) (string, []byte, error) {
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errNoImage, err)
	}
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", errNoImage, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", nil, err
	}
	if int64(len(data)) > limit {
		return "", nil, fmt.Errorf("%w: file larger than %d bytes", errNoImage, limit)
	}
	return hdr.Filename, data, nil
}
