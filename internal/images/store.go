package images

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

type Category string

const (
	CategoryBanners    Category = "banners"
	CategoryProducts   Category = "products"
	CategoryCategories Category = "categories"
	CategoryProfiles   Category = "profiles"
)

var knownCategories = map[Category]bool{
	CategoryBanners:    true,
	CategoryProducts:   true,
	CategoryCategories: true,
	CategoryProfiles:   true,
}

// Extensions accepted on upload. The value is the content type http.DetectContentType
// reports for the format, or "" when the sniffer does not know it.
var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".avif": "",
}

var (
	ErrUnknownCategory = errors.New("unknown image category")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrEmpty           = errors.New("empty image")
	ErrOutsideRoot     = errors.New("path outside upload directory")
	ErrDelete          = errors.New("delete image file")
)

// Store writes images under Root/<category>/<uuid><ext> and hands out public paths
// of the form Prefix/<category>/<uuid><ext>.
type Store struct {
	fs     afero.Fs
	root   string
	prefix string
}

func NewStore(fsys afero.Fs, root, publicPrefix string) *Store {
	return &Store{
		fs:     fsys,
		root:   filepath.Clean(root),
		prefix: "/" + strings.Trim(publicPrefix, "/"),
	}
}

// NewOSStore is the production store backed by the real filesystem.
func NewOSStore(root, publicPrefix string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return NewStore(afero.NewOsFs(), root, publicPrefix), nil
}

func (s *Store) Root() string { return s.root }

// FileSystem exposes the stored files for serving over HTTP.
func (s *Store) FileSystem() http.FileSystem { return afero.NewHttpFs(s.fs).Dir(s.root) }

// Ext validates the file name against the allow-list and returns the normalized extension.
func Ext(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExt[ext]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, ext)
	}
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return ext, nil
}

// Save validates and writes data, returning the public path of the stored file.
func (s *Store) Save(category Category, filename string, data []byte) (string, error) {
	if !knownCategories[category] {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if len(data) == 0 {
		return "", ErrEmpty
	}
	ext, err := Ext(filename)
	if err != nil {
		return "", err
	}
	if want := allowedExt[ext]; want != "" {
		if got := http.DetectContentType(data); got != want && !strings.HasPrefix(got, "image/") {
			return "", fmt.Errorf("%w: content is %s", ErrUnsupportedType, got)
		}
	}

	dir := filepath.Join(s.root, string(category))
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	name := uuid.NewString() + ext
	if err := afero.WriteFile(s.fs, filepath.Join(dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path.Join(s.prefix, string(category), name), nil
}

// Delete removes the file behind a public path. A missing file is not an error; any
// other failure is wrapped in ErrDelete so callers can log it and carry on.
func (s *Store) Delete(publicPath string) error {
	p, err := s.resolve(publicPath)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w %s: %v", ErrDelete, publicPath, err)
	}
	return nil
}

func (s *Store) resolve(publicPath string) (string, error) {
	rel := strings.TrimPrefix(path.Clean("/"+publicPath), s.prefix+"/")
	if rel == "" || strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, publicPath)
	}
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, publicPath)
	}
	return full, nil
}
