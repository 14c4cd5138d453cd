package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultPrefix is both the first segment of every stored path and the URL
// mount the files are served from.
const DefaultPrefix = "uploads"

var (
	ErrNotExist    = errors.New("stored file does not exist")
	ErrInvalidPath = errors.New("invalid stored path")
)

type Uploader interface {
	Upload(ctx context.Context, originalName string, contentType string, r io.Reader) (storedPath string, err error)
}

type Opener interface {
	Open(ctx context.Context, storedPath string) (*Object, error)
}

type Remover interface {
	Delete(ctx context.Context, storedPath string) error
}

// FileStore persists uploaded profile images into one flat namespace.
type FileStore interface {
	Uploader
	Opener
	Remover
}

type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// objectName builds the timestamp-derived file name. attempt > 0 adds a
// numeric suffix for when the millisecond is already taken.
func objectName(now time.Time, originalName string, attempt int) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	base := strconv.FormatInt(now.UnixMilli(), 10)
	if attempt > 0 {
		base += "-" + strconv.Itoa(attempt)
	}
	return base + ext
}

// splitStoredPath validates "<prefix>/<name>" and returns name.
func splitStoredPath(prefix, storedPath string) (string, error) {
	dir, name := path.Split(storedPath)
	if dir != prefix+"/" || name == "" || name == "." || name == ".." {
		return "", ErrInvalidPath
	}
	if strings.ContainsAny(name, `\`) {
		return "", ErrInvalidPath
	}
	return name, nil
}

const maxNameAttempts = 100

// Upload is one incoming image as received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}
