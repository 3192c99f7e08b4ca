// Package storage writes build artifacts to the Artifact Store and, for the
// local filesystem backend, serves them back over HTTP.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
)

// ArtifactStore accepts build output. Keys are slash separated and already
// carry the output root and project namespace.
type ArtifactStore interface {
	// Put stores one artifact, replacing any previous content under the key.
	Put(ctx context.Context, a *Artifact) error
}

// Artifact is one uploaded build output file.
type Artifact struct {
	Key         string
	Body        io.Reader
	Size        int64 // -1 when unknown
	ContentType string
}

// Object is an artifact read back from a store.
type Object struct {
	Key         string
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// ErrNotFound is returned when a key doesn't exist.
type ErrNotFound struct {
	Key string
}

func (e ErrNotFound) Error() string {
	return "artifact not found: " + e.Key
}

// IsNotFound returns true if the error is ErrNotFound.
func IsNotFound(err error) bool {
	_, ok := err.(ErrNotFound)
	return ok
}

// webTypes are checked before the system MIME database, which is often missing
// or incomplete in slim build images.
var webTypes = map[string]string{
	".txt":         "text/plain; charset=utf-8",
	".md":          "text/markdown; charset=utf-8",
	".csv":         "text/csv; charset=utf-8",
	".ico":         "image/vnd.microsoft.icon",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".otf":         "font/otf",
	".ttf":         "font/ttf",
	".eot":         "application/vnd.ms-fontobject",
	".map":         "application/json",
	".webmanifest": "application/manifest+json",
	".mp4":         "video/mp4",
	".webm":        "video/webm",
	".mp3":         "audio/mpeg",
}

// ContentTypeFor infers a content type from the file extension. It returns the
// empty string when the extension is unknown, leaving the store default in place.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return ""
	}
	if ct, ok := webTypes[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// New builds the store selected by cfg.
func New(ctx context.Context, cfg config.StoreConfig) (ArtifactStore, error) {
	switch cfg.Type {
	case config.StoreS3:
		return NewS3Store(ctx, cfg)
	case config.StoreFS:
		return NewFSStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Type)
	}
}
