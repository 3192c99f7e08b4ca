package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

const metaDir = ".meta"

// FSStore keeps artifacts as plain files below a root directory:
//
//	<root>/
//	  __outputs/<project>/index.html
//	  .meta/__outputs/<project>/index.html.json
//
// Writes are atomic, so a concurrent reader sees either the old or the new file.
type FSStore struct {
	root string
	mu   sync.RWMutex
}

type fsMetadata struct {
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size"`
	StoredAt    time.Time `json:"stored_at"`
}

// NewFSStore creates the root directory when missing.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(filepath.Join(root, metaDir), 0o750); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", root, err)
	}
	return &FSStore{root: root}, nil
}

// Root returns the backing directory.
func (s *FSStore) Root() string { return s.root }

func (s *FSStore) Put(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rel, err := cleanKey(a.Key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create directory for %s: %w", a.Key, err)
	}
	pf, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create %s: %w", a.Key, err)
	}
	defer func() { _ = pf.Cleanup() }()

	n, err := io.Copy(pf, a.Body)
	if err != nil {
		return fmt.Errorf("write %s: %w", a.Key, err)
	}
	if a.Size >= 0 && n != a.Size {
		return fmt.Errorf("write %s: wrote %d bytes, expected %d", a.Key, n, a.Size)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit %s: %w", a.Key, err)
	}

	meta, err := json.Marshal(fsMetadata{ContentType: a.ContentType, Size: n, StoredAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	metaPath := s.metaPath(rel)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0o750); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}
	if err := renameio.WriteFile(metaPath, meta, 0o644); err != nil {
		return fmt.Errorf("write metadata for %s: %w", a.Key, err)
	}
	return nil
}

// Get opens a stored artifact. The caller closes Body.
func (s *FSStore) Get(ctx context.Context, key string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, err := cleanKey(key)
	if err != nil {
		return nil, ErrNotFound{Key: key}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound{Key: key}
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound{Key: key}
	}

	obj := &Object{Key: rel, Body: f, Size: info.Size(), ModTime: info.ModTime()}
	if data, err := os.ReadFile(s.metaPath(rel)); err == nil {
		var meta fsMetadata
		if json.Unmarshal(data, &meta) == nil {
			obj.ContentType = meta.ContentType
		}
	}
	return obj, nil
}

// Exists reports whether key holds an artifact.
func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	obj, err := s.Get(ctx, key)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	_ = obj.Body.Close()
	return true, nil
}

func (s *FSStore) metaPath(rel string) string {
	return filepath.Join(s.root, metaDir, filepath.FromSlash(rel)+".json")
}

// cleanKey confines a key to the store root and keeps it out of the metadata tree.
func cleanKey(key string) (string, error) {
	if key == "" || strings.Contains("/"+key+"/", "/../") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	if rel == "" || rel == metaDir || strings.HasPrefix(rel, metaDir+"/") {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return rel, nil
}
