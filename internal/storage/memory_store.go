package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps artifacts in memory. Failures can be injected per key.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject
	fail    map[string]error
	puts    int
}

type memoryObject struct {
	data        []byte
	contentType string
	storedAt    time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		fail:    make(map[string]error),
	}
}

// FailOn makes every Put for key return err.
func (m *MemoryStore) FailOn(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[key] = err
}

func (m *MemoryStore) Put(ctx context.Context, a *Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	failErr := m.fail[a.Key]
	m.puts++
	m.mu.Unlock()
	if failErr != nil {
		return failErr
	}

	data, err := io.ReadAll(a.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", a.Key, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[a.Key] = memoryObject{data: data, contentType: a.ContentType, storedAt: time.Now()}
	return nil
}

// Get returns a copy of a stored artifact.
func (m *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound{Key: key}
	}
	return &Object{
		Key:         key,
		Body:        io.NopCloser(bytes.NewReader(obj.data)),
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		ModTime:     obj.storedAt,
	}, nil
}

// Keys lists stored keys in lexical order.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts counts Put calls, including failed ones.
func (m *MemoryStore) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}
