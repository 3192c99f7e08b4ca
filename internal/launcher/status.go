package launcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
)

// TaskState is the lifecycle position of a queued task.
type TaskState string

const (
	StateQueued    TaskState = "queued"
	StateRunning   TaskState = "running"
	StateSucceeded TaskState = "succeeded"
	StateFailed    TaskState = "failed"
)

// Terminal reports whether no further transitions follow.
func (s TaskState) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// TaskStatus is the record kept per task id.
type TaskStatus struct {
	State     TaskState `json:"state"`
	ProjectID string    `json:"project_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusStore records task outcomes shared between launcher and agent.
type StatusStore interface {
	SetStatus(ctx context.Context, taskID string, status TaskStatus) error
	// Status returns ErrStatusNotFound for unknown tasks.
	Status(ctx context.Context, taskID string) (TaskStatus, error)
}

// ErrStatusNotFound is returned for task ids without a record.
var ErrStatusNotFound = errors.New("task status not found")

// MemoryStatusStore is a process-local StatusStore.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[string]TaskStatus
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[string]TaskStatus)}
}

func (m *MemoryStatusStore) SetStatus(_ context.Context, taskID string, status TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[taskID] = status
	return nil
}

func (m *MemoryStatusStore) Status(_ context.Context, taskID string) (TaskStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[taskID]
	if !ok {
		return TaskStatus{}, ErrStatusNotFound
	}
	return s, nil
}

// kvBucket is the subset of jetstream.KeyValue used for status records.
type kvBucket interface {
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
}

// KVStatusStore keeps task status in a JetStream key-value bucket.
type KVStatusStore struct {
	kv kvBucket
}

func NewKVStatusStore(kv jetstream.KeyValue) *KVStatusStore {
	return &KVStatusStore{kv: kv}
}

func (s *KVStatusStore) SetStatus(ctx context.Context, taskID string, status TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal task status: %w", err)
	}
	if _, err := s.kv.Put(ctx, taskID, data); err != nil {
		return ferrors.NetworkError("failed to store task status").
			WithCause(err).WithContext("task_id", taskID).Build()
	}
	return nil
}

func (s *KVStatusStore) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	entry, err := s.kv.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return TaskStatus{}, ErrStatusNotFound
		}
		return TaskStatus{}, ferrors.NetworkError("failed to read task status").
			WithCause(err).WithContext("task_id", taskID).Build()
	}
	var status TaskStatus
	if err := json.Unmarshal(entry.Value(), &status); err != nil {
		return TaskStatus{}, fmt.Errorf("failed to unmarshal task status: %w", err)
	}
	return status, nil
}

// pollStatus blocks until taskID reaches a terminal state.
func pollStatus(ctx context.Context, store StatusStore, taskID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := store.Status(ctx, taskID)
		switch {
		case errors.Is(err, ErrStatusNotFound):
		case err != nil:
			return err
		case status.State == StateSucceeded:
			return nil
		case status.State == StateFailed:
			msg := status.Error
			if msg == "" {
				msg = "build task failed"
			}
			return ferrors.BuildError(msg).WithContext("task_id", taskID).Build()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
