package janitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/workspace"
)

type countingRecorder struct {
	metrics.NoopRecorder
	mu    sync.Mutex
	swept int
}

func (c *countingRecorder) IncWorkspacesSwept(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swept += n
}

func (c *countingRecorder) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.swept
}

type failingSweeper struct{}

func (failingSweeper) Sweep(time.Duration) ([]string, error) {
	return nil, errors.New("permission denied")
}

func TestNew_RejectsNonPositiveDurations(t *testing.T) {
	_, err := New(config.JanitorConfig{Interval: 0, MaxAge: time.Hour}, failingSweeper{}, nil, nil)
	require.Error(t, err)
	_, err = New(config.JanitorConfig{Interval: time.Minute}, failingSweeper{}, nil, nil)
	require.Error(t, err)
}

func TestSweepOnce_RemovesStaleWorkspaces(t *testing.T) {
	mgr := workspace.NewManager(t.TempDir())
	stale, err := mgr.Create("old-project")
	require.NoError(t, err)
	fresh, err := mgr.Create("new-project")
	require.NoError(t, err)
	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	rec := &countingRecorder{}
	j, err := New(config.JanitorConfig{Interval: time.Hour, MaxAge: time.Hour}, mgr, rec, nil)
	require.NoError(t, err)
	defer func() { _ = j.Stop(context.Background()) }()

	assert.Equal(t, 1, j.SweepOnce())
	assert.Equal(t, 1, rec.total())
	assert.NoDirExists(t, stale)
	assert.DirExists(t, fresh)
	assert.Equal(t, 0, j.SweepOnce())
}

func TestSweepOnce_ErrorIsLoggedNotFatal(t *testing.T) {
	j, err := New(config.JanitorConfig{Interval: time.Hour, MaxAge: time.Hour}, failingSweeper{}, nil, nil)
	require.NoError(t, err)
	defer func() { _ = j.Stop(context.Background()) }()
	assert.Equal(t, 0, j.SweepOnce())
}

func TestJanitor_ScheduledSweep(t *testing.T) {
	base := t.TempDir()
	mgr := workspace.NewManager(base)
	stale, err := mgr.Create("old-project")
	require.NoError(t, err)
	past := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	rec := &countingRecorder{}
	j, err := New(config.JanitorConfig{Interval: 50 * time.Millisecond, MaxAge: time.Hour}, mgr, rec, nil)
	require.NoError(t, err)
	j.Start()
	defer func() { _ = j.Stop(context.Background()) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Clean(stale))
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, rec.total())
}
