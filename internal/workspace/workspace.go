package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// Prefix marks directories owned by a Manager.
const Prefix = "sitedeploy-"

// Manager creates and removes deployment workspaces below a base directory.
type Manager struct {
	baseDir string
	now     func() time.Time
}

// NewManager creates a workspace manager. An empty baseDir means os.TempDir().
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir, now: time.Now}
}

// BaseDir returns the directory workspaces are created in.
func (m *Manager) BaseDir() string { return m.baseDir }

// Create makes a fresh workspace for a project and returns its path.
func (m *Manager) Create(projectID string) (string, error) {
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	pattern := fmt.Sprintf("%s%s-%s-*", Prefix, projectID, m.now().Format("20060102-150405"))
	dir, err := os.MkdirTemp(m.baseDir, pattern)
	if err != nil {
		return "", fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Debug("Created workspace", logfields.ProjectID(projectID), logfields.Path(dir))
	return dir, nil
}

// CreateSubdir creates a subdirectory within a workspace.
func (m *Manager) CreateSubdir(workspace, name string) (string, error) {
	subdir := filepath.Join(workspace, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}

// Cleanup removes a workspace. Paths outside the base directory are refused.
func (m *Manager) Cleanup(workspace string) error {
	if workspace == "" {
		return nil
	}
	if !m.owns(workspace) {
		return fmt.Errorf("refusing to remove %s: not a workspace of %s", workspace, m.baseDir)
	}
	if err := os.RemoveAll(workspace); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(workspace))
	return nil
}

// Sweep removes workspaces last modified more than maxAge ago and returns the
// removed paths.
func (m *Manager) Sweep(maxAge time.Duration) ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	cutoff := m.now().Add(-maxAge)
	var removed []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), Prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(m.baseDir, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("Failed to remove stale workspace", logfields.Path(dir), logfields.Error(err))
			continue
		}
		removed = append(removed, dir)
	}
	return removed, nil
}

func (m *Manager) owns(dir string) bool {
	rel, err := filepath.Rel(m.baseDir, dir)
	if err != nil {
		return false
	}
	return !strings.Contains(rel, string(filepath.Separator)) && strings.HasPrefix(rel, Prefix)
}
