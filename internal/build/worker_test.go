package build

import (
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/git"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/storage"
)

const siteScript = `mkdir -p dist/css dist/blog &&
printf '<h1>home</h1>' > dist/index.html &&
printf 'body{}' > dist/css/site.css &&
printf '<p>post</p>' > dist/blog/index.html`

type fakeCloner struct {
	calls []string
	err   error
}

func (f *fakeCloner) Clone(_ context.Context, url, dest string) (*git.CloneResult, error) {
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return nil, err
	}
	return &git.CloneResult{Path: dest, Commit: "0123456789abcdef"}, nil
}

func workerConfig(t *testing.T, command string) *config.WorkerConfig {
	t.Helper()
	return &config.WorkerConfig{
		RepositoryURL: "https://github.com/example/site.git",
		ProjectID:     "brave-quiet-otter",
		WorkDir:       filepath.Join(t.TempDir(), "output"),
		Store:         config.StoreConfig{Type: config.StoreFS, OutputRoot: "__outputs"},
		Build: config.BuildConfig{
			Command:           command,
			OutputDir:         "dist",
			Timeout:           time.Minute,
			UploadConcurrency: 2,
		},
	}
}

func newTestWorker(t *testing.T, cfg *config.WorkerConfig, store storage.ArtifactStore) (*Worker, *fakeCloner) {
	t.Helper()
	cloner := &fakeCloner{}
	w, err := NewWorker(Options{Config: cfg, Store: store, Cloner: cloner})
	require.NoError(t, err)
	return w, cloner
}

func mediaType(t *testing.T, ct string) string {
	t.Helper()
	mt, _, err := mime.ParseMediaType(ct)
	require.NoError(t, err)
	return mt
}

func TestWorker_RunUploadsEveryFile(t *testing.T) {
	store := storage.NewMemoryStore()
	w, cloner := newTestWorker(t, workerConfig(t, siteScript), store)

	report, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://github.com/example/site.git"}, cloner.calls)
	assert.Equal(t, "0123456789abcdef", report.Commit)
	assert.Equal(t, 0, report.ExitCode)
	assert.True(t, report.Succeeded())
	assert.Equal(t, metrics.BuildSucceeded, report.Outcome)

	want := []string{
		"__outputs/brave-quiet-otter/blog/index.html",
		"__outputs/brave-quiet-otter/css/site.css",
		"__outputs/brave-quiet-otter/index.html",
	}
	assert.Equal(t, want, report.Uploaded)
	assert.Equal(t, want, store.Keys())
	assert.Empty(t, report.Failed)

	obj, err := store.Get(context.Background(), "__outputs/brave-quiet-otter/index.html")
	require.NoError(t, err)
	assert.Equal(t, "text/html", mediaType(t, obj.ContentType))
	body, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>home</h1>", string(body))

	css, err := store.Get(context.Background(), "__outputs/brave-quiet-otter/css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "text/css", mediaType(t, css.ContentType))
	assert.Equal(t, int64(len("<h1>home</h1>")+len("body{}")+len("<p>post</p>")), report.Bytes)
}

func TestWorker_NonZeroExitUploadsNothing(t *testing.T) {
	store := storage.NewMemoryStore()
	w, _ := newTestWorker(t, workerConfig(t, siteScript+" && exit 2"), store)

	report, err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
	assert.Equal(t, 2, report.ExitCode)
	assert.Equal(t, metrics.BuildFailed, report.Outcome)
	assert.Zero(t, store.Puts())
}

func TestWorker_MissingOutputDirectory(t *testing.T) {
	store := storage.NewMemoryStore()
	w, _ := newTestWorker(t, workerConfig(t, "echo nothing to build"), store)

	report, err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
	assert.Equal(t, 0, report.ExitCode)
	assert.Zero(t, store.Puts())
}

func TestWorker_EmptyOutputSucceeds(t *testing.T) {
	store := storage.NewMemoryStore()
	w, _ := newTestWorker(t, workerConfig(t, "mkdir dist"), store)

	report, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Uploaded)
	assert.Zero(t, store.Puts())
}

func TestWorker_PartialUploadFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailOn("__outputs/brave-quiet-otter/css/site.css", errors.New("access denied"))
	w, _ := newTestWorker(t, workerConfig(t, siteScript), store)

	report, err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryUpload))
	assert.True(t, Partial(err))

	assert.Equal(t, metrics.BuildUploadPartial, report.Outcome)
	assert.Equal(t, []string{"__outputs/brave-quiet-otter/css/site.css"}, report.FailedKeys())
	assert.Equal(t, []string{
		"__outputs/brave-quiet-otter/blog/index.html",
		"__outputs/brave-quiet-otter/index.html",
	}, report.Uploaded)
	assert.Equal(t, 3, store.Puts(), "every file must be attempted")
}

func TestWorker_CloneFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	cfg := workerConfig(t, siteScript)
	cloner := &fakeCloner{err: git.GitError("repository not found").Build()}
	w, err := NewWorker(Options{Config: cfg, Store: store, Cloner: cloner})
	require.NoError(t, err)

	report, err := w.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, metrics.BuildCheckoutError, report.Outcome)
	assert.Zero(t, store.Puts())
}

func TestWorker_SkipClone(t *testing.T) {
	cfg := workerConfig(t, siteScript)
	cfg.Build.SkipClone = true
	require.NoError(t, os.MkdirAll(cfg.WorkDir, 0o750))

	store := storage.NewMemoryStore()
	w, cloner := newTestWorker(t, cfg, store)

	report, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cloner.calls)
	assert.Empty(t, report.Commit)
	assert.Len(t, report.Uploaded, 3)
}

func TestWorker_Timeout(t *testing.T) {
	cfg := workerConfig(t, "exec sleep 5")
	cfg.Build.Timeout = 100 * time.Millisecond
	w, _ := newTestWorker(t, cfg, storage.NewMemoryStore())

	start := time.Now()
	_, err := w.Run(context.Background())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestWorker_UploadsToFSStoreLayout(t *testing.T) {
	root := t.TempDir()
	store, err := storage.NewFSStore(root)
	require.NoError(t, err)
	w, _ := newTestWorker(t, workerConfig(t, siteScript), store)

	_, err = w.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "__outputs", "brave-quiet-otter", "css", "site.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(data))
}

func TestNewWorker_RequiresDependencies(t *testing.T) {
	_, err := NewWorker(Options{Store: storage.NewMemoryStore()})
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
	_, err = NewWorker(Options{Config: &config.WorkerConfig{}})
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}
