package router

import (
	"context"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitedeploy/internal/build"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/storage"
)

func deploy(t *testing.T, store storage.ArtifactStore, projectID, command string) (*build.Report, error) {
	t.Helper()
	workDir := filepath.Join(t.TempDir(), "checkout")
	cfg := &config.WorkerConfig{
		ProjectID: projectID,
		WorkDir:   workDir,
		Store:     config.StoreConfig{Type: config.StoreFS, OutputRoot: "__outputs"},
		Build: config.BuildConfig{
			Command:           command,
			OutputDir:         "dist",
			Timeout:           time.Minute,
			UploadConcurrency: 4,
			SkipClone:         true,
		},
	}
	require.NoError(t, os.MkdirAll(workDir, 0o750))
	w, err := build.NewWorker(build.Options{Config: cfg, Store: store})
	require.NoError(t, err)
	return w.Run(context.Background())
}

func TestBuildThenServe(t *testing.T) {
	store, srv := storeFixture(t)
	rt := newTestRouter(t, srv.URL+"/__outputs")

	_, err := deploy(t, store, "brave-quiet-otter",
		`mkdir dist && printf '<h1>home</h1>' > dist/index.html && printf '<p>about us</p>' > dist/about.html`)
	require.NoError(t, err)

	rec := serve(rt, http.MethodGet, "http://brave-quiet-otter.localhost:8000/about.html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<p>about us</p>", rec.Body.String())
	mt, _, err := mime.ParseMediaType(rec.Header().Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "text/html", mt)

	rec = serve(rt, http.MethodGet, "http://brave-quiet-otter.localhost:8000/", nil)
	assert.Equal(t, "<h1>home</h1>", rec.Body.String())
}

func TestSubdirectoriesOnlyOutput(t *testing.T) {
	store := storage.NewMemoryStore()
	report, err := deploy(t, store, "empty-dirs", `mkdir -p dist/a/b dist/c`)
	require.NoError(t, err)
	assert.Empty(t, report.Uploaded)
	assert.Zero(t, store.Puts())
}

func TestConcurrentDeploymentsAreIsolated(t *testing.T) {
	store, srv := storeFixture(t)
	rt := newTestRouter(t, srv.URL+"/__outputs")

	var wg sync.WaitGroup
	reports := make([]*build.Report, 2)
	for i, id := range []string{"first-site", "second-site"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := deploy(t, store, id, `mkdir dist && printf '`+id+`' > dist/index.html && printf 'shared' > dist/common.css`)
			assert.NoError(t, err)
			reports[i] = r
		}()
	}
	wg.Wait()

	seen := map[string]string{}
	for _, r := range reports {
		require.NotNil(t, r)
		for _, key := range r.Uploaded {
			prev, dup := seen[key]
			assert.False(t, dup, "key %s written by %s and %s", key, prev, r.ProjectID)
			seen[key] = r.ProjectID
			assert.True(t, strings.HasPrefix(key, "__outputs/"+r.ProjectID+"/"))
		}
	}

	// A failing rebuild of the second site leaves the first untouched.
	_, err := deploy(t, store, "second-site", `mkdir dist && printf 'broken' > dist/index.html && exit 1`)
	require.Error(t, err)

	assert.Equal(t, "first-site", serve(rt, http.MethodGet, "http://first-site.localhost/", nil).Body.String())
	assert.Equal(t, "second-site", serve(rt, http.MethodGet, "http://second-site.localhost/", nil).Body.String())
}
