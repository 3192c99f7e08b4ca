package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitedeploy/internal/storage"
)

type seenRequest struct {
	method  string
	path    string
	query   string
	host    string
	fwdHost string
	header  string
	body    string
}

func echoUpstream(t *testing.T) (*httptest.Server, chan seenRequest) {
	t.Helper()
	seen := make(chan seenRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen <- seenRequest{
			method:  r.Method,
			path:    r.URL.Path,
			query:   r.URL.RawQuery,
			host:    r.Host,
			fwdHost: r.Header.Get("X-Forwarded-Host"),
			header:  r.Header.Get("X-Custom"),
			body:    string(body),
		}
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("upstream says hi"))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestRouter(t *testing.T, base string) *Router {
	t.Helper()
	rt, err := New(Options{StoreBaseURL: base, UpstreamTimeout: 5 * time.Second})
	require.NoError(t, err)
	return rt
}

func serve(rt http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	return rec
}

func TestRouter_ForwardsRequest(t *testing.T) {
	upstream, seen := echoUpstream(t)
	rt := newTestRouter(t, upstream.URL+"/__outputs")

	req := httptest.NewRequest(http.MethodPost, "http://brave-quiet-otter.localhost:8000/api/form?x=1", strings.NewReader("payload"))
	req.Header.Set("X-Custom", "kept")
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)

	got := <-seen
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/__outputs/brave-quiet-otter/api/form", got.path)
	assert.Equal(t, "x=1", got.query)
	assert.Equal(t, strings.TrimPrefix(upstream.URL, "http://"), got.host, "Host must be rewritten to the upstream")
	assert.Equal(t, "brave-quiet-otter.localhost:8000", got.fwdHost)
	assert.Equal(t, "kept", got.header)
	assert.Equal(t, "payload", got.body)

	assert.Equal(t, http.StatusTeapot, rec.Code, "upstream status is relayed")
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
	assert.Equal(t, "upstream says hi", rec.Body.String())
}

func TestRouter_RootRewrittenOnlyAtRoot(t *testing.T) {
	upstream, seen := echoUpstream(t)
	rt := newTestRouter(t, upstream.URL)

	serve(rt, http.MethodGet, "http://p.example.com/", nil)
	assert.Equal(t, "/p/index.html", (<-seen).path)

	serve(rt, http.MethodGet, "http://p.example.com/docs/", nil)
	assert.Equal(t, "/p/docs/", (<-seen).path, "directory-like paths are not rewritten")
}

func TestRouter_MalformedHost(t *testing.T) {
	upstream, seen := echoUpstream(t)
	rt := newTestRouter(t, upstream.URL)

	for _, host := range []string{"localhost:8000", "127.0.0.1", "Bad_Label.example.com"} {
		req := httptest.NewRequest(http.MethodGet, "http://placeholder/", nil)
		req.Host = host
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, host)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"])
		assert.Equal(t, "routing", body["code"])
	}
	assert.Empty(t, seen, "no upstream call for malformed hosts")
}

func TestRouter_UpstreamUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	rt := newTestRouter(t, base)
	rec := serve(rt, http.MethodGet, "http://p.example.com/index.html", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "artifact store unavailable")
}

func TestRouter_UpstreamTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	rt, err := New(Options{StoreBaseURL: srv.URL, UpstreamTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	rec := serve(rt, http.MethodGet, "http://p.example.com/", nil)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestNew_InvalidBase(t *testing.T) {
	for _, base := range []string{"", "not a url", "/relative/only", "http://"} {
		_, err := New(Options{StoreBaseURL: base})
		assert.Error(t, err, base)
	}
}

// storeFixture serves an FSStore over HTTP the way a public bucket would.
func storeFixture(t *testing.T) (*storage.FSStore, *httptest.Server) {
	t.Helper()
	store, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	srv := httptest.NewServer(store.Handler())
	t.Cleanup(srv.Close)
	return store, srv
}

func putArtifact(t *testing.T, store storage.ArtifactStore, key, body string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), &storage.Artifact{
		Key:         key,
		Body:        strings.NewReader(body),
		Size:        int64(len(body)),
		ContentType: storage.ContentTypeFor(key),
	}))
}

func TestRouter_DefaultDocumentLaw(t *testing.T) {
	store, srv := storeFixture(t)
	putArtifact(t, store, "__outputs/with-index/index.html", "<h1>home</h1>")
	putArtifact(t, store, "__outputs/without-index/about.html", "<p>about</p>")
	rt := newTestRouter(t, srv.URL+"/__outputs")

	root := serve(rt, http.MethodGet, "http://with-index.localhost:8000/", nil)
	explicit := serve(rt, http.MethodGet, "http://with-index.localhost:8000/index.html", nil)
	assert.Equal(t, http.StatusOK, root.Code)
	assert.Equal(t, explicit.Code, root.Code)
	assert.Equal(t, explicit.Body.String(), root.Body.String())
	assert.Equal(t, "<h1>home</h1>", root.Body.String())

	missing := serve(rt, http.MethodGet, "http://without-index.localhost:8000/", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code, "store not-found passes through")
}

func TestRouter_NotFoundPassesThrough(t *testing.T) {
	_, srv := storeFixture(t)
	rt := newTestRouter(t, srv.URL+"/__outputs")

	rec := serve(rt, http.MethodGet, "http://nobody-here.localhost:8000/page.html", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "404 page not found\n", rec.Body.String())
}

func TestRouter_Idempotent(t *testing.T) {
	store, srv := storeFixture(t)
	putArtifact(t, store, "__outputs/calm-red-owl/style.css", "body{color:red}")
	rt := newTestRouter(t, srv.URL+"/__outputs")

	first := serve(rt, http.MethodGet, "http://calm-red-owl.example.com/style.css", nil)
	second := serve(rt, http.MethodGet, "http://calm-red-owl.example.com/style.css", nil)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, first.Header().Get("Content-Type"), second.Header().Get("Content-Type"))
}

func TestRouter_QueryPreservedAgainstStore(t *testing.T) {
	store, srv := storeFixture(t)
	putArtifact(t, store, "__outputs/p/app.js", "run()")
	rt := newTestRouter(t, srv.URL+"/__outputs")

	rec := serve(rt, http.MethodGet, "http://p.example.com/app.js?v="+url.QueryEscape("1.2"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run()", rec.Body.String())
}
