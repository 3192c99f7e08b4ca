package httpserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitedeploy/internal/dispatcher"
	"git.home.luguber.info/inful/sitedeploy/internal/server/handlers"
)

type okDispatcher struct{}

func (okDispatcher) Dispatch(context.Context, string) (*dispatcher.Deployment, error) {
	return &dispatcher.Deployment{ProjectID: "calm-red-owl", URL: "http://calm-red-owl.localhost:8000"}, nil
}

func startServer(t *testing.T, endpoints ...Endpoint) *Server {
	t.Helper()
	s := New(nil, endpoints...)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func TestServer_APIAndAdmin(t *testing.T) {
	deploy, err := handlers.NewDeployHandlers(okDispatcher{}, nil, nil)
	require.NoError(t, err)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })

	s := startServer(t,
		Endpoint{Name: "api", Addr: "127.0.0.1:0", Handler: APIHandler(deploy)},
		Endpoint{Name: "admin", Addr: "127.0.0.1:0", Handler: AdminHandler(handlers.NewMonitoringHandlers("dispatcher", nil), "/metrics", metrics)},
	)
	api := "http://" + s.Addr("api").String()
	admin := "http://" + s.Addr("admin").String()

	resp, err := http.Post(api+"/project", "application/json", strings.NewReader(`{"gitUrl":"https://github.com/example/site.git"}`))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"projectSlug":"calm-red-owl"`)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(api + "/project")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(api + "/elsewhere")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, path := range []string{"/health", "/healthz", "/ready", "/metrics"} {
		resp, err := http.Get(admin + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestServer_PortConflictFailsFast(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = ln.Close() }()

	s := New(nil,
		Endpoint{Name: "proxy", Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()},
		Endpoint{Name: "admin", Addr: ln.Addr().String(), Handler: http.NotFoundHandler()},
	)
	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("admin address %s", ln.Addr()))
	assert.Nil(t, s.Addr("proxy"))
}
