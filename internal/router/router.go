package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
)

// Options configures a Router.
type Options struct {
	// StoreBaseURL is the public base of all project namespaces,
	// e.g. https://bucket.s3.region.amazonaws.com/__outputs.
	StoreBaseURL string
	// UpstreamTimeout bounds the wait for upstream response headers. It is
	// ignored when Transport is set.
	UpstreamTimeout time.Duration
	Transport       http.RoundTripper
	Recorder        metrics.Recorder
	Logger          *slog.Logger
}

// Router is the artifact-serving reverse proxy.
type Router struct {
	base     *url.URL
	proxy    *httputil.ReverseProxy
	recorder metrics.Recorder
	logger   *slog.Logger
	errors   *ferrors.HTTPErrorAdapter
}

type targetKey struct{}

func New(opts Options) (*Router, error) {
	base, err := url.Parse(opts.StoreBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, ferrors.ConfigError("invalid store base URL").
			WithCause(err).WithContext("store_base_url", opts.StoreBaseURL).Build()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.ResponseHeaderTimeout = opts.UpstreamTimeout
		transport = t
	}

	rt := &Router{
		base:     base,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		errors:   ferrors.NewHTTPErrorAdapter(opts.Logger),
	}
	rt.proxy = &httputil.ReverseProxy{
		Rewrite:      rewrite,
		Transport:    transport,
		ErrorHandler: rt.upstreamError,
	}
	return rt, nil
}

// rewrite points the outbound request at the upstream chosen in ServeHTTP.
// Host is cleared so the upstream sees its own name.
func rewrite(pr *httputil.ProxyRequest) {
	target := pr.In.Context().Value(targetKey{}).(*url.URL)
	pr.Out.URL.Scheme = target.Scheme
	pr.Out.URL.Host = target.Host
	pr.Out.URL.Path = target.Path
	pr.Out.URL.RawPath = ""
	pr.Out.URL.RawQuery = target.RawQuery
	pr.Out.Host = ""
	pr.SetXForwarded()
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	defer func() { rt.recorder.ObserveProxyRequest(sw.status, time.Since(start)) }()

	id, err := ProjectFromHost(r.Host)
	if err != nil {
		rt.recorder.IncRoutingError("invalid_host")
		rt.errors.WriteErrorResponse(sw, r, err)
		return
	}

	target := UpstreamURL(rt.base, id, r.URL.Path, r.URL.RawQuery)
	rt.logger.Debug("Proxying request",
		logfields.Host(r.Host), logfields.ProjectID(string(id)), logfields.URL(target.String()))

	ctx := context.WithValue(r.Context(), targetKey{}, target)
	rt.proxy.ServeHTTP(sw, r.WithContext(ctx))
}

func (rt *Router) upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		// Client went away.
		w.WriteHeader(499)
		return
	}

	status := http.StatusBadGateway
	reason := "upstream_unreachable"
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		status = http.StatusGatewayTimeout
		reason = "upstream_timeout"
	}
	rt.recorder.IncRoutingError(reason)
	rt.logger.Warn("Upstream request failed",
		logfields.Host(r.Host), logfields.Path(r.URL.Path), logfields.Status(status), logfields.Error(err))

	payload := rt.errors.FormatErrorResponse(ferrors.NetworkError("artifact store unavailable").
		WithContext("reason", reason).Build())
	writeJSON(w, status, payload)
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// statusWriter records the status code relayed to the client.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
