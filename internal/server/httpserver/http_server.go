// Package httpserver runs the HTTP listeners of a sitedeploy component.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	smw "git.home.luguber.info/inful/sitedeploy/internal/server/middleware"
)

// Endpoint is one listener and the handler behind it.
type Endpoint struct {
	Name    string
	Addr    string
	Handler http.Handler
	// WriteTimeout of zero means none, which proxies streaming large
	// artifacts need.
	WriteTimeout time.Duration
}

// Server manages the HTTP endpoints of a component.
type Server struct {
	endpoints []Endpoint
	logger    *slog.Logger
	mchain    func(http.Handler) http.Handler

	mu      sync.Mutex
	servers []*http.Server
	addrs   map[string]net.Addr
}

// New constructs a server for the given endpoints. Every handler is wrapped in
// the logging and recovery middleware chain.
func New(logger *slog.Logger, endpoints ...Endpoint) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		endpoints: endpoints,
		logger:    logger,
		mchain:    smw.Chain(logger, ferrors.NewHTTPErrorAdapter(logger)),
		addrs:     make(map[string]net.Addr),
	}
}

// Start binds every endpoint before serving any of them, so a port conflict
// fails the whole start with one aggregate error.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listeners := make([]net.Listener, len(s.endpoints))
	var bindErrs []error
	for i, ep := range s.endpoints {
		ln, err := lc.Listen(ctx, "tcp", ep.Addr)
		if err != nil {
			bindErrs = append(bindErrs, fmt.Errorf("%s address %s: %w", ep.Name, ep.Addr, err))
			continue
		}
		listeners[i] = ln
	}
	if len(bindErrs) > 0 {
		for _, ln := range listeners {
			if ln != nil {
				_ = ln.Close()
			}
		}
		return fmt.Errorf("http startup failed: %w", errors.Join(bindErrs...))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	attrs := make([]any, 0, len(s.endpoints))
	for i, ep := range s.endpoints {
		srv := &http.Server{
			Handler:           s.mchain(ep.Handler),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      ep.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		}
		s.servers = append(s.servers, srv)
		s.addrs[ep.Name] = listeners[i].Addr()
		s.serve(ep.Name, srv, listeners[i])
		attrs = append(attrs, slog.String(ep.Name+"_addr", listeners[i].Addr().String()))
	}
	s.logger.Info("HTTP servers started", attrs...)
	return nil
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(fmt.Sprintf("%s server error", name), "error", err)
		}
	}()
}

// Addr returns the bound address of a named endpoint after Start.
func (s *Server) Addr(name string) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[name]
}

// Stop gracefully shuts down all HTTP servers in reverse order.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	servers := s.servers
	s.servers = nil
	s.mu.Unlock()

	var errs []error
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s server shutdown: %w", s.endpoints[i].Name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	s.logger.Info("HTTP servers stopped")
	return nil
}
