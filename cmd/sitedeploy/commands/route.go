package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/router"
	"git.home.luguber.info/inful/sitedeploy/internal/server/handlers"
	"git.home.luguber.info/inful/sitedeploy/internal/server/httpserver"
)

// RouteCmd implements the 'route' command.
type RouteCmd struct {
	Addr         string `help:"Proxy listen address (overrides http.proxy_addr)"`
	StoreBaseURL string `name:"store-base-url" help:"Public base URL of the project namespaces (overrides router.store_base_url)"`
}

func (r *RouteCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if r.Addr != "" {
		cfg.HTTP.ProxyAddr = r.Addr
	}
	if r.StoreBaseURL != "" {
		cfg.Router.StoreBaseURL = r.StoreBaseURL
	}
	if err := config.ValidateConfig(cfg, routeSections...); err != nil {
		return err
	}
	return RunRoute(cfg, g.Logger)
}

// RunRoute serves deployed sites until interrupted.
func RunRoute(cfg *config.Config, logger *slog.Logger) error {
	recorder, metricsHandler := newMetrics(cfg.Monitoring.Metrics)

	rt, err := router.New(router.Options{
		StoreBaseURL:    cfg.Router.StoreBaseURL,
		UpstreamTimeout: cfg.Router.UpstreamTimeout,
		Recorder:        recorder,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	logger.Info("Starting artifact router", logfields.URL(cfg.Router.StoreBaseURL))
	return serveUntilSignal(logger,
		httpserver.Endpoint{Name: "proxy", Addr: cfg.HTTP.ProxyAddr, Handler: rt},
		httpserver.Endpoint{
			Name:    "admin",
			Addr:    cfg.HTTP.AdminAddr,
			Handler: httpserver.AdminHandler(handlers.NewMonitoringHandlers("router", nil), cfg.Monitoring.Metrics.Path, metricsHandler),
		},
	)
}
