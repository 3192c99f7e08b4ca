package commands

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/ecs"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/dispatcher"
	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/launcher"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/project"
	"git.home.luguber.info/inful/sitedeploy/internal/registry"
	"git.home.luguber.info/inful/sitedeploy/internal/server/handlers"
	"git.home.luguber.info/inful/sitedeploy/internal/server/httpserver"
	"git.home.luguber.info/inful/sitedeploy/internal/storage"
	"git.home.luguber.info/inful/sitedeploy/internal/workspace"
)

// DispatchCmd implements the 'dispatch' command.
type DispatchCmd struct {
	Addr     string `help:"API listen address (overrides http.api_addr)"`
	Launcher string `help:"Task launcher: ecs, nats or process (overrides launcher.type)"`
}

func (d *DispatchCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if d.Addr != "" {
		cfg.HTTP.APIAddr = d.Addr
	}
	if d.Launcher != "" {
		cfg.Launcher.Type = config.LauncherType(d.Launcher)
	}
	if err := config.ValidateConfig(cfg, dispatchSections...); err != nil {
		return err
	}
	if err := absStoreRoot(&cfg.Store); err != nil {
		return err
	}
	return RunDispatch(cfg, g.Logger)
}

// RunDispatch serves the deployment API until interrupted.
func RunDispatch(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	recorder, metricsHandler := newMetrics(cfg.Monitoring.Metrics)

	reg, err := registry.New(cfg.Registry)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to open project registry").
			WithContext("type", string(cfg.Registry.Type)).Build()
	}
	defer func() { _ = reg.Close() }()

	l, closeLauncher, err := newLauncher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLauncher()

	d, err := dispatcher.New(dispatcher.Options{
		IDs:           project.NewUniqueGenerator(project.NewWordGenerator(), reg, cfg.Dispatcher.SlugAttempts),
		Launcher:      l,
		Store:         cfg.Store,
		ProxyHost:     cfg.Dispatcher.ProxyHost,
		URLScheme:     cfg.Dispatcher.URLScheme,
		LaunchTimeout: cfg.Launcher.Timeout,
		WatchTimeout:  cfg.Build.Timeout + cfg.Launcher.Timeout,
		Recorder:      recorder,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer d.Close()
	deploy, err := handlers.NewDeployHandlers(d, recorder, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting dispatcher",
		logfields.Launcher(l.Name()),
		slog.String("registry", string(cfg.Registry.Type)),
		slog.String("proxy_host", cfg.Dispatcher.ProxyHost))

	srv, err := startServer(ctx, logger,
		httpserver.Endpoint{Name: "api", Addr: cfg.HTTP.APIAddr, Handler: httpserver.APIHandler(deploy)},
		httpserver.Endpoint{
			Name:    "admin",
			Addr:    cfg.HTTP.AdminAddr,
			Handler: httpserver.AdminHandler(handlers.NewMonitoringHandlers("dispatcher", nil), cfg.Monitoring.Metrics.Path, metricsHandler),
		},
	)
	if err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping dispatcher...")
	return stopServer(logger, srv)
}

// newLauncher builds the configured Task Launcher and a function releasing it.
func newLauncher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (launcher.Launcher, func(), error) {
	noop := func() {}
	switch cfg.Launcher.Type {
	case config.LauncherECS:
		awsCfg, err := storage.LoadAWSConfig(ctx, cfg.Store)
		if err != nil {
			return nil, noop, errors.WrapError(err, errors.CategoryConfig, "failed to load AWS configuration").Build()
		}
		return launcher.NewECSLauncher(ecs.NewFromConfig(awsCfg), cfg.Launcher.ECS), noop, nil
	case config.LauncherNATS:
		client, err := launcher.NewNATSClient(ctx, cfg.Launcher.NATS)
		if err != nil {
			return nil, noop, err
		}
		return launcher.NewNATSLauncher(client), func() { _ = client.Close() }, nil
	case config.LauncherProcess:
		pl, err := launcher.NewProcessLauncher(launcher.ProcessOptions{
			Binary:     cfg.Launcher.Process.Binary,
			Workspaces: workspace.NewManager(cfg.Launcher.Process.WorkspaceRoot),
			Build:      cfg.Build,
			Logger:     logger,
		})
		if err != nil {
			return nil, noop, err
		}
		return pl, noop, nil
	default:
		return nil, noop, errors.ConfigError("unsupported launcher type").
			WithContext("type", string(cfg.Launcher.Type)).Build()
	}
}
