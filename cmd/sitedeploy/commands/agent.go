package commands

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/sitedeploy/internal/agent"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/janitor"
	"git.home.luguber.info/inful/sitedeploy/internal/launcher"
	"git.home.luguber.info/inful/sitedeploy/internal/server/handlers"
	"git.home.luguber.info/inful/sitedeploy/internal/server/httpserver"
	"git.home.luguber.info/inful/sitedeploy/internal/workspace"
)

// AgentCmd implements the 'agent' command.
type AgentCmd struct {
	Concurrency int `short:"n" help:"Tasks executed at once (overrides agent.concurrency)"`
}

func (a *AgentCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if a.Concurrency > 0 {
		cfg.Agent.Concurrency = a.Concurrency
	}
	if err := config.ValidateConfig(cfg, agentSections...); err != nil {
		return err
	}
	if err := absStoreRoot(&cfg.Store); err != nil {
		return err
	}
	return RunAgent(cfg, g.Logger)
}

// RunAgent consumes queued tasks and runs each as a local build process.
func RunAgent(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	recorder, metricsHandler := newMetrics(cfg.Monitoring.Metrics)

	client, err := launcher.NewNATSClient(ctx, cfg.Launcher.NATS)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	consumer, err := agent.EnsureConsumer(ctx, client.JetStream(), cfg.Launcher.NATS, cfg.Agent)
	if err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to create task consumer").
			WithContext("stream", cfg.Launcher.NATS.Stream).Build()
	}

	workspaces := workspace.NewManager(cfg.Launcher.Process.WorkspaceRoot)
	pl, err := launcher.NewProcessLauncher(launcher.ProcessOptions{
		Binary:     cfg.Launcher.Process.Binary,
		Workspaces: workspaces,
		Build:      cfg.Build,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ag, err := agent.New(agent.Options{
		Launcher:    pl,
		Statuses:    client.Statuses(),
		Recorder:    recorder,
		Concurrency: cfg.Agent.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	jan, err := janitor.New(cfg.Janitor, workspaces, recorder, logger)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to create workspace janitor").Build()
	}
	jan.Start()
	defer func() { _ = jan.Stop(context.Background()) }()

	srv, err := startServer(ctx, logger, httpserver.Endpoint{
		Name:    "admin",
		Addr:    cfg.HTTP.AdminAddr,
		Handler: httpserver.AdminHandler(handlers.NewMonitoringHandlers("agent", nil), cfg.Monitoring.Metrics.Path, metricsHandler),
	})
	if err != nil {
		return err
	}

	logger.Info("Starting build agent",
		slog.String("stream", cfg.Launcher.NATS.Stream),
		slog.String("durable", cfg.Agent.Durable),
		slog.Int("concurrency", cfg.Agent.Concurrency))
	runErr := ag.Run(ctx, consumer)
	logger.Info("Shutdown signal received, stopping agent...")

	if err := stopServer(logger, srv); err != nil {
		return err
	}
	return runErr
}
