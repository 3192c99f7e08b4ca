package commands

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/server/httpserver"
)

// shutdownTimeout bounds graceful shutdown of every component.
const shutdownTimeout = 30 * time.Second

// Global carries state shared by all subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (defaults only when empty)" env:"SITEDEPLOY_CONFIG" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Dispatch    DispatchCmd `cmd:"" help:"Serve the deployment API (POST /project)"`
	Route       RouteCmd    `cmd:"" help:"Serve deployed sites by subdomain from the artifact store"`
	Build       BuildCmd    `cmd:"" help:"Run one deployment build from the task environment"`
	Agent       AgentCmd    `cmd:"" help:"Execute queued deployment tasks from NATS"`
	Store       StoreCmd    `cmd:"" help:"Serve a local filesystem artifact store over HTTP"`
	Init        InitCmd     `cmd:"" help:"Write an example configuration file"`
	VersionInfo VersionCmd  `cmd:"" name:"version" help:"Print version information"`
}

// AfterApply runs after flag parsing and installs an environment-driven logger.
// Commands that load a configuration file replace it with the configured one.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	lc := config.LoggingConfig{Level: config.NormalizeLogLevel(os.Getenv(config.EnvLogLevel))}
	slog.SetDefault(lc.NewLogger(os.Stderr, c.Verbose))
	return nil
}

// loadConfig reads the configuration and rebuilds the default logger from it.
// Commands apply their flag overrides and then validate the sections they use.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Read(c.Config)
	if err != nil {
		if _, ok := errors.AsClassified(err); ok {
			return nil, err
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to load configuration").
			WithContext("path", c.Config).Build()
	}
	logger := cfg.Monitoring.Logging.NewLogger(os.Stderr, c.Verbose)
	slog.SetDefault(logger)
	g.Logger = logger
	return cfg, nil
}

// Sections each long-running command reads; see config.ValidateConfig.
var (
	dispatchSections = []config.Section{config.SectionDispatcher, config.SectionStore, config.SectionLauncher, config.SectionRegistry, config.SectionBuild}
	routeSections    = []config.Section{config.SectionRouter}
	agentSections    = []config.Section{config.SectionAgent, config.SectionStore, config.SectionBuild}
	storeSections    = []config.Section{config.SectionStore}
)

// newMetrics returns the recorder and, unless disabled, the scrape handler.
func newMetrics(cfg config.MetricsConfig) (metrics.Recorder, http.Handler) {
	if cfg.Disabled {
		return metrics.NoopRecorder{}, nil
	}
	reg := metrics.NewRegistry()
	return metrics.NewPrometheusRecorder(reg), metrics.HTTPHandler(reg)
}

// absStoreRoot makes a filesystem store root independent of the working
// directory, so child processes resolve it to the same place.
func absStoreRoot(store *config.StoreConfig) error {
	if store.Type != config.StoreFS {
		return nil
	}
	abs, err := filepath.Abs(store.Root)
	if err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "invalid store root").
			WithContext("root", store.Root).Build()
	}
	store.Root = abs
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func startServer(ctx context.Context, logger *slog.Logger, endpoints ...httpserver.Endpoint) (*httpserver.Server, error) {
	srv := httpserver.New(logger, endpoints...)
	if err := srv.Start(ctx); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to start HTTP listeners").Build()
	}
	return srv, nil
}

func stopServer(logger *slog.Logger, srv *httpserver.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to stop HTTP server").Build()
	}
	logger.Info("Stopped")
	return nil
}

// serveUntilSignal runs endpoints until SIGINT or SIGTERM.
func serveUntilSignal(logger *slog.Logger, endpoints ...httpserver.Endpoint) error {
	ctx, cancel := signalContext()
	defer cancel()

	srv, err := startServer(ctx, logger, endpoints...)
	if err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping...")
	return stopServer(logger, srv)
}
