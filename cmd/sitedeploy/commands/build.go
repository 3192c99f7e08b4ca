package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus/push"

	"git.home.luguber.info/inful/sitedeploy/internal/build"
	"git.home.luguber.info/inful/sitedeploy/internal/config"
	"git.home.luguber.info/inful/sitedeploy/internal/git"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/logstream"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/storage"
)

// BuildCmd implements the 'build' command. It reads every parameter from the
// environment the Task Launcher injected and ignores the configuration file.
type BuildCmd struct {
	PushGateway string `name:"push-gateway" env:"SITEDEPLOY_PUSHGATEWAY" help:"Prometheus Pushgateway URL receiving the build metrics"`
}

func (b *BuildCmd) Run(g *Global, _ *CLI) error {
	config.LoadDotEnv()
	wc, err := config.FromEnvironment(os.LookupEnv)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return RunBuild(ctx, wc, b.PushGateway, g.Logger)
}

// RunBuild clones, builds and uploads one deployment.
func RunBuild(ctx context.Context, wc *config.WorkerConfig, pushGateway string, logger *slog.Logger) error {
	store, err := storage.New(ctx, wc.Store)
	if err != nil {
		return err
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	reg := metrics.NewRegistry()
	if pushGateway != "" {
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	progress := logstream.NewWriter(logger, slog.LevelDebug, "git", logfields.ProjectID(wc.ProjectID))
	defer func() { _ = progress.Close() }()

	worker, err := build.NewWorker(build.Options{
		Config:   wc,
		Store:    store,
		Cloner:   git.NewClient(wc.Build.CloneDepth).WithProgress(progress),
		Recorder: recorder,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	report, runErr := worker.Run(ctx)
	logReport(logger, report, runErr)

	if pushGateway != "" {
		if err := push.New(pushGateway, "sitedeploy_build").
			Gatherer(reg).
			Grouping("project", wc.ProjectID).
			PushContext(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to push build metrics", logfields.URL(pushGateway), logfields.Error(err))
		}
	}
	return runErr
}

func logReport(logger *slog.Logger, r *build.Report, err error) {
	attrs := []any{
		logfields.ProjectID(r.ProjectID),
		slog.String("outcome", string(r.Outcome)),
		logfields.ExitCode(r.ExitCode),
		slog.Int("uploaded", len(r.Uploaded)),
		slog.Int("failed", len(r.Failed)),
		logfields.Bytes(r.Bytes),
		logfields.Duration(r.Duration),
	}
	if r.Commit != "" {
		attrs = append(attrs, slog.String("commit", r.Commit))
	}
	if len(r.Skipped) > 0 {
		attrs = append(attrs, slog.Any("skipped", r.Skipped))
	}
	for _, f := range r.Failed {
		logger.Error("Upload failed", logfields.Key(f.Key), logfields.Error(f.Err))
	}
	if err != nil {
		logger.Error("Deployment build failed", append(attrs, logfields.Error(err))...)
		return
	}
	logger.Info("Deployment build finished", attrs...)
}
