package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/git"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/storage"
)

// Cloner checks out a repository into dest.
type Cloner interface {
	Clone(ctx context.Context, url, dest string) (*git.CloneResult, error)
}

// Options wires a Worker.
type Options struct {
	Config   *config.WorkerConfig
	Store    storage.ArtifactStore
	Cloner   Cloner
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Worker executes one deployment build.
type Worker struct {
	cfg      *config.WorkerConfig
	store    storage.ArtifactStore
	cloner   Cloner
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewWorker(opts Options) (*Worker, error) {
	if opts.Config == nil {
		return nil, ferrors.ConfigError("worker config is required").Build()
	}
	if opts.Store == nil {
		return nil, ferrors.ConfigError("artifact store is required").Build()
	}
	if opts.Cloner == nil {
		opts.Cloner = git.NewClient(opts.Config.Build.CloneDepth)
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	logger := opts.Logger.With(logfields.ProjectID(opts.Config.ProjectID))
	return &Worker{
		cfg:      opts.Config,
		store:    opts.Store,
		cloner:   opts.Cloner,
		recorder: opts.Recorder,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Run performs checkout, build and upload. The returned report is never nil.
// The error is a build error when the command fails or produces no output, and
// an upload error when some files could not be stored.
func (w *Worker) Run(ctx context.Context) (*Report, error) {
	start := w.now()
	report := &Report{ProjectID: w.cfg.ProjectID, ExitCode: -1}
	defer func() {
		report.Duration = w.now().Sub(start)
		w.recorder.ObserveBuildDuration(report.Duration)
		w.recorder.IncBuildOutcome(report.Outcome)
	}()

	workDir, err := filepath.Abs(w.cfg.WorkDir)
	if err != nil {
		report.Outcome = metrics.BuildCheckoutError
		return report, ferrors.InternalError("cannot resolve work directory").WithCause(err).Build()
	}

	if !w.cfg.Build.SkipClone {
		w.logger.Info("Cloning repository", logfields.RepoURL(w.cfg.RepositoryURL), logfields.Path(workDir))
		res, cerr := w.cloner.Clone(ctx, w.cfg.RepositoryURL, workDir)
		if cerr != nil {
			report.Outcome = metrics.BuildCheckoutError
			return report, cerr
		}
		report.Commit = res.Commit
	}

	w.logger.Info("Running build command", slog.String("command", w.cfg.Build.Command))
	code, err := runCommand(ctx, workDir, w.cfg.Build.Command, w.cfg.Build.Timeout, w.logger)
	report.ExitCode = code
	if err != nil {
		report.Outcome = metrics.BuildFailed
		return report, err
	}

	outputDir := filepath.Join(workDir, w.cfg.Build.OutputDir)
	info, err := os.Stat(outputDir)
	if err != nil || !info.IsDir() {
		report.Outcome = metrics.BuildFailed
		return report, ferrors.BuildError("build produced no output directory").
			WithCause(err).
			WithContext("output_dir", w.cfg.Build.OutputDir).
			Build()
	}

	files, skipped, err := collect(outputDir)
	report.Skipped = skipped
	if err != nil {
		report.Outcome = metrics.BuildFailed
		return report, ferrors.BuildError("failed to enumerate build output").
			WithCause(err).WithContext("output_dir", w.cfg.Build.OutputDir).Build()
	}
	w.logger.Info("Uploading build output", slog.Int("files", len(files)), slog.Int("skipped", len(skipped)))

	u := &uploader{
		store:       w.store,
		root:        w.cfg.Store.OutputRoot,
		projectID:   w.cfg.ProjectID,
		concurrency: w.cfg.Build.UploadConcurrency,
		recorder:    w.recorder,
		logger:      w.logger,
	}
	u.upload(ctx, files, report)

	if len(report.Failed) > 0 {
		report.Outcome = metrics.BuildUploadPartial
		return report, ferrors.UploadError(fmt.Sprintf("%d of %d artifacts failed to upload", len(report.Failed), len(files))).
			WithContext("failed_keys", report.FailedKeys()).
			WithContext("uploaded", len(report.Uploaded)).
			Build()
	}

	report.Outcome = metrics.BuildSucceeded
	w.logger.Info("Deployment build complete",
		slog.Int("uploaded", len(report.Uploaded)),
		logfields.Bytes(report.Bytes),
		logfields.Duration(w.now().Sub(start)))
	return report, nil
}

// Partial reports whether err signals that some but not necessarily all
// artifacts were stored.
func Partial(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryUpload)
}
