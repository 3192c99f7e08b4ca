package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/launcher"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/metrics"
	"git.home.luguber.info/inful/sitedeploy/internal/project"
)

// IDSource yields identifiers not handed out before.
type IDSource interface {
	Next(ctx context.Context) (project.ID, error)
}

// Options wires a Dispatcher.
type Options struct {
	IDs           IDSource
	Launcher      launcher.Launcher
	Store         config.StoreConfig
	ProxyHost     string
	URLScheme     string
	LaunchTimeout time.Duration
	// WatchTimeout > 0 makes the dispatcher log each task's outcome in the
	// background. The response never waits for it.
	WatchTimeout time.Duration
	Recorder     metrics.Recorder
	Logger       *slog.Logger
}

// Dispatcher launches one isolated build per accepted request.
type Dispatcher struct {
	ids           IDSource
	launcher      launcher.Launcher
	store         config.StoreConfig
	proxyHost     string
	scheme        string
	launchTimeout time.Duration
	watchTimeout  time.Duration
	recorder      metrics.Recorder
	logger        *slog.Logger

	// watchCtx parents every background watch; Close cancels it.
	watchCtx    context.Context
	stopWatches context.CancelFunc
	mu          sync.Mutex
	closed      bool
	watches     sync.WaitGroup
}

// Deployment describes a queued deployment.
type Deployment struct {
	ProjectID project.ID
	URL       string
	TaskID    string
	Launcher  string
}

func New(opts Options) (*Dispatcher, error) {
	if opts.IDs == nil || opts.Launcher == nil {
		return nil, ferrors.ConfigError("dispatcher requires an id source and a launcher").Build()
	}
	if opts.ProxyHost == "" {
		opts.ProxyHost = config.DefaultProxyHost
	}
	if opts.URLScheme == "" {
		opts.URLScheme = config.DefaultURLScheme
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = config.DefaultLaunchTimeout
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	watchCtx, stopWatches := context.WithCancel(context.Background())
	return &Dispatcher{
		watchCtx:      watchCtx,
		stopWatches:   stopWatches,
		ids:           opts.IDs,
		launcher:      opts.Launcher,
		store:         opts.Store,
		proxyHost:     opts.ProxyHost,
		scheme:        opts.URLScheme,
		launchTimeout: opts.LaunchTimeout,
		watchTimeout:  opts.WatchTimeout,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
	}, nil
}

// Dispatch queues a deployment of repoURL. Invalid input fails with a
// validation error before any identifier is reserved.
func (d *Dispatcher) Dispatch(ctx context.Context, repoURL string) (*Deployment, error) {
	repoURL, err := ValidateRepositoryURL(repoURL)
	if err != nil {
		d.recorder.IncDispatch(metrics.DispatchInvalid)
		return nil, err
	}

	id, err := d.ids.Next(ctx)
	if err != nil {
		d.recorder.IncDispatch(metrics.DispatchInternal)
		return nil, err
	}

	spec := launcher.NewTaskSpec(repoURL, string(id), d.store)
	lctx, cancel := context.WithTimeout(ctx, d.launchTimeout)
	defer cancel()

	start := time.Now()
	h, err := d.launcher.Launch(lctx, spec)
	d.recorder.ObserveLaunchDuration(d.launcher.Name(), time.Since(start), err == nil)
	if err != nil {
		d.recorder.IncDispatch(metrics.DispatchLaunchFailed)
		return nil, asLaunchFailure(err, d.launcher.Name(), id)
	}

	dep := &Deployment{
		ProjectID: id,
		URL:       project.PublicURL(d.scheme, id, d.proxyHost),
		TaskID:    h.ID(),
		Launcher:  h.Provider(),
	}
	d.recorder.IncDispatch(metrics.DispatchQueued)
	d.logger.Info("Deployment queued",
		logfields.ProjectID(string(id)),
		logfields.RepoURL(repoURL),
		logfields.Launcher(dep.Launcher),
		logfields.TaskID(dep.TaskID),
		logfields.URL(dep.URL))

	if d.watchTimeout > 0 {
		d.startWatch(h, id)
	}
	return dep, nil
}

// Close stops every background watch and waits for them to return. Deployments
// dispatched afterwards are not watched.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.stopWatches()
	d.watches.Wait()
}

func (d *Dispatcher) startWatch(h launcher.Handle, id project.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.watches.Add(1)
	go func() {
		defer d.watches.Done()
		d.watch(h, id)
	}()
}

// watch logs the outcome of a launched task.
func (d *Dispatcher) watch(h launcher.Handle, id project.ID) {
	ctx, cancel := context.WithTimeout(d.watchCtx, d.watchTimeout)
	defer cancel()
	attrs := []any{logfields.ProjectID(string(id)), logfields.TaskID(h.ID())}
	err := h.Wait(ctx)
	switch {
	case err == nil:
		d.logger.Info("Deployment succeeded", attrs...)
	case d.watchCtx.Err() != nil:
		d.logger.Info("Stopped watching deployment", attrs...)
	default:
		d.logger.Warn("Deployment did not succeed", append(attrs, logfields.Error(err))...)
	}
}

// asLaunchFailure keeps classified launcher errors and wraps anything else.
func asLaunchFailure(err error, provider string, id project.ID) error {
	if _, ok := ferrors.AsClassified(err); ok {
		return err
	}
	return ferrors.LaunchError("task launch failed").
		WithCause(err).
		WithContext("launcher", provider).
		WithContext("project_id", string(id)).
		Build()
}
