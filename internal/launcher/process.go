package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitedeploy/internal/config"
	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/logstream"
	"git.home.luguber.info/inful/sitedeploy/internal/workspace"
)

// ProcessOptions configures a ProcessLauncher.
type ProcessOptions struct {
	// Binary is the worker executable; empty means the running binary.
	Binary string
	// Args default to ["build"].
	Args       []string
	Workspaces *workspace.Manager
	Build      config.BuildConfig
	Logger     *slog.Logger
}

// ProcessLauncher runs every deployment as a child process in its own workspace.
type ProcessLauncher struct {
	binary     string
	args       []string
	workspaces *workspace.Manager
	build      config.BuildConfig
	logger     *slog.Logger
}

func NewProcessLauncher(opts ProcessOptions) (*ProcessLauncher, error) {
	binary := opts.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, ferrors.ConfigError("cannot resolve worker binary").WithCause(err).Build()
		}
		binary = exe
	}
	args := opts.Args
	if len(args) == 0 {
		args = []string{"build"}
	}
	ws := opts.Workspaces
	if ws == nil {
		ws = workspace.NewManager("")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessLauncher{binary: binary, args: args, workspaces: ws, build: opts.Build, logger: logger}, nil
}

func (l *ProcessLauncher) Name() string { return "process" }

// Launch starts the child and returns once it is running. The child is not
// bound to ctx so it outlives the request that launched it.
func (l *ProcessLauncher) Launch(ctx context.Context, spec TaskSpec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, classifyLaunchError(err, l.Name(), spec.ProjectID)
	}

	dir, err := l.workspaces.Create(spec.ProjectID)
	if err != nil {
		return nil, ferrors.LaunchError("failed to create workspace").
			WithCause(err).WithContext("project_id", spec.ProjectID).Build()
	}

	id := uuid.NewString()
	attrs := []slog.Attr{logfields.ProjectID(spec.ProjectID), logfields.TaskID(id)}
	stdout := logstream.NewWriter(l.logger, slog.LevelInfo, "build output", append(attrs, logfields.Stream("stdout"))...)
	stderr := logstream.NewWriter(l.logger, slog.LevelWarn, "build output", append(attrs, logfields.Stream("stderr"))...)

	// #nosec G204 -- binary and args come from operator configuration
	cmd := exec.Command(l.binary, l.args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), spec.EnvList()...)
	cmd.Env = append(cmd.Env, l.buildEnv(filepath.Join(dir, "checkout"))...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		_ = l.workspaces.Cleanup(dir)
		return nil, ferrors.LaunchError("failed to start build process").
			WithCause(err).
			WithContext("project_id", spec.ProjectID).
			WithContext("binary", l.binary).
			Build()
	}

	h := &processHandle{id: id, done: make(chan struct{})}
	l.logger.Info("Started build process",
		logfields.ProjectID(spec.ProjectID), logfields.TaskID(id), slog.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		_ = stdout.Close()
		_ = stderr.Close()
		if cerr := l.workspaces.Cleanup(dir); cerr != nil {
			l.logger.Warn("Failed to remove workspace", logfields.Path(dir), logfields.Error(cerr))
		}
		h.finish(processOutcome(err, id))
		close(h.done)
	}()
	return h, nil
}

func (l *ProcessLauncher) buildEnv(workDir string) []string {
	env := []string{config.EnvWorkDir + "=" + workDir}
	b := l.build
	if b.Command != "" {
		env = append(env, config.EnvBuildCommand+"="+b.Command)
	}
	if b.OutputDir != "" {
		env = append(env, config.EnvOutputDir+"="+b.OutputDir)
	}
	if b.Timeout > 0 {
		env = append(env, config.EnvBuildTimeout+"="+b.Timeout.String())
	}
	if b.UploadConcurrency > 0 {
		env = append(env, config.EnvUploadConcurrency+"="+strconv.Itoa(b.UploadConcurrency))
	}
	if b.SkipClone {
		env = append(env, config.EnvSkipClone+"=true")
	}
	return env
}

func processOutcome(err error, id string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return ferrors.BuildError(fmt.Sprintf("build process exited with status %d", exitErr.ExitCode())).
			WithContext("task_id", id).
			WithContext("exit_code", exitErr.ExitCode()).
			Build()
	}
	return ferrors.BuildError("build process failed").WithCause(err).WithContext("task_id", id).Build()
}

type processHandle struct {
	id   string
	done chan struct{}

	mu  sync.Mutex
	err error
}

func (h *processHandle) ID() string       { return h.id }
func (h *processHandle) Provider() string { return "process" }

func (h *processHandle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
}

func (h *processHandle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.err
	}
}
