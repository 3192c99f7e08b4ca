package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	ferrors "git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
	"git.home.luguber.info/inful/sitedeploy/internal/logstream"
)

// runCommand executes command through sh in dir and returns its exit code.
// Output is streamed into logger line by line.
func runCommand(ctx context.Context, dir, command string, timeout time.Duration, logger *slog.Logger) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stdout := logstream.NewWriter(logger, slog.LevelInfo, "build output", logfields.Stream("stdout"))
	stderr := logstream.NewWriter(logger, slog.LevelWarn, "build output", logfields.Stream("stderr"))
	defer func() {
		_ = stdout.Close()
		_ = stderr.Close()
	}()

	// #nosec G204 -- the build command is deployment configuration
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = 10 * time.Second

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err == nil {
		logger.Info("Build command finished", logfields.ExitCode(0), logfields.Duration(elapsed))
		return 0, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, ferrors.BuildError("build command timed out").
			WithCause(ctx.Err()).
			WithContext("timeout", timeout.String()).
			Build()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		logger.Warn("Build command failed", logfields.ExitCode(code), logfields.Duration(elapsed))
		return code, ferrors.BuildError(fmt.Sprintf("build command exited with status %d", code)).
			WithContext("exit_code", code).
			Build()
	}

	return -1, ferrors.BuildError("build command could not be run").WithCause(err).Build()
}
