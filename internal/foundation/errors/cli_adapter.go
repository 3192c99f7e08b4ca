package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Process exit codes. Unclassified errors exit with ExitGeneric.
const (
	ExitGeneric    = 1
	ExitUsage      = 2
	ExitBuild      = 3
	ExitUpload     = 4
	ExitConfig     = 7
	ExitDependency = 8
	ExitInternal   = 10
)

var exitByCategory = map[ErrorCategory]int{
	CategoryValidation: ExitUsage,
	CategoryBuild:      ExitBuild,
	CategoryUpload:     ExitUpload,
	CategoryConfig:     ExitConfig,
	CategoryNetwork:    ExitDependency,
	CategoryGit:        ExitDependency,
	CategoryLaunch:     ExitDependency,
	CategoryInternal:   ExitInternal,
}

// CLIErrorAdapter prints a command's final error and terminates the process.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, stderr: os.Stderr, exit: os.Exit}
}

// ExitCodeFor returns the process exit code for err; nil yields 0.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	c, ok := AsClassified(err)
	if !ok {
		return ExitGeneric
	}
	if code, ok := exitByCategory[c.Category()]; ok {
		return code
	}
	return ExitGeneric
}

// FormatError renders err for stderr. Internal details stay hidden unless
// verbose output was requested.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	c, ok := AsClassified(err)
	switch {
	case !ok:
		return "Error: " + err.Error()
	case a.verbose:
		return c.Error()
	case c.Category() == CategoryInternal:
		return "Internal error occurred (use -v for details)"
	default:
		return "Error: " + c.Message()
	}
}

// HandleError reports err and exits with its code. A nil error is a no-op.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	c, classified := AsClassified(err)
	switch {
	case !classified:
		a.logger.Error("Command failed", slog.String("error", err.Error()))
	case a.verbose || c.Severity() == SeverityFatal:
		a.log(c)
	}
	_, _ = fmt.Fprintln(a.stderr, a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) log(c *ClassifiedError) {
	attrs := make([]slog.Attr, 0, len(c.Context())+2)
	attrs = append(attrs, slog.String("category", string(c.Category())))
	if cause := c.Cause(); cause != nil {
		attrs = append(attrs, slog.String("cause", cause.Error()))
	}
	for k, v := range c.Context() {
		attrs = append(attrs, slog.Any(k, v))
	}
	a.logger.LogAttrs(context.Background(), levelFor(c.Severity()), c.Message(), attrs...)
}
