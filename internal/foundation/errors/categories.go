package errors

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryValidation covers malformed client input (InvalidRequest).
	CategoryValidation ErrorCategory = "validation"
	CategoryConfig     ErrorCategory = "config"
	CategoryNotFound   ErrorCategory = "not_found"

	// CategoryLaunch covers Task Launcher rejections and errors (LaunchFailure).
	CategoryLaunch  ErrorCategory = "launch"
	CategoryNetwork ErrorCategory = "network"
	CategoryGit     ErrorCategory = "git"

	// CategoryBuild covers Build Command failures (BuildFailure).
	CategoryBuild ErrorCategory = "build"
	// CategoryUpload covers Artifact Store write failures (UploadFailure).
	CategoryUpload ErrorCategory = "upload"
	// CategoryRouting covers unroutable proxy requests (RoutingError).
	CategoryRouting ErrorCategory = "routing"

	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ErrorContext holds structured details rendered into logs and HTTP error bodies.
type ErrorContext map[string]any

// Set adds or updates a value, allocating the map when needed.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

func (c ErrorContext) Get(key string) (any, bool) {
	value, ok := c[key]
	return value, ok
}

// GetString returns the value for key when it is a string.
func (c ErrorContext) GetString(key string) (string, bool) {
	str, ok := c[key].(string)
	return str, ok
}
