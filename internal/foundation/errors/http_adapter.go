package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// statusByCategory maps categories to response codes. Anything absent is a 500.
var statusByCategory = map[ErrorCategory]int{
	CategoryValidation: http.StatusBadRequest,
	CategoryRouting:    http.StatusBadRequest,
	CategoryNotFound:   http.StatusNotFound,
	CategoryLaunch:     http.StatusBadGateway,
	CategoryGit:        http.StatusBadGateway,
	CategoryUpload:     http.StatusBadGateway,
	CategoryNetwork:    http.StatusServiceUnavailable,
	CategoryBuild:      http.StatusUnprocessableEntity,
}

// retryAfterSeconds is advertised on responses for retryable errors.
const retryAfterSeconds = "5"

// HTTPErrorAdapter renders errors as JSON responses and logs them at a level
// derived from their severity.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter returns an adapter logging to logger, or to the default
// logger when nil.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse is the body of every error response.
type HTTPErrorResponse struct {
	Error     string         `json:"error"`
	Code      string         `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

// StatusCodeFor returns the response code for err.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if status, ok := statusByCategory[CategoryOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FormatErrorResponse builds the response body for err. Unclassified errors
// only expose their message.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	if err == nil {
		return HTTPErrorResponse{}
	}
	c, ok := AsClassified(err)
	if !ok {
		return HTTPErrorResponse{Error: err.Error()}
	}
	resp := HTTPErrorResponse{
		Error:     c.Message(),
		Code:      string(c.Category()),
		Retryable: c.Retryable(),
	}
	if ctx := c.Context(); len(ctx) > 0 {
		resp.Details = map[string]any(ctx)
	}
	return resp
}

// WriteErrorResponse writes err as JSON with its mapped status.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	status := a.StatusCodeFor(err)
	payload := a.FormatErrorResponse(err)
	body, jerr := json.Marshal(payload)
	if jerr != nil {
		body = []byte(`{"error":"internal error"}`)
	}

	w.Header().Set("Content-Type", "application/json")
	if payload.Retryable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)

	level := slog.LevelError
	attrs := []slog.Attr{slog.Int("status", status), slog.String("path", r.URL.Path)}
	if c, ok := AsClassified(err); ok {
		level = levelFor(c.Severity())
		attrs = append(attrs, slog.String("category", string(c.Category())))
	}
	a.logger.LogAttrs(r.Context(), level, err.Error(), attrs...)
}

func levelFor(s ErrorSeverity) slog.Level {
	switch s {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
