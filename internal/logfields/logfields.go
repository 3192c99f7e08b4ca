package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyProjectID   = "project_id"
	KeyRepoURL     = "repository_url"
	KeyKey         = "key"
	KeyContentType = "content_type"
	KeyBytes       = "bytes"
	KeyHost        = "host"
	KeyPath        = "path"
	KeyURL         = "url"
	KeyMethod      = "method"
	KeyStatus      = "status"
	KeyUserAgent   = "user_agent"
	KeyRemoteAddr  = "remote_addr"
	KeyRequestID   = "request_id"
	KeyLauncher    = "launcher"
	KeyTaskID      = "task_id"
	KeyStream      = "stream"
	KeyExitCode    = "exit_code"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ProjectID(id string) slog.Attr   { return slog.String(KeyProjectID, id) }
func RepoURL(u string) slog.Attr      { return slog.String(KeyRepoURL, u) }
func Key(k string) slog.Attr          { return slog.String(KeyKey, k) }
func ContentType(ct string) slog.Attr { return slog.String(KeyContentType, ct) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func Host(h string) slog.Attr         { return slog.String(KeyHost, h) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Method(m string) slog.Attr       { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr   { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr   { return slog.String(KeyRemoteAddr, a) }
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func Launcher(name string) slog.Attr  { return slog.String(KeyLauncher, name) }
func TaskID(id string) slog.Attr      { return slog.String(KeyTaskID, id) }
func Stream(name string) slog.Attr    { return slog.String(KeyStream, name) }
func ExitCode(code int) slog.Attr     { return slog.Int(KeyExitCode, code) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
