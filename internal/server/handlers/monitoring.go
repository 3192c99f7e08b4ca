package handlers

import (
	"context"
	"net/http"
	"time"

	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/server/responses"
	"git.home.luguber.info/inful/sitedeploy/internal/version"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// MonitoringHandlers serves health and readiness.
type MonitoringHandlers struct {
	component    string
	startTime    time.Time
	ready        ReadinessCheck
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates monitoring handlers for a component. A nil
// ready check means always ready.
func NewMonitoringHandlers(component string, ready ReadinessCheck) *MonitoringHandlers {
	return &MonitoringHandlers{
		component:    component,
		startTime:    time.Now(),
		ready:        ready,
		errorAdapter: errors.NewHTTPErrorAdapter(nil),
	}
}

// HandleHealthCheck handles the liveness endpoint.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		err := errors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			WithContext("allowed_method", "GET").
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	_ = writeJSONPretty(w, r, http.StatusOK, h.health("healthy", nil))
}

// HandleReadiness reports 503 while the readiness check fails.
func (h *MonitoringHandlers) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			_ = writeJSON(w, http.StatusServiceUnavailable, h.health("unavailable", err))
			return
		}
	}
	_ = writeJSON(w, http.StatusOK, h.health("ready", nil))
}

func (h *MonitoringHandlers) health(status string, err error) *responses.HealthResponse {
	resp := &responses.HealthResponse{
		Status:    status,
		Component: h.component,
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(h.startTime).Seconds(),
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
