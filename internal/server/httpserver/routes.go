package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"git.home.luguber.info/inful/sitedeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/sitedeploy/internal/server/handlers"
)

// APIHandler routes the dispatcher API.
func APIHandler(deploy *handlers.DeployHandlers) http.Handler {
	adapter := errors.NewHTTPErrorAdapter(nil)
	r := mux.NewRouter()
	r.HandleFunc("/project", deploy.HandleCreateProject).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		adapter.WriteErrorResponse(w, req, errors.NotFoundError("no such endpoint").
			WithContext("path", req.URL.Path).Build())
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", http.MethodPost)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"method not allowed"}` + "\n"))
	})
	return r
}

// AdminHandler serves health, readiness and, when given, Prometheus metrics.
func AdminHandler(monitoring *handlers.MonitoringHandlers, metricsPath string, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", monitoring.HandleHealthCheck)
	mux.HandleFunc("/healthz", monitoring.HandleHealthCheck)
	mux.HandleFunc("/ready", monitoring.HandleReadiness)
	mux.HandleFunc("/readyz", monitoring.HandleReadiness)
	if metrics != nil && metricsPath != "" {
		mux.Handle(metricsPath, metrics)
	}
	return mux
}
