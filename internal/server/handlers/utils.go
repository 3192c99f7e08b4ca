package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// writeJSON encodes v before touching the response, so a marshal failure
// never leaves a half-written body behind.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	return encodeJSON(w, status, v, "")
}

// writeJSONPretty indents the body when the query carries pretty=1 or pretty=true.
func writeJSONPretty(w http.ResponseWriter, r *http.Request, status int, v any) error {
	indent := ""
	if r != nil {
		switch r.URL.Query().Get("pretty") {
		case "1", "true":
			indent = "  "
		}
	}
	return encodeJSON(w, status, v, indent)
}

func encodeJSON(w http.ResponseWriter, status int, v any, indent string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		slog.Error("Encoding JSON response failed", logfields.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Debug("Writing JSON response failed", logfields.Error(err))
		return err
	}
	return nil
}
