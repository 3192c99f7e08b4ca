package storage

import (
	"io"
	"log/slog"
	"net/http"

	"git.home.luguber.info/inful/sitedeploy/internal/logfields"
)

// Handler serves GET and HEAD for stored keys, making the filesystem store
// readable at a base URL the same way a public bucket is.
func (s *FSStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		obj, err := s.Get(r.Context(), r.URL.Path)
		if err != nil {
			if IsNotFound(err) {
				http.NotFound(w, r)
				return
			}
			slog.ErrorContext(r.Context(), "Failed to read artifact", logfields.Key(r.URL.Path), logfields.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		defer func() { _ = obj.Body.Close() }()

		if obj.ContentType != "" {
			w.Header().Set("Content-Type", obj.ContentType)
		}
		rs, ok := obj.Body.(io.ReadSeeker)
		if !ok {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, obj.Key, obj.ModTime, rs)
	})
}
