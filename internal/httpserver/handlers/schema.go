package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
)

// Schema serves the last composed supergraph SDL.
func Schema(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sg, ok := d.Supergraph.Current()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "schema not composed yet")
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Last-Modified", sg.ComposedAt.UTC().Format(http.TimeFormat))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sg.SDL))
	}
}
