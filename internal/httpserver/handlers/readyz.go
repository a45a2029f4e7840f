package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready bool   `json:"ready"`
	State string `json:"state"`
}

// Readyz answers 200 once the data plane can be served, 503 before.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := d.Readiness.Snapshot()
		status := http.StatusOK
		if !s.ReadyForRequests() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{
			Ready: s.ReadyForRequests(),
			State: string(s.State),
		})
	}
}
