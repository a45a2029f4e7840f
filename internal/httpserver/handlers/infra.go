package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/readiness"
)

type componentStatus struct {
	OK        bool     `json:"ok"`
	Entries   *int     `json:"entries,omitempty"`
	Subgraphs []string `json:"subgraphs,omitempty"`
	LastRun   string   `json:"last_run,omitempty"`
	Mode      string   `json:"mode,omitempty"`
	Impact    string   `json:"impact,omitempty"`
	Error     string   `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	InstanceID string                     `json:"instance_id,omitempty"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of each component the gateway depends on.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := d.Readiness.Snapshot()

		components := map[string]componentStatus{
			"readiness":        readinessStatus(snap),
			"composition":      compositionStatus(d, snap),
			"validation_cache": cacheStatus(d),
			"revocation_bus":   checkRedis(r.Context(), d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(snap, components),
			InstanceID: d.InstanceID,
			Components: components,
		})
	}
}

func determineMode(snap readiness.Snapshot, components map[string]componentStatus) string {
	if snap.State == readiness.StateFailedTransient {
		return "failed"
	}
	if !snap.ReadyForRequests() {
		return "degraded"
	}
	// The bus only affects cross-replica logout.
	if bus, ok := components["revocation_bus"]; ok && !bus.OK && bus.Mode != "disabled" {
		return "degraded"
	}
	return "optimal"
}

func readinessStatus(snap readiness.Snapshot) componentStatus {
	return componentStatus{
		OK:    snap.ReadyForRequests(),
		Mode:  string(snap.State),
		Error: snap.LastError,
	}
}

func compositionStatus(d deps.Deps, snap readiness.Snapshot) componentStatus {
	if d.Supergraph == nil {
		return componentStatus{OK: false, Error: "composer not configured"}
	}
	sg, ok := d.Supergraph.Current()
	if !ok {
		return componentStatus{OK: false, LastRun: "never", Error: snap.LastError}
	}
	return componentStatus{
		OK:        snap.SchemaReady,
		Subgraphs: sg.Subgraphs,
		LastRun:   sg.ComposedAt.Format(time.RFC3339),
		Error:     snap.LastError,
	}
}

func cacheStatus(d deps.Deps) componentStatus {
	if d.Cache == nil {
		return componentStatus{OK: false, Error: "cache not configured"}
	}
	n := d.Cache.Len()
	return componentStatus{OK: true, Entries: &n}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.Redis == nil {
		return componentStatus{
			OK:     false,
			Mode:   "disabled",
			Impact: "logout-not-propagated",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := d.Redis.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "logout-not-propagated",
			Error:  err.Error(),
		}
	}

	return componentStatus{
		OK:     true,
		Mode:   "optimal",
		Impact: "logout-propagated",
	}
}
