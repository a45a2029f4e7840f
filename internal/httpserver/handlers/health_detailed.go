package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
)

type servicesReport struct {
	Available       []string `json:"available"`
	Unavailable     []string `json:"unavailable"`
	TotalConfigured int      `json:"totalConfigured"`
}

type healthDetailedResponse struct {
	SchemaReady      bool           `json:"schemaReady"`
	ServerStarted    bool           `json:"serverStarted"`
	State            string         `json:"state"`
	Services         servicesReport `json:"services"`
	AllHealthy       bool           `json:"allHealthy"`
	PartiallyHealthy bool           `json:"partiallyHealthy"`
	ReadyForRequests bool           `json:"readyForRequests"`
	LastError        string         `json:"lastError,omitempty"`
	InstanceID       string         `json:"instanceId,omitempty"`
}

// HealthDetailed reports the readiness aggregate. It always answers 200;
// orchestrators gate on /readyz instead.
func HealthDetailed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := d.Readiness.Snapshot()
		writeJSON(w, http.StatusOK, healthDetailedResponse{
			SchemaReady:   s.SchemaReady,
			ServerStarted: s.ServerStarted,
			State:         string(s.State),
			Services: servicesReport{
				Available:       s.Available,
				Unavailable:     s.Unavailable,
				TotalConfigured: s.TotalConfigured,
			},
			AllHealthy:       s.AllHealthy(),
			PartiallyHealthy: s.PartiallyHealthy(),
			ReadyForRequests: s.ReadyForRequests(),
			LastError:        s.LastError,
			InstanceID:       d.InstanceID,
		})
	}
}
