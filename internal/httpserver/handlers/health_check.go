package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

type healthCheckResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// HealthCheck asks the health poller for an immediate round of probes.
func HealthCheck(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.HealthCheckTrigger <- struct{}{}:
			d.Logger.Info("manual health check triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, healthCheckResponse{
				Triggered: true,
				Message:   "health check triggered",
			})
		default:
			d.Logger.Warn("health check already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, healthCheckResponse{
				Message: "health check already pending, please wait",
			})
		}
	}
}
