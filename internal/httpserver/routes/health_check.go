package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/portico/internal/httpserver/mw"
)

func init() { Register(registerHealthCheck) }

func registerHealthCheck(r chi.Router, d deps.Deps) {
	r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger)).Post("/health/check", handlers.HealthCheck(d))
}
