package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/portico/internal/httpserver/mw"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/health", handlers.Health(d))

	ops := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	ops.Get("/health/detailed", handlers.HealthDetailed(d))
	ops.Get("/readyz", handlers.Readyz(d))
}
