package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/portico/internal/httpserver/mw"
)

func init() { Register(registerGraphQL) }

func registerGraphQL(r chi.Router, d deps.Deps) {
	limited := r.With(mw.RateLimit(mw.RateLimitConfig{
		RequestsPerMin: d.RateLimitPerMin,
		TrustProxy:     d.TrustProxy,
	}))
	limited.Handle("/graphql", handlers.Proxy(d))
	limited.Get("/schema", handlers.Schema(d))
}
