package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/portico/internal/auth"
	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/httpserver/handlers"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.With(auth.RequireAuth).Post("/auth/logout", handlers.Logout(d))
}
