package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/portico/internal/auth"
)

// Authenticate runs the gate on every request and stores the resulting
// AuthContext. It never rejects: authorization is left to the routes.
func Authenticate(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := gate.Authenticate(r.Context(), r.Header.Get("Authorization"))
			next.ServeHTTP(w, r.WithContext(auth.WithContext(r.Context(), ac)))
		})
	}
}
