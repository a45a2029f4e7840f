package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/portico/internal/auth"
	"github.com/MrSnakeDoc/portico/internal/cache"
	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

const publishTimeout = 2 * time.Second

// Logout drops the caller's opaque credential from the validation cache and
// tells the other replicas to do the same. Signed tokens are stateless and
// simply expire.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac := auth.FromContext(r.Context())
		credential, ok := auth.ParseBearer(r.Header.Get("Authorization"))
		if !ok || !ac.Authenticated || ac.Scheme != auth.SchemeOpaqueReference {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		d.Credentials.Invalidate(credential)

		if d.Revocations != nil {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), publishTimeout)
			defer cancel()
			if err := d.Revocations.Publish(ctx, cache.Key(credential)); err != nil {
				d.Logger.Warn("failed to propagate logout", logger.Error(err))
			}
		}

		d.Logger.Info("credential revoked",
			logger.String("user_id", ac.Identity.ID))
		w.WriteHeader(http.StatusNoContent)
	}
}
