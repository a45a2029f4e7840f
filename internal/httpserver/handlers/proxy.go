package handlers

import (
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/MrSnakeDoc/portico/internal/auth"
	"github.com/MrSnakeDoc/portico/internal/httpserver/deps"
	"github.com/MrSnakeDoc/portico/internal/logger"
)

// Identity headers set on requests forwarded to the engine.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
	HeaderUserRole  = "X-User-Role"
	HeaderUserRoles = "X-User-Roles"
)

var identityHeaders = []string{HeaderUserID, HeaderUserEmail, HeaderUserRole, HeaderUserRoles}

// Proxy forwards data plane traffic to the query engine once the gateway is
// ready. The authenticated identity travels as X-User-* headers; copies sent
// by the client are always dropped.
func Proxy(d deps.Deps) http.HandlerFunc {
	target := d.EngineURL
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.Out.URL.Path = target.Path
			pr.Out.URL.RawPath = target.RawPath
			pr.SetXForwarded()

			for _, h := range identityHeaders {
				pr.Out.Header.Del(h)
			}
			ac := auth.FromContext(pr.In.Context())
			if !ac.Authenticated || ac.Identity == nil {
				return
			}
			pr.Out.Header.Set(HeaderUserID, ac.Identity.ID)
			if ac.Identity.Email != "" {
				pr.Out.Header.Set(HeaderUserEmail, ac.Identity.Email)
			}
			if ac.Identity.Role != "" {
				pr.Out.Header.Set(HeaderUserRole, ac.Identity.Role)
			}
			if roles := ac.Identity.RoleSet(); len(roles) > 0 {
				pr.Out.Header.Set(HeaderUserRoles, strings.Join(roles, ","))
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			d.Logger.Warn("query engine unreachable", logger.Error(err))
			writeError(w, http.StatusBadGateway, "query engine unavailable")
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Readiness.Snapshot().ReadyForRequests() {
			w.Header().Set("Retry-After", "5")
			writeError(w, http.StatusServiceUnavailable, "gateway not ready")
			return
		}
		rp.ServeHTTP(w, r)
	}
}
