package authz

import (
	"log/slog"
	"net/http"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

// Middleware wires permission checks into HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Require ensures the viewer may perform action on module.
func (m Middleware) Require(module Module, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewer, ok := ViewerFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
				return
			}
			if !Check(viewer.Permissions, module, action) {
				if m.Logger != nil {
					m.Logger.Debug("permission denied",
						slog.String("principal", viewer.Principal.ID.String()),
						slog.String("module", string(module)),
						slog.String("action", string(action)))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permission")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
