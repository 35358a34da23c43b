package app

import (
	"net/http"

	"github.com/unrolled/secure"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/session"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Config   *Config
	Sessions *session.Registry
	Metrics  *observability.Metrics
}

// MiddlewareStack installs the Meridian middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})

	// viewerMiddleware attaches the principal and effective permission set
	// of an already-established session. Requests without one pass through;
	// handlers decide whether a viewer is required.
	viewerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := session.BearerToken(r)
			if token != "" && cfg.Sessions != nil {
				if mgr, ok := cfg.Sessions.Lookup(token); ok {
					if principal, perms, ok := mgr.Current(); ok {
						ctx := authz.ContextWithViewer(r.Context(), authz.Viewer{
							Principal:   principal,
							Permissions: perms,
							Token:       token,
						})
						r = r.WithContext(ctx)
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}

	return []func(http.Handler) http.Handler{
		cfg.Metrics.Middleware,
		secureMiddleware.Handler,
		viewerMiddleware,
	}
}
