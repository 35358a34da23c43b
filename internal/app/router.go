package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/entity"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/provision"
	"github.com/meridian-crm/meridian/internal/session"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Sessions          *session.Registry
	SessionHandler    *session.Handler
	EntityHandler     *entity.Handler
	PermissionHandler *authz.Handler
	AccountHandler    *provision.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:   params.Config,
		Sessions: params.Sessions,
		Metrics:  params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	limit := 60
	if params.Config != nil && params.Config.MutationRateLimit > 0 {
		limit = params.Config.MutationRateLimit
	}
	mutationLimiter := httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)

	authzMW := authz.Middleware{Logger: params.Logger}

	r.Group(func(r chi.Router) {
		params.SessionHandler.Routes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(mutationLimiter)
		params.EntityHandler.Routes(r)
		params.PermissionHandler.Routes(r, authzMW)
		params.AccountHandler.Routes(r, authzMW)
	})

	return r
}
