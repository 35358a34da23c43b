package session

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

// Handler exposes the session lifecycle to the UI: establish, inspect,
// sign out.
type Handler struct {
	logger   *slog.Logger
	registry *Registry
}

// NewHandler constructs the session handler.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry}
}

// Routes mounts the session endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/session", h.establish)
	r.Get("/api/session", h.current)
	r.Delete("/api/session", h.signOut)
}

// BearerToken extracts the session token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

type principalResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Admin       bool   `json:"admin"`
}

type sessionResponse struct {
	State     string             `json:"state"`
	Principal *principalResponse `json:"principal,omitempty"`
}

func (h *Handler) establish(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
		return
	}
	mgr, err := h.registry.Establish(r.Context(), token)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSessionResponse(mgr))
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	viewer, ok := authz.ViewerFromContext(r.Context())
	if !ok {
		httpx.JSON(w, http.StatusOK, sessionResponse{State: StateUnauthenticated.String()})
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		State: StateAuthenticated.String(),
		Principal: &principalResponse{
			ID:          viewer.Principal.ID.String(),
			Email:       viewer.Principal.Email,
			DisplayName: viewer.Principal.DisplayName,
			Role:        viewer.Principal.Role,
			Admin:       viewer.Principal.Bypass(),
		},
	})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if token == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
		return
	}
	if err := h.registry.SignOut(r.Context(), token); err != nil {
		// Local state is already gone; the remote failure is informational.
		h.logger.Warn("sign-out", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func toSessionResponse(mgr *Manager) sessionResponse {
	principal, _, ok := mgr.Current()
	if !ok {
		return sessionResponse{State: mgr.State().String()}
	}
	return sessionResponse{
		State: mgr.State().String(),
		Principal: &principalResponse{
			ID:          principal.ID.String(),
			Email:       principal.Email,
			DisplayName: principal.DisplayName,
			Role:        principal.Role,
			Admin:       principal.Bypass(),
		},
	}
}
