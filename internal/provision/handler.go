package provision

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

// Handler exposes account provisioning to administrators.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the provisioning handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// Routes mounts the admin account endpoints.
func (h *Handler) Routes(r chi.Router, mw authz.Middleware) {
	r.Route("/api/admin/accounts", func(r chi.Router) {
		r.Use(mw.Require(authz.ModuleAdmin, authz.ActionEdit))
		r.Post("/", h.create)
		r.Delete("/{id}", h.deactivate)
	})
}

type createAccountRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,min=1,max=200"`
	Role        string `json:"role" validate:"required"`
	Admin       bool   `json:"admin"`
	Password    string `json:"password" validate:"required,min=12"`
}

type accountResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	principal, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Role:        req.Role,
		Admin:       req.Admin,
		Password:    req.Password,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, accountResponse{
		ID:          principal.ID.String(),
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		Role:        principal.Role,
		Active:      principal.Active,
	})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a uuid")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
