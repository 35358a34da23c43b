package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

// Handler exposes the effective permission set and the admin rule CRUD.
type Handler struct {
	logger   *slog.Logger
	rules    RuleAdmin
	validate *validator.Validate
}

// RuleAdmin is the rule read/write surface the admin API needs.
type RuleAdmin interface {
	RuleSource
	UpsertRule(ctx context.Context, rule Rule) (Rule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

// NewHandler constructs the permissions handler.
func NewHandler(logger *slog.Logger, rules RuleAdmin) *Handler {
	return &Handler{logger: logger, rules: rules, validate: validator.New()}
}

// Routes mounts the permission endpoints.
func (h *Handler) Routes(r chi.Router, mw Middleware) {
	r.Get("/api/permissions", h.effective)
	r.Route("/api/admin/rules", func(r chi.Router) {
		r.Use(mw.Require(ModuleAdmin, ActionEdit))
		r.Get("/", h.list)
		r.Put("/", h.upsert)
		r.Delete("/{id}", h.remove)
	})
}

type effectiveResponse struct {
	Bypass  bool               `json:"bypass"`
	Modules map[Module]Actions `json:"modules"`
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	viewer, ok := ViewerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return
	}
	httpx.JSON(w, http.StatusOK, effectiveResponse{
		Bypass:  viewer.Permissions.Bypass(),
		Modules: viewer.Permissions.Granted(),
	})
}

type ruleResponse struct {
	ID          uuid.UUID `json:"id"`
	Module      Module    `json:"module"`
	Actions     Actions   `json:"actions"`
	Scope       Scope     `json:"scope"`
	Role        string    `json:"role,omitempty"`
	PrincipalID string    `json:"principal_id,omitempty"`
}

func toRuleResponse(rule Rule) ruleResponse {
	out := ruleResponse{
		ID:      rule.ID,
		Module:  rule.Module,
		Actions: rule.Actions,
		Scope:   rule.Scope,
		Role:    rule.Role,
	}
	if rule.Scope == ScopePrincipal {
		out.PrincipalID = rule.PrincipalID.String()
	}
	return out
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if role := r.URL.Query().Get("role"); role != "" {
		rules, err := h.rules.FetchRoleRules(ctx, role)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, mapRules(rules))
		return
	}
	if raw := r.URL.Query().Get("principal_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principal_id must be a uuid")
			return
		}
		rules, err := h.rules.FetchPrincipalRules(ctx, id)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, mapRules(rules))
		return
	}
	httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "role or principal_id query required")
}

func mapRules(rules []Rule) []ruleResponse {
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleResponse(rule))
	}
	return out
}

type upsertRuleRequest struct {
	Module      string  `json:"module" validate:"required"`
	Scope       string  `json:"scope" validate:"required,oneof=role principal"`
	Role        string  `json:"role" validate:"required_if=Scope role"`
	PrincipalID string  `json:"principal_id" validate:"required_if=Scope principal,omitempty,uuid"`
	Actions     Actions `json:"actions"`
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !Known(Module(req.Module)) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown module")
		return
	}

	rule := Rule{
		Module:  Module(req.Module),
		Actions: req.Actions,
		Scope:   Scope(req.Scope),
		Role:    req.Role,
	}
	if rule.Scope == ScopePrincipal {
		id, err := uuid.Parse(req.PrincipalID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "principal_id must be a uuid")
			return
		}
		rule.PrincipalID = id
	}

	saved, err := h.rules.UpsertRule(r.Context(), rule)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRuleResponse(saved))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a uuid")
		return
	}
	if err := h.rules.DeleteRule(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
