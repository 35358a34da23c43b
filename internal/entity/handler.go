package entity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/gateway"
	"github.com/meridian-crm/meridian/internal/observability"
	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

// SessionStores resolves the per-session store set for a viewer token.
type SessionStores interface {
	StoresFor(token string) (*Stores, bool)
}

// Handler exposes the collection mirror and mutation executor as JSON
// endpoints. The owning module of each kind guards the route: GET needs
// view, POST create, PUT/DELETE edit.
type Handler struct {
	logger   *slog.Logger
	registry *gateway.Registry
	sessions SessionStores
	metrics  *observability.Metrics
	validate *validator.Validate
}

// NewHandler constructs the entity handler.
func NewHandler(logger *slog.Logger, registry *gateway.Registry, sessions SessionStores, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		sessions: sessions,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// Routes mounts the collection endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api/collections/{kind}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Post("/refresh", h.refresh)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
	r.Post("/api/conversions/lead-to-client", h.convertLead)
}

// resolve authenticates the request against the kind's module and returns
// the session cache for it.
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, action authz.Action) (*Cache, bool) {
	viewer, ok := authz.ViewerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return nil, false
	}
	kind := gateway.Kind(chi.URLParam(r, "kind"))
	schema, err := h.registry.Schema(kind)
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown collection")
		return nil, false
	}
	if !authz.Check(viewer.Permissions, schema.Module, action) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permission")
		return nil, false
	}
	stores, ok := h.sessions.StoresFor(viewer.Token)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired")
		return nil, false
	}
	cache, err := stores.Cache(kind)
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown collection")
		return nil, false
	}
	return cache, true
}

type listResponse struct {
	Items []gateway.Item `json:"items"`
	Total int            `json:"total"`
}

type listQuery struct {
	Query           string `validate:"omitempty,max=200"`
	IncludeInactive bool
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.resolve(w, r, authz.ActionView)
	if !ok {
		return
	}
	query := listQuery{
		Query:           r.URL.Query().Get("q"),
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
	}
	if err := h.validate.Struct(query); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	var items []gateway.Item
	switch {
	case query.Query != "":
		items = cache.Search(query.Query)
	case query.IncludeInactive:
		items = cache.Items()
	default:
		items = cache.Active()
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.resolve(w, r, authz.ActionView)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a uuid")
		return
	}
	item, ok := cache.Get(id)
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such item")
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

type mutationRequest struct {
	Fields map[string]any `json:"fields" validate:"required,min=1"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.resolve(w, r, authz.ActionCreate)
	if !ok {
		return
	}
	var req mutationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := cache.Create(r.Context(), req.Fields)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveMutation(string(cache.Kind()), "create")
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.resolve(w, r, authz.ActionEdit)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a uuid")
		return
	}
	var req mutationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := cache.Update(r.Context(), id, req.Fields)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveMutation(string(cache.Kind()), "update")
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.resolve(w, r, authz.ActionEdit)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "id must be a uuid")
		return
	}
	if err := cache.Remove(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveMutation(string(cache.Kind()), "remove")
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	cache, ok := h.resolve(w, r, authz.ActionView)
	if !ok {
		return
	}
	if err := cache.Load(r.Context()); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items := cache.Active()
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Total: len(items)})
}

type convertLeadRequest struct {
	LeadID string `json:"lead_id" validate:"required,uuid"`
}

type convertLeadResponse struct {
	Client     gateway.Item  `json:"client"`
	Lead       *gateway.Item `json:"lead,omitempty"`
	FailedStep string        `json:"failed_step,omitempty"`
}

// convertLead runs the composite lead-to-client conversion. Converting
// needs edit on the pipeline and create on clients.
func (h *Handler) convertLead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := authz.ViewerFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no active session")
		return
	}
	if !authz.Check(viewer.Permissions, authz.ModulePipeline, authz.ActionEdit) ||
		!authz.Check(viewer.Permissions, authz.ModuleClients, authz.ActionCreate) {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permission")
		return
	}
	stores, ok := h.sessions.StoresFor(viewer.Token)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired")
		return
	}

	var req convertLeadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	leadID, err := uuid.Parse(req.LeadID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "lead_id must be a uuid")
		return
	}

	result, err := stores.ConvertLeadToClient(r.Context(), leadID)
	if err != nil {
		if result.FailedStep == StepUpdateLead {
			// The client exists; report the partial state instead of hiding
			// it behind a plain error.
			h.logger.Warn("lead conversion partially applied",
				slog.String("lead", leadID.String()),
				slog.String("client", result.Client.ID.String()))
			httpx.JSON(w, http.StatusConflict, convertLeadResponse{
				Client:     result.Client,
				FailedStep: result.FailedStep,
			})
			return
		}
		httpx.RespondError(w, err)
		return
	}
	h.metrics.ObserveMutation(string(gateway.KindLeads), "convert")
	httpx.JSON(w, http.StatusOK, convertLeadResponse{Client: result.Client, Lead: &result.Lead})
}
