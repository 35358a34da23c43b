package authz

import (
	"time"

	"github.com/google/uuid"
)

// Module identifies a functional area permission rules are scoped to.
// The set is closed; modules are not user-editable.
type Module string

const (
	ModulePipeline   Module = "pipeline"
	ModuleLeads      Module = "leads"
	ModuleClients    Module = "clients"
	ModuleProjects   Module = "projects"
	ModuleFinance    Module = "finance"
	ModuleProduction Module = "production"
	ModuleInventory  Module = "inventory"
	ModuleHR         Module = "hr"
	ModuleCalendar   Module = "calendar"
	ModuleReports    Module = "reports"
	ModuleDocuments  Module = "documents"
	ModuleAdmin      Module = "admin"
)

// Modules returns every known module in declaration order.
func Modules() []Module {
	return []Module{
		ModulePipeline,
		ModuleLeads,
		ModuleClients,
		ModuleProjects,
		ModuleFinance,
		ModuleProduction,
		ModuleInventory,
		ModuleHR,
		ModuleCalendar,
		ModuleReports,
		ModuleDocuments,
		ModuleAdmin,
	}
}

// Known reports whether m is part of the closed module set.
func Known(m Module) bool {
	for _, known := range Modules() {
		if known == m {
			return true
		}
	}
	return false
}

// Action names a checkable operation on a module.
type Action string

const (
	ActionView    Action = "view"
	ActionCreate  Action = "create"
	ActionEdit    Action = "edit"
	ActionApprove Action = "approve"
)

// Actions carries the per-module flags of a permission rule.
type Actions struct {
	View    bool `json:"view"`
	Create  bool `json:"create"`
	Edit    bool `json:"edit"`
	Approve bool `json:"approve"`
}

// Allows returns the flag for a single action.
func (a Actions) Allows(action Action) bool {
	switch action {
	case ActionView:
		return a.View
	case ActionCreate:
		return a.Create
	case ActionEdit:
		return a.Edit
	case ActionApprove:
		return a.Approve
	default:
		return false
	}
}

// Scope tells whether a rule is a role default or a principal override.
type Scope string

const (
	ScopeRole      Scope = "role"
	ScopePrincipal Scope = "principal"
)

// Rule is one permission row. Invariant: at most one rule exists per
// (module, role) and per (module, principal).
type Rule struct {
	ID          uuid.UUID
	Module      Module
	Actions     Actions
	Scope       Scope
	Role        string
	PrincipalID uuid.UUID
	UpdatedAt   time.Time
}

// AdminRole is the bypass role; members skip the rule tables entirely.
const AdminRole = "Admin"

// Principal is the authenticated actor of the console.
type Principal struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	Role        string
	Admin       bool
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Bypass reports whether the principal skips permission checks.
func (p Principal) Bypass() bool {
	return p.Admin || p.Role == AdminRole
}
