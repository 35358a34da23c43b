package authz

import "github.com/google/uuid"

// PermissionSet is the resolved, effective per-module action flags for one
// principal. Sets are immutable once built; re-resolution swaps the whole
// value.
type PermissionSet struct {
	bypass  bool
	modules map[Module]Actions
	ruleIDs map[uuid.UUID]struct{}
}

// BypassSet grants every action on every module.
func BypassSet() PermissionSet {
	return PermissionSet{bypass: true}
}

// NewPermissionSet builds a set from resolved rules.
func NewPermissionSet(rules map[Module]Actions, ruleIDs []uuid.UUID) PermissionSet {
	ids := make(map[uuid.UUID]struct{}, len(ruleIDs))
	for _, id := range ruleIDs {
		ids[id] = struct{}{}
	}
	modules := make(map[Module]Actions, len(rules))
	for m, a := range rules {
		modules[m] = a
	}
	return PermissionSet{modules: modules, ruleIDs: ids}
}

// Bypass reports whether the set grants everything unconditionally.
func (s PermissionSet) Bypass() bool {
	return s.bypass
}

// ContainsRule reports whether the set was built from the given rule id.
func (s PermissionSet) ContainsRule(id uuid.UUID) bool {
	_, ok := s.ruleIDs[id]
	return ok
}

// Module returns the action flags for a module and whether any rule covers it.
func (s PermissionSet) Module(m Module) (Actions, bool) {
	if s.bypass {
		return Actions{View: true, Create: true, Edit: true, Approve: true}, true
	}
	a, ok := s.modules[m]
	return a, ok
}

// Granted lists modules covered by the set, for serialization.
func (s PermissionSet) Granted() map[Module]Actions {
	if s.bypass {
		out := make(map[Module]Actions, len(Modules()))
		for _, m := range Modules() {
			out[m] = Actions{View: true, Create: true, Edit: true, Approve: true}
		}
		return out
	}
	out := make(map[Module]Actions, len(s.modules))
	for m, a := range s.modules {
		out[m] = a
	}
	return out
}

// Check is a pure lookup: a module absent from the set denies every action.
func Check(set PermissionSet, module Module, action Action) bool {
	if set.bypass {
		return true
	}
	actions, ok := set.modules[module]
	if !ok {
		return false
	}
	return actions.Allows(action)
}
