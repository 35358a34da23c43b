package authz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-crm/meridian/internal/retry"
)

// RuleSource reads permission rules from the remote backend.
type RuleSource interface {
	FetchRoleRules(ctx context.Context, role string) ([]Rule, error)
	FetchPrincipalRules(ctx context.Context, principalID uuid.UUID) ([]Rule, error)
}

// Resolve computes the effective permission set for a principal.
//
// A principal-scoped rule fully shadows the role default for its module; the
// row is replaced, flags are never merged. Modules covered by neither scope
// are denied. Principals on the bypass role are granted everything without
// consulting the rule tables.
func Resolve(ctx context.Context, src RuleSource, principal Principal) (PermissionSet, error) {
	if principal.Bypass() {
		return BypassSet(), nil
	}

	roleRules, err := src.FetchRoleRules(ctx, principal.Role)
	if err != nil {
		return PermissionSet{}, fmt.Errorf("authz: fetch role rules: %w", err)
	}
	principalRules, err := src.FetchPrincipalRules(ctx, principal.ID)
	if err != nil {
		return PermissionSet{}, fmt.Errorf("authz: fetch principal rules: %w", err)
	}

	modules := make(map[Module]Actions, len(roleRules)+len(principalRules))
	ids := make([]uuid.UUID, 0, len(roleRules)+len(principalRules))
	for _, rule := range roleRules {
		modules[rule.Module] = rule.Actions
		ids = append(ids, rule.ID)
	}
	for _, rule := range principalRules {
		modules[rule.Module] = rule.Actions
		ids = append(ids, rule.ID)
	}
	return NewPermissionSet(modules, ids), nil
}

// RuleChange is the slice of a change-feed event the relevance test needs.
type RuleChange struct {
	RuleID           uuid.UUID
	PrincipalScoped  bool
	ScopePrincipalID uuid.UUID
}

// LiveSet holds the resolved permission set for one signed-in principal and
// keeps it current as the backing rule records change out-of-band.
type LiveSet struct {
	src       RuleSource
	principal Principal
	logger    *slog.Logger
	policy    retry.Policy

	mu      sync.RWMutex
	current PermissionSet

	group singleflight.Group
}

// NewLiveSet resolves the initial set and returns the live holder.
// Rule fetches go through the retry policy: rules may lag provisioning.
func NewLiveSet(ctx context.Context, src RuleSource, principal Principal, policy retry.Policy, logger *slog.Logger) (*LiveSet, error) {
	set, err := retry.Value(ctx, policy, func(ctx context.Context) (PermissionSet, error) {
		return Resolve(ctx, src, principal)
	})
	if err != nil {
		return nil, err
	}
	return &LiveSet{
		src:       src,
		principal: principal,
		logger:    logger,
		policy:    policy,
		current:   set,
	}, nil
}

// Current returns the effective permission set.
func (l *LiveSet) Current() PermissionSet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Principal returns the principal this set was resolved for.
func (l *LiveSet) Principal() Principal {
	return l.principal
}

// Relevant reports whether a rule change affects this principal: either the
// rule already contributed to the cached set, or it is scoped to the
// principal directly. Irrelevant changes must not trigger a refetch.
func (l *LiveSet) Relevant(change RuleChange) bool {
	if change.PrincipalScoped && change.ScopePrincipalID == l.principal.ID {
		return true
	}
	return l.Current().ContainsRule(change.RuleID)
}

// HandleChange refetches and replaces the set when the change is relevant.
// Bursts of notifications coalesce into a single refetch.
func (l *LiveSet) HandleChange(ctx context.Context, change RuleChange) error {
	if !l.Relevant(change) {
		return nil
	}
	return l.Refresh(ctx)
}

// Refresh re-resolves unconditionally and swaps the cached set.
func (l *LiveSet) Refresh(ctx context.Context) error {
	_, err, _ := l.group.Do("refresh", func() (interface{}, error) {
		set, err := retry.Value(ctx, l.policy, func(ctx context.Context) (PermissionSet, error) {
			return Resolve(ctx, l.src, l.principal)
		})
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.current = set
		l.mu.Unlock()
		if l.logger != nil {
			l.logger.Debug("permission set refreshed", slog.String("principal", l.principal.ID.String()))
		}
		return nil, nil
	})
	return err
}
