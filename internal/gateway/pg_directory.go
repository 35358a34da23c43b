package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/meridian-crm/meridian/internal/authz"
)

const principalColumns = "id, email, display_name, role_name, is_admin, active, created_at, updated_at"

// FetchPrincipal loads a principal profile by identifier.
func (g *PG) FetchPrincipal(ctx context.Context, id uuid.UUID) (authz.Principal, error) {
	row := g.pool.QueryRow(ctx,
		"SELECT "+principalColumns+" FROM principals WHERE id = $1", id)
	return scanPrincipal(row)
}

// InsertPrincipal provisions a new account. Principals are deactivated,
// never hard-deleted.
func (g *PG) InsertPrincipal(ctx context.Context, input PrincipalInput) (authz.Principal, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" {
		return authz.Principal{}, errors.New("gateway: principal email required")
	}
	row := g.pool.QueryRow(ctx, `
		INSERT INTO principals (email, display_name, role_name, is_admin, active, credential_hash)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING `+principalColumns,
		email, strings.TrimSpace(input.DisplayName), input.Role, input.Admin, input.CredentialHash)
	return scanPrincipal(row)
}

// DeactivatePrincipal flips the active flag.
func (g *PG) DeactivatePrincipal(ctx context.Context, id uuid.UUID) error {
	tag, err := g.pool.Exec(ctx,
		"UPDATE principals SET active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrincipal(row pgx.Row) (authz.Principal, error) {
	var p authz.Principal
	err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.Admin, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Principal{}, ErrNotFound
		}
		return authz.Principal{}, mapPgError(err)
	}
	return p, nil
}

const ruleColumns = "id, module, can_view, can_create, can_edit, can_approve, scope, COALESCE(role_name, ''), COALESCE(principal_id, '00000000-0000-0000-0000-000000000000'), updated_at"

// FetchRoleRules returns the role-scoped defaults for a role.
func (g *PG) FetchRoleRules(ctx context.Context, role string) ([]authz.Rule, error) {
	rows, err := g.pool.Query(ctx,
		"SELECT "+ruleColumns+" FROM permission_rules WHERE scope = 'role' AND role_name = $1 ORDER BY module",
		role)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// FetchPrincipalRules returns the per-principal overrides.
func (g *PG) FetchPrincipalRules(ctx context.Context, principalID uuid.UUID) ([]authz.Rule, error) {
	rows, err := g.pool.Query(ctx,
		"SELECT "+ruleColumns+" FROM permission_rules WHERE scope = 'principal' AND principal_id = $1 ORDER BY module",
		principalID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// UpsertRule writes a rule, keeping at most one row per (module, scope
// target). The unique indexes on (module, role_name) and
// (module, principal_id) back the invariant.
func (g *PG) UpsertRule(ctx context.Context, rule authz.Rule) (authz.Rule, error) {
	if !authz.Known(rule.Module) {
		return authz.Rule{}, fmt.Errorf("gateway: unknown module %q", rule.Module)
	}
	var row pgx.Row
	switch rule.Scope {
	case authz.ScopeRole:
		row = g.pool.QueryRow(ctx, `
			INSERT INTO permission_rules (module, can_view, can_create, can_edit, can_approve, scope, role_name)
			VALUES ($1, $2, $3, $4, $5, 'role', $6)
			ON CONFLICT (module, role_name) WHERE scope = 'role'
			DO UPDATE SET can_view = $2, can_create = $3, can_edit = $4, can_approve = $5, updated_at = NOW()
			RETURNING `+ruleColumns,
			rule.Module, rule.Actions.View, rule.Actions.Create, rule.Actions.Edit, rule.Actions.Approve, rule.Role)
	case authz.ScopePrincipal:
		row = g.pool.QueryRow(ctx, `
			INSERT INTO permission_rules (module, can_view, can_create, can_edit, can_approve, scope, principal_id)
			VALUES ($1, $2, $3, $4, $5, 'principal', $6)
			ON CONFLICT (module, principal_id) WHERE scope = 'principal'
			DO UPDATE SET can_view = $2, can_create = $3, can_edit = $4, can_approve = $5, updated_at = NOW()
			RETURNING `+ruleColumns,
			rule.Module, rule.Actions.View, rule.Actions.Create, rule.Actions.Edit, rule.Actions.Approve, rule.PrincipalID)
	default:
		return authz.Rule{}, fmt.Errorf("gateway: unknown rule scope %q", rule.Scope)
	}
	out, err := scanRule(row)
	if err != nil {
		return authz.Rule{}, err
	}
	return out, nil
}

// DeleteRule removes a rule by identifier.
func (g *PG) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := g.pool.Exec(ctx, "DELETE FROM permission_rules WHERE id = $1", id)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectRules(rows pgx.Rows) ([]authz.Rule, error) {
	var rules []authz.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func scanRule(row pgx.Row) (authz.Rule, error) {
	var (
		rule  authz.Rule
		scope string
	)
	err := row.Scan(&rule.ID, &rule.Module, &rule.Actions.View, &rule.Actions.Create,
		&rule.Actions.Edit, &rule.Actions.Approve, &scope, &rule.Role, &rule.PrincipalID, &rule.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authz.Rule{}, ErrNotFound
		}
		return authz.Rule{}, mapPgError(err)
	}
	rule.Scope = authz.Scope(scope)
	return rule, nil
}
