// Package gateway is the only boundary the core talks to the hosted backend
// through: typed collection reads, write-through mutations, the change feed,
// and the remote auth session. Payloads are validated against per-kind
// schemas on both ingress and egress.
package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
)

// Item is one validated row of an entity collection. Fields only ever
// contains values that passed the kind schema.
type Item struct {
	ID        uuid.UUID      `json:"id"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Fields    map[string]any `json:"fields"`
}

// Field returns a single field value.
func (it Item) Field(name string) (any, bool) {
	v, ok := it.Fields[name]
	return v, ok
}

// EventType classifies a change-feed event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// ChangeEvent is one row-change notification from the remote store.
type ChangeEvent struct {
	Type  EventType
	Table string
	New   map[string]any
	Old   map[string]any
}

// Row returns the most specific row image the event carries.
func (e ChangeEvent) Row() map[string]any {
	if e.New != nil {
		return e.New
	}
	return e.Old
}

// Subscription is a scoped feed handle: acquired at session start, released
// on every exit path. Unsubscribe is idempotent.
type Subscription interface {
	Unsubscribe()
}

// DataGateway is the entity-collection contract the cache consumes.
type DataGateway interface {
	FetchCollection(ctx context.Context, kind Kind) ([]Item, error)
	FetchByID(ctx context.Context, kind Kind, id uuid.UUID) (Item, error)
	Insert(ctx context.Context, kind Kind, fields map[string]any) (Item, error)
	Update(ctx context.Context, kind Kind, id uuid.UUID, fields map[string]any) (Item, error)
	SoftDelete(ctx context.Context, kind Kind, id uuid.UUID) (Item, error)
	HardDelete(ctx context.Context, kind Kind, id uuid.UUID) error
	SubscribeChanges(ctx context.Context, table string, handler func(ChangeEvent)) (Subscription, error)
}

// AuthEventType classifies remote auth lifecycle notifications.
type AuthEventType string

const (
	AuthSignedIn       AuthEventType = "signed_in"
	AuthTokenRefreshed AuthEventType = "token_refreshed"
	AuthSignedOut      AuthEventType = "signed_out"
)

// AuthEvent is one remote auth notification.
type AuthEvent struct {
	Type        AuthEventType `json:"type"`
	Token       string        `json:"token"`
	PrincipalID uuid.UUID     `json:"principal_id"`
}

// RemoteSession is the hosted backend's view of an authenticated token.
type RemoteSession struct {
	Token       string    `json:"token"`
	PrincipalID uuid.UUID `json:"principal_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthGateway is the remote auth contract the session manager consumes.
type AuthGateway interface {
	GetSession(ctx context.Context, token string) (RemoteSession, error)
	RegisterSession(ctx context.Context, sess RemoteSession) error
	SignOut(ctx context.Context, token string) error
	OnAuthEvent(ctx context.Context, handler func(AuthEvent)) (Subscription, error)
}

// PrincipalDirectory reads and writes principal profiles.
type PrincipalDirectory interface {
	FetchPrincipal(ctx context.Context, id uuid.UUID) (authz.Principal, error)
	InsertPrincipal(ctx context.Context, input PrincipalInput) (authz.Principal, error)
	DeactivatePrincipal(ctx context.Context, id uuid.UUID) error
}

// PrincipalInput is the provisioning payload for a new principal.
type PrincipalInput struct {
	Email          string
	DisplayName    string
	Role           string
	Admin          bool
	CredentialHash string
}

// RuleStore reads and writes permission rules. Reads satisfy
// authz.RuleSource.
type RuleStore interface {
	authz.RuleSource
	UpsertRule(ctx context.Context, rule authz.Rule) (authz.Rule, error)
	DeleteRule(ctx context.Context, id uuid.UUID) error
}

// PermissionRulesTable is the change-feed table the listener watches.
const PermissionRulesTable = "permission_rules"
