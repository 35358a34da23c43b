// Package session owns the authentication session lifecycle: establishing a
// principal from the remote session, bootstrapping permissions and entity
// stores, and tearing everything down on sign-out or inactive detection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/entity"
	"github.com/meridian-crm/meridian/internal/gateway"
	"github.com/meridian-crm/meridian/internal/notify"
	"github.com/meridian-crm/meridian/internal/retry"
)

// State is the session lifecycle phase.
type State int

const (
	StateUnauthenticated State = iota
	StateLoading
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// Deps collects the collaborators a session manager needs.
type Deps struct {
	Auth      gateway.AuthGateway
	Data      gateway.DataGateway
	Directory gateway.PrincipalDirectory
	Rules     authz.RuleSource
	Registry  *gateway.Registry
	Retry     retry.Policy
	Logger    *slog.Logger
}

// Manager owns one console session end to end. All state transitions go
// through explicit sign-out; the active flag is never flipped silently.
type Manager struct {
	deps  Deps
	token string

	mu         sync.Mutex
	state      State
	principal  *authz.Principal
	perms      *authz.LiveSet
	listener   *notify.Listener
	stores     *entity.Stores
	feedCancel context.CancelFunc
}

// NewManager constructs an unauthenticated manager bound to a token.
func NewManager(token string, deps Deps) *Manager {
	return &Manager{deps: deps, token: token}
}

// Token returns the remote session token this manager is bound to.
func (m *Manager) Token() string {
	return m.token
}

// State returns the lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the principal and effective permission set, if
// authenticated.
func (m *Manager) Current() (authz.Principal, authz.PermissionSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.principal == nil {
		return authz.Principal{}, authz.PermissionSet{}, false
	}
	return *m.principal, m.perms.Current(), true
}

// Stores returns the session's entity stores, if authenticated.
func (m *Manager) Stores() (*entity.Stores, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.stores == nil {
		return nil, false
	}
	return m.stores, true
}

// Permissions returns the live permission set, if authenticated.
func (m *Manager) Permissions() (*authz.LiveSet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated || m.perms == nil {
		return nil, false
	}
	return m.perms, true
}

// Establish fetches the remote session and bootstraps the principal. No
// remote session means no principal and no error. A profile that stays
// missing after retries (provisioning propagation lag) also surfaces as no
// principal. An inactive principal is signed out immediately.
func (m *Manager) Establish(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
	m.state = StateLoading

	remote, err := m.deps.Auth.GetSession(ctx, m.token)
	if err != nil {
		m.state = StateUnauthenticated
		if errors.Is(err, gateway.ErrNoSession) {
			return nil
		}
		return fmt.Errorf("session: get remote session: %w", err)
	}

	principal, err := retry.Value(ctx, m.deps.Retry, func(ctx context.Context) (authz.Principal, error) {
		return m.deps.Directory.FetchPrincipal(ctx, remote.PrincipalID)
	})
	if err != nil {
		// Surface "no principal", not a crash: the profile may simply not
		// exist yet.
		m.log().Warn("principal fetch exhausted retries",
			slog.String("principal", remote.PrincipalID.String()), slog.Any("error", err))
		m.state = StateUnauthenticated
		return nil
	}

	if !principal.Active {
		return m.signOutLocked(ctx)
	}

	perms, err := authz.NewLiveSet(ctx, m.deps.Rules, principal, m.deps.Retry, m.deps.Logger)
	if err != nil {
		m.state = StateUnauthenticated
		return fmt.Errorf("session: resolve permissions: %w", err)
	}

	// The change feed must outlive the establish call, so it gets its own
	// session-lifetime context, canceled only on teardown.
	feedCtx, feedCancel := context.WithCancel(context.Background())
	listener := notify.NewListener(m.deps.Data, perms, m.deps.Logger)
	if err := listener.Subscribe(feedCtx); err != nil {
		feedCancel()
		m.state = StateUnauthenticated
		return fmt.Errorf("session: subscribe permission feed: %w", err)
	}

	stores := entity.NewStores(m.deps.Data, m.deps.Registry, m.deps.Logger)
	if err := stores.LoadAll(ctx); err != nil {
		listener.Close()
		feedCancel()
		stores.Teardown()
		m.state = StateUnauthenticated
		return fmt.Errorf("session: load collections: %w", err)
	}

	m.principal = &principal
	m.perms = perms
	m.listener = listener
	m.feedCancel = feedCancel
	m.stores = stores
	m.state = StateAuthenticated
	m.log().Info("session established",
		slog.String("principal", principal.ID.String()), slog.String("role", principal.Role))
	return nil
}

// HandleAuthEvent reacts to external auth notifications: sign-in and token
// refresh re-run the bootstrap, sign-out clears local state.
func (m *Manager) HandleAuthEvent(ctx context.Context, ev gateway.AuthEvent) error {
	switch ev.Type {
	case gateway.AuthSignedIn, gateway.AuthTokenRefreshed:
		return m.Establish(ctx)
	case gateway.AuthSignedOut:
		m.mu.Lock()
		defer m.mu.Unlock()
		m.teardownLocked()
		return nil
	default:
		return nil
	}
}

// SignOut invalidates the remote session and clears local state. Local
// teardown happens on every path, remote failure included.
func (m *Manager) SignOut(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutLocked(ctx)
}

func (m *Manager) signOutLocked(ctx context.Context) error {
	err := m.deps.Auth.SignOut(ctx, m.token)
	if err != nil {
		m.log().Warn("remote sign-out", slog.Any("error", err))
	}
	m.teardownLocked()
	return err
}

// teardownLocked releases the listener, empties the stores, and resets the
// state machine.
func (m *Manager) teardownLocked() {
	if m.listener != nil {
		m.listener.Close()
		m.listener = nil
	}
	if m.feedCancel != nil {
		m.feedCancel()
		m.feedCancel = nil
	}
	if m.stores != nil {
		m.stores.Teardown()
		m.stores = nil
	}
	m.perms = nil
	m.principal = nil
	m.state = StateUnauthenticated
}

// PrincipalID returns the signed-in principal id, if any.
func (m *Manager) PrincipalID() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.principal == nil {
		return uuid.UUID{}, false
	}
	return m.principal.ID, true
}

func (m *Manager) log() *slog.Logger {
	if m.deps.Logger != nil {
		return m.deps.Logger
	}
	return slog.Default()
}
