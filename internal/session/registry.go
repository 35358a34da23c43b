package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/meridian-crm/meridian/internal/entity"
	"github.com/meridian-crm/meridian/internal/gateway"
)

// Registry tracks the live session managers by token and routes remote auth
// events to them. It holds the single auth-feed subscription for the
// process.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Manager
	sub      gateway.Subscription
}

// NewRegistry constructs an empty registry.
func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Manager)}
}

// Start subscribes to the remote auth event feed.
func (r *Registry) Start(ctx context.Context) error {
	sub, err := r.deps.Auth.OnAuthEvent(ctx, r.handleAuthEvent)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()
	return nil
}

// Establish returns the manager for a token, creating and bootstrapping one
// if needed. Managers that fail to authenticate are not retained.
func (r *Registry) Establish(ctx context.Context, token string) (*Manager, error) {
	r.mu.Lock()
	mgr, ok := r.sessions[token]
	if !ok {
		mgr = NewManager(token, r.deps)
		r.sessions[token] = mgr
	}
	r.mu.Unlock()

	if err := mgr.Establish(ctx); err != nil {
		r.drop(token)
		return nil, err
	}
	if mgr.State() != StateAuthenticated {
		r.drop(token)
		return mgr, nil
	}
	return mgr, nil
}

// Lookup returns an existing manager without establishing.
func (r *Registry) Lookup(token string) (*Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mgr, ok := r.sessions[token]
	return mgr, ok
}

// StoresFor returns the entity stores of an authenticated token.
func (r *Registry) StoresFor(token string) (*entity.Stores, bool) {
	mgr, ok := r.Lookup(token)
	if !ok {
		return nil, false
	}
	return mgr.Stores()
}

// SignOut signs out and forgets the session for a token.
func (r *Registry) SignOut(ctx context.Context, token string) error {
	mgr, ok := r.Lookup(token)
	if !ok {
		// Still invalidate remotely; stale tokens must die on every path.
		return r.deps.Auth.SignOut(ctx, token)
	}
	err := mgr.SignOut(ctx)
	r.drop(token)
	return err
}

// Close releases the auth feed and tears down every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sub := r.sub
	r.sub = nil
	sessions := make([]*Manager, 0, len(r.sessions))
	for _, mgr := range r.sessions {
		sessions = append(sessions, mgr)
	}
	r.sessions = make(map[string]*Manager)
	r.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	for _, mgr := range sessions {
		mgr.mu.Lock()
		mgr.teardownLocked()
		mgr.mu.Unlock()
	}
}

func (r *Registry) drop(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

func (r *Registry) handleAuthEvent(ev gateway.AuthEvent) {
	mgr, ok := r.Lookup(ev.Token)
	if !ok {
		return
	}
	// Feed callbacks are detached from any request context.
	if err := mgr.HandleAuthEvent(context.Background(), ev); err != nil && r.deps.Logger != nil {
		r.deps.Logger.Error("auth event handling", slog.String("type", string(ev.Type)), slog.Any("error", err))
	}
	if ev.Type == gateway.AuthSignedOut {
		r.drop(ev.Token)
	}
}
