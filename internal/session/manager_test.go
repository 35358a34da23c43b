package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/gateway"
	"github.com/meridian-crm/meridian/internal/retry"
)

type fakeAuth struct {
	mu           sync.Mutex
	sessions     map[string]gateway.RemoteSession
	signOutCalls []string
	signOutErr   error
	handler      func(gateway.AuthEvent)
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{sessions: make(map[string]gateway.RemoteSession)}
}

func (f *fakeAuth) GetSession(ctx context.Context, token string) (gateway.RemoteSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[token]
	if !ok {
		return gateway.RemoteSession{}, gateway.ErrNoSession
	}
	return sess, nil
}

func (f *fakeAuth) RegisterSession(ctx context.Context, sess gateway.RemoteSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sess.Token] = sess
	return nil
}

func (f *fakeAuth) SignOut(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls = append(f.signOutCalls, token)
	delete(f.sessions, token)
	return f.signOutErr
}

func (f *fakeAuth) OnAuthEvent(ctx context.Context, handler func(gateway.AuthEvent)) (gateway.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = handler
	return fakeSubscription{}, nil
}

func (f *fakeAuth) emit(ev gateway.AuthEvent) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (f *fakeAuth) signOuts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.signOutCalls...)
}

type fakeSubscription struct{}

func (fakeSubscription) Unsubscribe() {}

type fakeData struct {
	mu           sync.Mutex
	subscribeErr error
	fetchErr     error
	subscribeCtx context.Context
}

func (f *fakeData) FetchCollection(ctx context.Context, kind gateway.Kind) ([]gateway.Item, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return nil, nil
}

func (f *fakeData) FetchByID(ctx context.Context, kind gateway.Kind, id uuid.UUID) (gateway.Item, error) {
	return gateway.Item{}, gateway.ErrNotFound
}

func (f *fakeData) Insert(ctx context.Context, kind gateway.Kind, fields map[string]any) (gateway.Item, error) {
	return gateway.Item{}, errors.New("not implemented")
}

func (f *fakeData) Update(ctx context.Context, kind gateway.Kind, id uuid.UUID, fields map[string]any) (gateway.Item, error) {
	return gateway.Item{}, errors.New("not implemented")
}

func (f *fakeData) SoftDelete(ctx context.Context, kind gateway.Kind, id uuid.UUID) (gateway.Item, error) {
	return gateway.Item{}, errors.New("not implemented")
}

func (f *fakeData) HardDelete(ctx context.Context, kind gateway.Kind, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (f *fakeData) SubscribeChanges(ctx context.Context, table string, handler func(gateway.ChangeEvent)) (gateway.Subscription, error) {
	f.mu.Lock()
	f.subscribeCtx = ctx
	f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return fakeSubscription{}, nil
}

func (f *fakeData) feedContext() context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeCtx
}

type fakeDirectory struct {
	mu         sync.Mutex
	principals map[uuid.UUID]authz.Principal
	failFirst  int
	calls      int
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{principals: make(map[uuid.UUID]authz.Principal)}
}

func (f *fakeDirectory) FetchPrincipal(ctx context.Context, id uuid.UUID) (authz.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return authz.Principal{}, gateway.ErrNotFound
	}
	p, ok := f.principals[id]
	if !ok {
		return authz.Principal{}, gateway.ErrNotFound
	}
	return p, nil
}

func (f *fakeDirectory) InsertPrincipal(ctx context.Context, input gateway.PrincipalInput) (authz.Principal, error) {
	return authz.Principal{}, errors.New("not implemented")
}

func (f *fakeDirectory) DeactivatePrincipal(ctx context.Context, id uuid.UUID) error {
	return errors.New("not implemented")
}

type fakeRules struct {
	roleRules map[string][]authz.Rule
}

func (f *fakeRules) FetchRoleRules(ctx context.Context, role string) ([]authz.Rule, error) {
	return f.roleRules[role], nil
}

func (f *fakeRules) FetchPrincipalRules(ctx context.Context, principalID uuid.UUID) ([]authz.Rule, error) {
	return nil, nil
}

type fixture struct {
	auth      *fakeAuth
	data      *fakeData
	directory *fakeDirectory
	rules     *fakeRules
	deps      Deps
}

func newFixture() *fixture {
	f := &fixture{
		auth:      newFakeAuth(),
		data:      &fakeData{},
		directory: newFakeDirectory(),
		rules:     &fakeRules{roleRules: make(map[string][]authz.Rule)},
	}
	f.deps = Deps{
		Auth:      f.auth,
		Data:      f.data,
		Directory: f.directory,
		Rules:     f.rules,
		Registry:  gateway.DefaultRegistry(),
		Retry:     retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, Multiplier: 2},
	}
	return f
}

func (f *fixture) signIn(token string) authz.Principal {
	principal := authz.Principal{
		ID:     uuid.New(),
		Email:  "user@example.com",
		Role:   "Sales",
		Active: true,
	}
	f.directory.principals[principal.ID] = principal
	f.auth.sessions[token] = gateway.RemoteSession{
		Token:       token,
		PrincipalID: principal.ID,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	f.rules.roleRules["Sales"] = []authz.Rule{
		{ID: uuid.New(), Module: authz.ModulePipeline, Scope: authz.ScopeRole, Role: "Sales", Actions: authz.Actions{View: true, Edit: true}},
	}
	return principal
}

func TestEstablishWithoutRemoteSession(t *testing.T) {
	f := newFixture()
	mgr := NewManager("no-such-token", f.deps)

	require.NoError(t, mgr.Establish(context.Background()))
	require.Equal(t, StateUnauthenticated, mgr.State())
	_, _, ok := mgr.Current()
	require.False(t, ok)
}

func TestEstablishBootstrapsPrincipal(t *testing.T) {
	f := newFixture()
	principal := f.signIn("tok-1")
	mgr := NewManager("tok-1", f.deps)

	require.NoError(t, mgr.Establish(context.Background()))
	require.Equal(t, StateAuthenticated, mgr.State())

	got, perms, ok := mgr.Current()
	require.True(t, ok)
	require.Equal(t, principal.ID, got.ID)
	require.True(t, authz.Check(perms, authz.ModulePipeline, authz.ActionView))
	require.False(t, authz.Check(perms, authz.ModuleFinance, authz.ActionView))

	stores, ok := mgr.Stores()
	require.True(t, ok)
	require.NotNil(t, stores)
}

func TestEstablishRetriesLaggingProfile(t *testing.T) {
	f := newFixture()
	f.signIn("tok-1")
	f.directory.failFirst = 2
	mgr := NewManager("tok-1", f.deps)

	require.NoError(t, mgr.Establish(context.Background()))
	require.Equal(t, StateAuthenticated, mgr.State())
	require.Equal(t, 3, f.directory.calls)
}

func TestEstablishMissingProfileEndsUnauthenticated(t *testing.T) {
	f := newFixture()
	f.auth.sessions["tok-1"] = gateway.RemoteSession{
		Token:       "tok-1",
		PrincipalID: uuid.New(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	mgr := NewManager("tok-1", f.deps)

	// exhausted retries surface as "no principal", not as an error
	require.NoError(t, mgr.Establish(context.Background()))
	require.Equal(t, StateUnauthenticated, mgr.State())
	require.Empty(t, f.auth.signOuts(), "missing profile is not a sign-out")
}

func TestEstablishInactivePrincipalSignsOut(t *testing.T) {
	f := newFixture()
	principal := f.signIn("tok-1")
	principal.Active = false
	f.directory.principals[principal.ID] = principal
	mgr := NewManager("tok-1", f.deps)

	require.NoError(t, mgr.Establish(context.Background()))
	require.Equal(t, StateUnauthenticated, mgr.State())
	require.Equal(t, []string{"tok-1"}, f.auth.signOuts())
}

func TestChangeFeedOutlivesEstablishContext(t *testing.T) {
	f := newFixture()
	f.signIn("tok-1")
	mgr := NewManager("tok-1", f.deps)

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, mgr.Establish(reqCtx))
	cancel()

	// The subscription context is bound to the session, not the request.
	feedCtx := f.data.feedContext()
	require.NotNil(t, feedCtx)
	require.NoError(t, feedCtx.Err())
	require.Equal(t, StateAuthenticated, mgr.State())

	require.NoError(t, mgr.SignOut(context.Background()))
	require.ErrorIs(t, feedCtx.Err(), context.Canceled)
}

func TestEstablishLoadFailureTearsDown(t *testing.T) {
	f := newFixture()
	f.signIn("tok-1")
	f.data.fetchErr = errors.New("backend down")
	mgr := NewManager("tok-1", f.deps)

	require.Error(t, mgr.Establish(context.Background()))
	require.Equal(t, StateUnauthenticated, mgr.State())
	_, ok := mgr.Stores()
	require.False(t, ok)
}

func TestSignOutClearsLocalStateOnRemoteFailure(t *testing.T) {
	f := newFixture()
	f.signIn("tok-1")
	mgr := NewManager("tok-1", f.deps)
	require.NoError(t, mgr.Establish(context.Background()))

	f.auth.signOutErr = errors.New("remote unreachable")
	err := mgr.SignOut(context.Background())
	require.Error(t, err)

	// local teardown is unconditional
	require.Equal(t, StateUnauthenticated, mgr.State())
	_, _, ok := mgr.Current()
	require.False(t, ok)
	_, ok = mgr.Stores()
	require.False(t, ok)
}

func TestHandleAuthEventSignedOut(t *testing.T) {
	f := newFixture()
	f.signIn("tok-1")
	mgr := NewManager("tok-1", f.deps)
	require.NoError(t, mgr.Establish(context.Background()))

	require.NoError(t, mgr.HandleAuthEvent(context.Background(), gateway.AuthEvent{
		Type:  gateway.AuthSignedOut,
		Token: "tok-1",
	}))
	require.Equal(t, StateUnauthenticated, mgr.State())
	// remote sign-out already happened elsewhere; only local state clears
	require.Empty(t, f.auth.signOuts())
}

func TestHandleAuthEventTokenRefreshReestablishes(t *testing.T) {
	f := newFixture()
	f.signIn("tok-1")
	mgr := NewManager("tok-1", f.deps)
	require.NoError(t, mgr.Establish(context.Background()))

	require.NoError(t, mgr.HandleAuthEvent(context.Background(), gateway.AuthEvent{
		Type:  gateway.AuthTokenRefreshed,
		Token: "tok-1",
	}))
	require.Equal(t, StateAuthenticated, mgr.State())
}

func TestRegistryRoutesAuthEvents(t *testing.T) {
	f := newFixture()
	f.signIn("tok-1")
	registry := NewRegistry(f.deps)
	require.NoError(t, registry.Start(context.Background()))
	defer registry.Close()

	mgr, err := registry.Establish(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Equal(t, StateAuthenticated, mgr.State())

	f.auth.emit(gateway.AuthEvent{Type: gateway.AuthSignedOut, Token: "tok-1"})

	_, ok := registry.Lookup("tok-1")
	require.False(t, ok, "signed-out session is forgotten")
	require.Equal(t, StateUnauthenticated, mgr.State())
}

func TestRegistrySignOutUnknownTokenStillInvalidatesRemote(t *testing.T) {
	f := newFixture()
	registry := NewRegistry(f.deps)

	require.NoError(t, registry.SignOut(context.Background(), "stale-token"))
	require.Equal(t, []string{"stale-token"}, f.auth.signOuts())
}

func TestRegistryDropsFailedEstablish(t *testing.T) {
	f := newFixture()
	registry := NewRegistry(f.deps)

	mgr, err := registry.Establish(context.Background(), "no-such-token")
	require.NoError(t, err)
	require.Equal(t, StateUnauthenticated, mgr.State())
	_, ok := registry.Lookup("no-such-token")
	require.False(t, ok)
}
