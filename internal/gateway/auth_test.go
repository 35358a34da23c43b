package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestAuth(t *testing.T) (*RedisAuth, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAuth(client, time.Hour, nil), mr
}

func TestGetSessionRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	sess := RemoteSession{
		Token:       "tok-1",
		PrincipalID: uuid.New(),
		ExpiresAt:   time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	if err := auth.RegisterSession(ctx, sess); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := auth.GetSession(ctx, "tok-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PrincipalID != sess.PrincipalID {
		t.Fatalf("expected principal %s, got %s", sess.PrincipalID, got.PrincipalID)
	}
}

func TestGetSessionMissingToken(t *testing.T) {
	auth, _ := newTestAuth(t)

	if _, err := auth.GetSession(context.Background(), "unknown"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, err := auth.GetSession(context.Background(), ""); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for empty token, got %v", err)
	}
}

func TestGetSessionExpired(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	sess := RemoteSession{
		Token:       "tok-1",
		PrincipalID: uuid.New(),
		ExpiresAt:   time.Now().Add(-time.Minute),
	}
	if err := auth.RegisterSession(ctx, sess); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := auth.GetSession(ctx, "tok-1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for expired session, got %v", err)
	}
}

func TestSignOutDeletesAndAnnounces(t *testing.T) {
	auth, mr := newTestAuth(t)
	ctx := context.Background()

	sess := RemoteSession{Token: "tok-1", PrincipalID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := auth.RegisterSession(ctx, sess); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := auth.SignOut(ctx, "tok-1"); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if mr.Exists("auth:session:tok-1") {
		t.Fatalf("expected session key deleted")
	}
	if _, err := auth.GetSession(ctx, "tok-1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after sign-out, got %v", err)
	}
}

func TestSignOutUnknownTokenIsNoError(t *testing.T) {
	auth, _ := newTestAuth(t)
	if err := auth.SignOut(context.Background(), "never-registered"); err != nil {
		t.Fatalf("expected stale token sign-out to succeed, got %v", err)
	}
}

func TestOnAuthEventDeliversLifecycle(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	var mu sync.Mutex
	var events []AuthEvent
	sub, err := auth.OnAuthEvent(ctx, func(ev AuthEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	sess := RemoteSession{Token: "tok-1", PrincipalID: uuid.New(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := auth.RegisterSession(ctx, sess); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := auth.SignOut(ctx, "tok-1"); err != nil {
		t.Fatalf("sign out: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(events)
		mu.Unlock()
		if n >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for events, got %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if events[0].Type != AuthSignedIn || events[0].Token != "tok-1" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != AuthSignedOut || events[1].PrincipalID != sess.PrincipalID {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	auth, _ := newTestAuth(t)
	sub, err := auth.OnAuthEvent(context.Background(), func(AuthEvent) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()
}
