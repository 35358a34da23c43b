package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/gateway"
)

func seedSession(t *testing.T, client *redis.Client, token string, expiresAt time.Time) gateway.RemoteSession {
	t.Helper()
	sess := gateway.RemoteSession{Token: token, PrincipalID: uuid.New(), ExpiresAt: expiresAt}
	payload, err := json.Marshal(sess)
	require.NoError(t, err)
	require.NoError(t, client.Set(context.Background(), gateway.SessionKeyPrefix+token, payload, 0).Err())
	return sess
}

func TestCacheRefreshNotifiesLiveSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	live := seedSession(t, client, "tok-live", time.Now().Add(time.Hour))
	seedSession(t, client, "tok-old", time.Now().Add(-time.Hour))

	pubsub := client.Subscribe(ctx, gateway.AuthEventsChannel)
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	handler := NewCacheRefreshHandler(client, nil)
	require.NoError(t, handler(ctx, NewCacheRefreshTask()))

	select {
	case msg := <-pubsub.Channel():
		var ev gateway.AuthEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		require.Equal(t, gateway.AuthTokenRefreshed, ev.Type)
		require.Equal(t, live.Token, ev.Token)
		require.Equal(t, live.PrincipalID, ev.PrincipalID)
	case <-time.After(2 * time.Second):
		t.Fatal("no refresh event published")
	}

	select {
	case msg := <-pubsub.Channel():
		t.Fatalf("expired session must not be notified, got %q", msg.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCacheRefreshSkipsMalformedSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, gateway.SessionKeyPrefix+"broken", "not json", 0).Err())

	handler := NewCacheRefreshHandler(client, nil)
	require.NoError(t, handler(ctx, NewCacheRefreshTask()))
}
