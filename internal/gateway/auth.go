package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout shared with the hosted auth service. Background jobs scan the
// session keyspace and publish on the event channel, so both are exported.
const (
	SessionKeyPrefix  = "auth:session:"
	AuthEventsChannel = "auth:events"
)

// RedisAuth implements AuthGateway against the hosted auth service's redis
// session store and event channel.
type RedisAuth struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisAuth constructs the auth gateway.
func NewRedisAuth(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisAuth {
	return &RedisAuth{client: client, ttl: ttl, logger: logger}
}

// GetSession returns the remote session for a token, or ErrNoSession.
func (a *RedisAuth) GetSession(ctx context.Context, token string) (RemoteSession, error) {
	if token == "" {
		return RemoteSession{}, ErrNoSession
	}
	payload, err := a.client.Get(ctx, SessionKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return RemoteSession{}, ErrNoSession
		}
		return RemoteSession{}, fmt.Errorf("gateway: get session: %w", err)
	}
	var sess RemoteSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return RemoteSession{}, fmt.Errorf("gateway: decode session: %w", err)
	}
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		return RemoteSession{}, ErrNoSession
	}
	return sess, nil
}

// RegisterSession stores a session and announces the sign-in.
func (a *RedisAuth) RegisterSession(ctx context.Context, sess RemoteSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if err := a.client.Set(ctx, SessionKeyPrefix+sess.Token, payload, a.ttl).Err(); err != nil {
		return fmt.Errorf("gateway: register session: %w", err)
	}
	a.publish(ctx, AuthEvent{Type: AuthSignedIn, Token: sess.Token, PrincipalID: sess.PrincipalID})
	return nil
}

// SignOut invalidates the remote session unconditionally and announces it.
func (a *RedisAuth) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	sess, err := a.GetSession(ctx, token)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return err
	}
	if err := a.client.Del(ctx, SessionKeyPrefix+token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("gateway: sign out: %w", err)
	}
	a.publish(ctx, AuthEvent{Type: AuthSignedOut, Token: token, PrincipalID: sess.PrincipalID})
	return nil
}

// OnAuthEvent subscribes to the auth lifecycle feed.
func (a *RedisAuth) OnAuthEvent(ctx context.Context, handler func(AuthEvent)) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("gateway: auth event handler required")
	}
	pubsub := a.client.Subscribe(ctx, AuthEventsChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("gateway: subscribe auth events: %w", err)
	}

	sub := &authSubscription{pubsub: pubsub, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			var ev AuthEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				if a.logger != nil {
					a.logger.Warn("malformed auth event", slog.Any("error", err))
				}
				continue
			}
			handler(ev)
		}
	}()
	return sub, nil
}

func (a *RedisAuth) publish(ctx context.Context, ev AuthEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := a.client.Publish(ctx, AuthEventsChannel, payload).Err(); err != nil && a.logger != nil {
		a.logger.Warn("publish auth event", slog.Any("error", err))
	}
}

type authSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
}

func (s *authSubscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.pubsub.Close()
		<-s.done
	})
}
