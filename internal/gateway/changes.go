package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// changeChannel is the NOTIFY channel row triggers publish on.
const changeChannel = "meridian_changes"

type changePayload struct {
	Event string         `json:"event"`
	Table string         `json:"table"`
	New   map[string]any `json:"new"`
	Old   map[string]any `json:"old"`
}

// SubscribeChanges opens a change feed filtered to one table. The feed holds
// a dedicated connection for its lifetime; Unsubscribe releases it and is
// idempotent.
func (g *PG) SubscribeChanges(ctx context.Context, table string, handler func(ChangeEvent)) (Subscription, error) {
	if handler == nil {
		return nil, errors.New("gateway: change handler required")
	}
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("gateway: acquire feed connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("gateway: listen: %w", err)
	}

	feedCtx, cancel := context.WithCancel(ctx)
	sub := &changeSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer conn.Release()
		for {
			notification, err := conn.Conn().WaitForNotification(feedCtx)
			if err != nil {
				if feedCtx.Err() == nil && g.logger != nil {
					g.logger.Warn("change feed closed", slog.Any("error", err))
				}
				return
			}
			var payload changePayload
			if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
				if g.logger != nil {
					g.logger.Warn("malformed change payload", slog.Any("error", err))
				}
				continue
			}
			if payload.Table != table {
				continue
			}
			handler(ChangeEvent{
				Type:  EventType(payload.Event),
				Table: payload.Table,
				New:   payload.New,
				Old:   payload.Old,
			})
		}
	}()
	return sub, nil
}

type changeSubscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *changeSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
