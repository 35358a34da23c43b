// Package notify owns the permission-change subscription of a session: one
// feed, opened at session start, released deterministically on every exit
// path.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/gateway"
)

// ChangeHandler receives rule changes; the resolver's relevance test decides
// whether a refetch happens.
type ChangeHandler interface {
	HandleChange(ctx context.Context, change authz.RuleChange) error
}

// Listener bridges the gateway change feed to the permission resolver.
type Listener struct {
	gw      gateway.DataGateway
	handler ChangeHandler
	logger  *slog.Logger

	mu  sync.Mutex
	sub gateway.Subscription
}

// NewListener constructs an unsubscribed listener.
func NewListener(gw gateway.DataGateway, handler ChangeHandler, logger *slog.Logger) *Listener {
	return &Listener{gw: gw, handler: handler, logger: logger}
}

// Subscribe opens the permission-rule feed. Calling Subscribe on an already
// subscribed listener is an error.
func (l *Listener) Subscribe(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sub != nil {
		return errors.New("notify: already subscribed")
	}
	sub, err := l.gw.SubscribeChanges(ctx, gateway.PermissionRulesTable, l.dispatch)
	if err != nil {
		return err
	}
	l.sub = sub
	return nil
}

// Close releases the feed. Idempotent; safe on listeners that never
// subscribed.
func (l *Listener) Close() {
	l.mu.Lock()
	sub := l.sub
	l.sub = nil
	l.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

func (l *Listener) dispatch(ev gateway.ChangeEvent) {
	change, ok := ruleChangeFromEvent(ev)
	if !ok {
		if l.logger != nil {
			l.logger.Warn("unreadable permission change event", slog.String("type", string(ev.Type)))
		}
		return
	}
	// The feed callback is not tied to a request; re-resolution runs on its
	// own context.
	if err := l.handler.HandleChange(context.Background(), change); err != nil && l.logger != nil {
		l.logger.Error("permission re-resolution", slog.Any("error", err))
	}
}

func ruleChangeFromEvent(ev gateway.ChangeEvent) (authz.RuleChange, bool) {
	row := ev.Row()
	if row == nil {
		return authz.RuleChange{}, false
	}
	rawID, _ := row["id"].(string)
	id, err := uuid.Parse(rawID)
	if err != nil {
		return authz.RuleChange{}, false
	}
	change := authz.RuleChange{RuleID: id}
	if scope, _ := row["scope"].(string); authz.Scope(scope) == authz.ScopePrincipal {
		change.PrincipalScoped = true
		if rawPrincipal, _ := row["principal_id"].(string); rawPrincipal != "" {
			if pid, err := uuid.Parse(rawPrincipal); err == nil {
				change.ScopePrincipalID = pid
			}
		}
	}
	return change, true
}
