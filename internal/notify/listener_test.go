package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/gateway"
)

type feedGateway struct {
	handler      func(gateway.ChangeEvent)
	table        string
	subscribeErr error
	unsubscribes int
}

func (f *feedGateway) FetchCollection(ctx context.Context, kind gateway.Kind) ([]gateway.Item, error) {
	return nil, nil
}

func (f *feedGateway) FetchByID(ctx context.Context, kind gateway.Kind, id uuid.UUID) (gateway.Item, error) {
	return gateway.Item{}, gateway.ErrNotFound
}

func (f *feedGateway) Insert(ctx context.Context, kind gateway.Kind, fields map[string]any) (gateway.Item, error) {
	return gateway.Item{}, errors.New("not implemented")
}

func (f *feedGateway) Update(ctx context.Context, kind gateway.Kind, id uuid.UUID, fields map[string]any) (gateway.Item, error) {
	return gateway.Item{}, errors.New("not implemented")
}

func (f *feedGateway) SoftDelete(ctx context.Context, kind gateway.Kind, id uuid.UUID) (gateway.Item, error) {
	return gateway.Item{}, errors.New("not implemented")
}

func (f *feedGateway) HardDelete(ctx context.Context, kind gateway.Kind, id uuid.UUID) error {
	return errors.New("not implemented")
}

func (f *feedGateway) SubscribeChanges(ctx context.Context, table string, handler func(gateway.ChangeEvent)) (gateway.Subscription, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.table = table
	f.handler = handler
	return feedSubscription{gw: f}, nil
}

type feedSubscription struct {
	gw *feedGateway
}

func (s feedSubscription) Unsubscribe() {
	s.gw.unsubscribes++
}

type recordingHandler struct {
	changes []authz.RuleChange
	err     error
}

func (h *recordingHandler) HandleChange(ctx context.Context, change authz.RuleChange) error {
	h.changes = append(h.changes, change)
	return h.err
}

func TestSubscribeWatchesPermissionRules(t *testing.T) {
	gw := &feedGateway{}
	listener := NewListener(gw, &recordingHandler{}, nil)

	require.NoError(t, listener.Subscribe(context.Background()))
	require.Equal(t, gateway.PermissionRulesTable, gw.table)

	require.Error(t, listener.Subscribe(context.Background()), "double subscribe must fail")
}

func TestDispatchParsesRoleScopedChange(t *testing.T) {
	gw := &feedGateway{}
	handler := &recordingHandler{}
	listener := NewListener(gw, handler, nil)
	require.NoError(t, listener.Subscribe(context.Background()))

	ruleID := uuid.New()
	gw.handler(gateway.ChangeEvent{
		Type:  gateway.EventUpdate,
		Table: gateway.PermissionRulesTable,
		New: map[string]any{
			"id":    ruleID.String(),
			"scope": "role",
		},
	})

	require.Len(t, handler.changes, 1)
	require.Equal(t, ruleID, handler.changes[0].RuleID)
	require.False(t, handler.changes[0].PrincipalScoped)
}

func TestDispatchParsesPrincipalScopedChange(t *testing.T) {
	gw := &feedGateway{}
	handler := &recordingHandler{}
	listener := NewListener(gw, handler, nil)
	require.NoError(t, listener.Subscribe(context.Background()))

	ruleID := uuid.New()
	principalID := uuid.New()
	gw.handler(gateway.ChangeEvent{
		Type:  gateway.EventInsert,
		Table: gateway.PermissionRulesTable,
		New: map[string]any{
			"id":           ruleID.String(),
			"scope":        "principal",
			"principal_id": principalID.String(),
		},
	})

	require.Len(t, handler.changes, 1)
	require.True(t, handler.changes[0].PrincipalScoped)
	require.Equal(t, principalID, handler.changes[0].ScopePrincipalID)
}

func TestDispatchUsesOldRowForDeletes(t *testing.T) {
	gw := &feedGateway{}
	handler := &recordingHandler{}
	listener := NewListener(gw, handler, nil)
	require.NoError(t, listener.Subscribe(context.Background()))

	ruleID := uuid.New()
	gw.handler(gateway.ChangeEvent{
		Type:  gateway.EventDelete,
		Table: gateway.PermissionRulesTable,
		Old: map[string]any{
			"id":    ruleID.String(),
			"scope": "role",
		},
	})

	require.Len(t, handler.changes, 1)
	require.Equal(t, ruleID, handler.changes[0].RuleID)
}

func TestDispatchDropsMalformedEvents(t *testing.T) {
	gw := &feedGateway{}
	handler := &recordingHandler{}
	listener := NewListener(gw, handler, nil)
	require.NoError(t, listener.Subscribe(context.Background()))

	gw.handler(gateway.ChangeEvent{Type: gateway.EventUpdate})
	gw.handler(gateway.ChangeEvent{
		Type: gateway.EventUpdate,
		New:  map[string]any{"id": "not-a-uuid"},
	})

	require.Empty(t, handler.changes)
}

func TestCloseIsIdempotent(t *testing.T) {
	gw := &feedGateway{}
	listener := NewListener(gw, &recordingHandler{}, nil)
	require.NoError(t, listener.Subscribe(context.Background()))

	listener.Close()
	listener.Close()
	require.Equal(t, 1, gw.unsubscribes)

	// a never-subscribed listener closes cleanly too
	NewListener(gw, &recordingHandler{}, nil).Close()
	require.Equal(t, 1, gw.unsubscribes)
}
