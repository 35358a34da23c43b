package entity

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-crm/meridian/internal/gateway"
)

// loadConcurrency caps parallel collection fetches during a full load.
const loadConcurrency = 8

// Stores aggregates one cache per entity kind for the lifetime of a
// session: created at session start, torn down completely on sign-out.
type Stores struct {
	registry *gateway.Registry
	caches   map[gateway.Kind]*Cache
	order    []gateway.Kind
	logger   *slog.Logger
}

// NewStores builds an empty store set covering every registered kind.
func NewStores(gw gateway.DataGateway, registry *gateway.Registry, logger *slog.Logger) *Stores {
	s := &Stores{
		registry: registry,
		caches:   make(map[gateway.Kind]*Cache),
		order:    registry.Kinds(),
		logger:   logger,
	}
	for _, kind := range s.order {
		schema, _ := registry.Schema(kind)
		s.caches[kind] = NewCache(gw, schema)
	}
	return s
}

// Cache returns the mirror for a kind.
func (s *Stores) Cache(kind gateway.Kind) (*Cache, error) {
	c, ok := s.caches[kind]
	if !ok {
		return nil, fmt.Errorf("entity: unknown kind %q", kind)
	}
	return c, nil
}

// Kinds lists the mirrored kinds in registry order.
func (s *Stores) Kinds() []gateway.Kind {
	out := make([]gateway.Kind, len(s.order))
	copy(out, s.order)
	return out
}

// LoadAll replaces every collection from the remote gateway.
func (s *Stores) LoadAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, kind := range s.order {
		cache := s.caches[kind]
		g.Go(func() error {
			return cache.Load(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Debug("collections loaded", slog.Int("kinds", len(s.order)))
	}
	return nil
}

// Teardown empties every mirror. Safe to call more than once.
func (s *Stores) Teardown() {
	for _, kind := range s.order {
		s.caches[kind].Teardown()
	}
}
