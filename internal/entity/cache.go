// Package entity owns the in-memory mirror of the remote entity collections
// and the write-through mutation executor. Local state changes strictly
// follow remote success; a failed mutation leaves the mirror at its
// last-known-good state and surfaces the error to the caller.
package entity

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian/internal/gateway"
)

// Cache mirrors one entity collection. Only the cache mutates its items;
// callers get copies.
type Cache struct {
	kind   gateway.Kind
	schema gateway.Schema
	gw     gateway.DataGateway

	mu     sync.RWMutex
	items  []gateway.Item
	index  map[uuid.UUID]int
	loaded bool
	// generation changes on teardown; a mutation started against an older
	// generation discards its result instead of resurrecting state.
	generation uint64
}

// NewCache constructs an empty mirror for a kind.
func NewCache(gw gateway.DataGateway, schema gateway.Schema) *Cache {
	return &Cache{
		kind:   schema.Kind,
		schema: schema,
		gw:     gw,
		index:  make(map[uuid.UUID]int),
	}
}

// Kind returns the mirrored collection kind.
func (c *Cache) Kind() gateway.Kind {
	return c.kind
}

// Schema returns the kind schema.
func (c *Cache) Schema() gateway.Schema {
	return c.schema
}

// Load replaces the whole local collection from the remote gateway,
// preserving remote order. Loading twice with no remote change yields an
// identical collection.
func (c *Cache) Load(ctx context.Context) error {
	gen := c.currentGeneration()
	items, err := c.gw.FetchCollection(ctx, c.kind)
	if err != nil {
		return fmt.Errorf("entity: load %s: %w", c.kind, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	c.items = items
	c.index = make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		c.index[item.ID] = i
	}
	c.loaded = true
	return nil
}

// Loaded reports whether the mirror holds a collection.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Items returns the full local collection, soft-deleted rows included.
func (c *Cache) Items() []gateway.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyItems(c.items)
}

// Active returns the local collection filtered to active rows. For kinds
// without soft-delete semantics this equals Items.
func (c *Cache) Active() []gateway.Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gateway.Item, 0, len(c.items))
	for _, item := range c.items {
		if item.Active {
			out = append(out, cloneItem(item))
		}
	}
	return out
}

// Get returns one local item by identifier.
func (c *Cache) Get(id uuid.UUID) (gateway.Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return gateway.Item{}, false
	}
	return cloneItem(c.items[i]), true
}

// Create calls the gateway insert and, on success, prepends the returned
// item (remote identifier and timestamps included). On failure the local
// collection is untouched.
func (c *Cache) Create(ctx context.Context, fields map[string]any) (gateway.Item, error) {
	gen := c.currentGeneration()
	item, err := c.gw.Insert(ctx, c.kind, fields)
	if err != nil {
		return gateway.Item{}, fmt.Errorf("entity: create %s: %w", c.kind, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return item, nil
	}
	c.items = append([]gateway.Item{item}, c.items...)
	c.reindexLocked()
	return cloneItem(item), nil
}

// Update calls the gateway update and, on success, replaces the matching
// local item in place. On failure the stale local item remains.
func (c *Cache) Update(ctx context.Context, id uuid.UUID, fields map[string]any) (gateway.Item, error) {
	gen := c.currentGeneration()
	item, err := c.gw.Update(ctx, c.kind, id, fields)
	if err != nil {
		return gateway.Item{}, fmt.Errorf("entity: update %s: %w", c.kind, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return item, nil
	}
	if i, ok := c.index[id]; ok {
		c.items[i] = item
	}
	return cloneItem(item), nil
}

// Remove soft-deletes kinds with an active flag (the item stays in the full
// view with active=false) and hard-deletes the rest (the item leaves the
// collection).
func (c *Cache) Remove(ctx context.Context, id uuid.UUID) error {
	gen := c.currentGeneration()
	if c.schema.SoftDelete {
		item, err := c.gw.SoftDelete(ctx, c.kind, id)
		if err != nil {
			return fmt.Errorf("entity: remove %s: %w", c.kind, err)
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			return nil
		}
		if i, ok := c.index[id]; ok {
			c.items[i] = item
		}
		return nil
	}

	if err := c.gw.HardDelete(ctx, c.kind, id); err != nil {
		return fmt.Errorf("entity: remove %s: %w", c.kind, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	if i, ok := c.index[id]; ok {
		c.items = append(c.items[:i], c.items[i+1:]...)
		c.reindexLocked()
	}
	return nil
}

// Teardown empties the mirror and invalidates in-flight mutations.
func (c *Cache) Teardown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.index = make(map[uuid.UUID]int)
	c.loaded = false
	c.generation++
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

func (c *Cache) reindexLocked() {
	c.index = make(map[uuid.UUID]int, len(c.items))
	for i, item := range c.items {
		c.index[item.ID] = i
	}
}

func copyItems(items []gateway.Item) []gateway.Item {
	out := make([]gateway.Item, len(items))
	for i, item := range items {
		out[i] = cloneItem(item)
	}
	return out
}

func cloneItem(item gateway.Item) gateway.Item {
	fields := make(map[string]any, len(item.Fields))
	for k, v := range item.Fields {
		fields[k] = v
	}
	item.Fields = fields
	return item
}
