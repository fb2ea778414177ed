package feed

import (
	"context"
	"sync"

	"github.com/erazemk/najdeno/internal/model"
)

// maxTombstones bounds how many removed ids the cache remembers.
const maxTombstones = 1024

// Loader reads an item from the backing store. It returns nil, nil when the
// item does not exist.
type Loader func(ctx context.Context, id string) (*model.Item, error)

// Cache is a read-through item cache kept current by Apply. It hands out
// copies and never lets callers modify its entries. Entries only move
// forward: an item snapshot replaces the cached one only if its Version is
// higher.
type Cache struct {
	load  Loader
	limit int

	mu    sync.Mutex
	items map[string]model.Item
	// loading tracks ids with a load in flight. A change applied meanwhile
	// marks the load dirty and its result is not stored.
	loading map[string]*pendingLoad
	// removed holds ids of deleted items so late snapshots cannot bring
	// them back. order is its eviction queue.
	removed map[string]struct{}
	order   []string
}

type pendingLoad struct {
	waiters int
	dirty   bool
}

// NewCache returns a cache holding at most limit items (unbounded if
// limit <= 0).
func NewCache(load Loader, limit int) *Cache {
	return &Cache{
		load:    load,
		limit:   limit,
		items:   make(map[string]model.Item),
		loading: make(map[string]*pendingLoad),
		removed: make(map[string]struct{}),
	}
}

// Get returns the item with id, loading it on a miss.
func (c *Cache) Get(ctx context.Context, id string) (*model.Item, error) {
	c.mu.Lock()
	if item, ok := c.items[id]; ok {
		c.mu.Unlock()
		clone := item.Clone()
		return &clone, nil
	}
	p := c.loading[id]
	if p == nil {
		p = &pendingLoad{}
		c.loading[id] = p
	}
	p.waiters++
	c.mu.Unlock()

	item, err := c.load(ctx, id)

	c.mu.Lock()
	if p.waiters--; p.waiters == 0 {
		delete(c.loading, id)
	}
	if err == nil && item != nil && !p.dirty {
		c.putNewer(*item)
	}
	c.mu.Unlock()

	if err != nil || item == nil {
		return item, err
	}
	clone := item.Clone()
	return &clone, nil
}

// Apply updates the cache from a committed event. Item snapshots older than
// the cached one and snapshots of removed items are dropped. Non-item
// events are ignored.
func (c *Cache) Apply(e Event) {
	if e.Kind != KindItem {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := c.loading[e.ID]; p != nil {
		p.dirty = true
	}
	if e.Removed || e.Item == nil {
		delete(c.items, e.ID)
		c.tombstone(e.ID)
		return
	}
	if _, gone := c.removed[e.ID]; gone {
		return
	}
	c.putNewer(*e.Item)
}

// Invalidate drops id so the next Get reloads it.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.loading[id]; p != nil {
		p.dirty = true
	}
	delete(c.items, id)
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) putNewer(item model.Item) {
	cur, ok := c.items[item.ID]
	if ok && cur.Version >= item.Version {
		return
	}
	if !ok && c.limit > 0 && len(c.items) >= c.limit {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
	c.items[item.ID] = item.Clone()
}

func (c *Cache) tombstone(id string) {
	if _, ok := c.removed[id]; ok {
		return
	}
	if len(c.order) >= maxTombstones {
		delete(c.removed, c.order[0])
		c.order = c.order[1:]
	}
	c.removed[id] = struct{}{}
	c.order = append(c.order, id)
}
