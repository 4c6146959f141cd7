// Package dedupe provides the gateway's cache of meeting ids that already
// have a processing record, so repeated deliveries short-circuit without a
// store lookup.
//
// The cache is an optimisation only. A miss always falls through to the
// processing store, which remains the source of truth.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultMaxSize is the capacity used when no option overrides it.
const DefaultMaxSize = 50000

// SeenCache records meeting ids known to be claimed or finished.
type SeenCache interface {
	// Seen reports whether id was recorded.
	Seen(ctx context.Context, id string) bool
	// SeenAndRecord atomically checks id and records it if absent.
	// Returns true if id was already present.
	SeenAndRecord(ctx context.Context, id string) bool
	// Invalidate forgets id, e.g. after an enqueue was rejected or an
	// operator asked for a meeting to be reprocessed.
	Invalidate(ctx context.Context, id string)
	// Size returns the number of cached ids.
	Size() int64
}

type node struct {
	id         string
	prev, next *node
}

func (n *node) reset() {
	n.id = ""
	n.prev = nil
	n.next = nil
}

// inMemoryCache keeps ids in insertion order and evicts the oldest once
// maxSize is reached. maxSize <= 0 disables eviction.
type inMemoryCache struct {
	mu       sync.Mutex
	seen     map[string]*node
	head     *node // newest
	tail     *node // oldest
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryCache creates a bounded in-memory SeenCache.
func NewInMemoryCache(opts ...Option) SeenCache {
	c := &inMemoryCache{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(c)
	}
	c.seen = make(map[string]*node)
	c.nodePool = sync.Pool{New: func() any { return &node{} }}
	return c
}

func (c *inMemoryCache) Seen(_ context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

func (c *inMemoryCache) SeenAndRecord(_ context.Context, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return true
	}
	if c.maxSize > 0 && len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	n, _ := c.nodePool.Get().(*node)
	if n == nil {
		n = &node{}
	}
	n.id = id
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
	c.seen[id] = n
	c.size.Add(1)
	return false
}

func (c *inMemoryCache) Invalidate(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.seen[id]; ok {
		c.unlink(n)
	}
}

func (c *inMemoryCache) Size() int64 {
	return c.size.Load()
}

// evictOldest must be called with c.mu held.
func (c *inMemoryCache) evictOldest() {
	if c.tail != nil {
		c.unlink(c.tail)
	}
}

// unlink must be called with c.mu held.
func (c *inMemoryCache) unlink(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	delete(c.seen, n.id)
	n.reset()
	c.nodePool.Put(n)
	c.size.Add(-1)
}
