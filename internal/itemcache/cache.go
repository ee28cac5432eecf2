// Package itemcache remembers item metadata seen recently so a widget can
// re-add an item with partial data. It is never the source of truth for
// whether an item is in the cart.
package itemcache

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nikolayk812/storefront-cart/internal/domain"
)

const DefaultTTL = 5 * time.Minute

type entry struct {
	value     domain.ItemInput
	timestamp time.Time
}

type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clockwork.Clock
	entries map[string]entry
}

func New(ttl time.Duration, c clockwork.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if c == nil {
		c = clockwork.NewRealClock()
	}

	return &Cache{
		ttl:     ttl,
		clock:   c,
		entries: make(map[string]entry),
	}
}

// Get evicts the entry when it has outlived the TTL.
func (c *Cache) Get(id string) (domain.ItemInput, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return domain.ItemInput{}, false
	}
	if c.clock.Now().Sub(e.timestamp) >= c.ttl {
		delete(c.entries, id)
		return domain.ItemInput{}, false
	}
	return e.value, true
}

func (c *Cache) Put(id string, item domain.ItemInput) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = entry{value: item, timestamp: c.clock.Now()}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
}

// Len counts stored entries, expired ones included until they are looked up.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Merge fills blank fields of in from the cached entry for in.ID.
func (c *Cache) Merge(in domain.ItemInput) domain.ItemInput {
	cached, ok := c.Get(in.ID)
	if !ok {
		return in
	}

	if in.Title == "" {
		in.Title = cached.Title
	}
	if in.Image == "" {
		in.Image = cached.Image
	}
	if in.Dimensions == "" {
		in.Dimensions = cached.Dimensions
	}
	if in.Price == "" {
		in.Price = cached.Price
	}
	return in
}
