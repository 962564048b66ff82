// Package cache provides a thread-safe LRU cache bounded by the total
// cost of its entries.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// DefaultBudget is the cost budget used when New is given zero.
const DefaultBudget = 64 << 20

// Cost returns the cost of a value, usually its size in bytes.
type Cost[V any] func(V) int64

// Stats is a snapshot of cache counters.
type Stats struct {
	Len       int
	Cost      int64
	Budget    int64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entry[K comparable, V any] struct {
	key   K
	value V
	cost  int64
}

// LRU evicts the least recently used entries once the summed cost exceeds
// the budget. An entry costing more than the whole budget is not stored.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*list.Element
	order   *list.List // front is most recent
	cost    Cost[V]
	used    int64
	budget  int64

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache. A nil cost counts every entry as 1, turning the
// budget into an entry count.
func New[K comparable, V any](budget int64, cost Cost[V]) *LRU[K, V] {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if cost == nil {
		cost = func(V) int64 { return 1 }
	}
	return &LRU[K, V]{
		entries: make(map[K]*list.Element),
		order:   list.New(),
		cost:    cost,
		budget:  budget,
	}
}

// Get returns the value for key and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.order.MoveToFront(el)
	c.hits.Add(1)
	return el.Value.(*entry[K, V]).value, true
}

// Set stores value under key, evicting older entries as needed. It
// reports whether the value was stored.
func (c *LRU[K, V]) Set(key K, value V) bool {
	cost := c.cost(value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	if cost > c.budget {
		return false
	}
	for c.used+cost > c.budget {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.evictions.Add(1)
	}
	c.entries[key] = c.order.PushFront(&entry[K, V]{key: key, value: value, cost: cost})
	c.used += cost
	return true
}

// Delete removes key and reports whether it was present.
func (c *LRU[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if ok {
		c.removeElement(el)
	}
	return ok
}

// Clear removes every entry. Counters are kept.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	clear(c.entries)
	c.order.Init()
	c.used = 0
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns current counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	n, used := len(c.entries), c.used
	c.mu.Unlock()
	return Stats{
		Len:       n,
		Cost:      used,
		Budget:    c.budget,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *LRU[K, V]) removeElement(el *list.Element) {
	e := c.order.Remove(el).(*entry[K, V])
	delete(c.entries, e.key)
	c.used -= e.cost
}
