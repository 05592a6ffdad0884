// Package lru implements a fixed-capacity least-recently-used cache keyed by
// string. It is not safe for concurrent use; callers serialize access.
package lru

import "reflect"

// EvictCallback is invoked with the entry removed to make room for a new key.
type EvictCallback[V any] func(key string, value V)

// Cache is a fixed-capacity LRU cache.
type Cache[V any] struct {
	capacity int
	index    map[string]*entry[V]
	items    list[V]
	onEvict  EvictCallback[V]
}

// New creates a cache holding at most capacity entries. A capacity below one
// is treated as one.
func New[V any](capacity int) *Cache[V] {
	return NewWithEvict[V](capacity, nil)
}

// NewWithEvict is New with a callback fired on every capacity eviction.
func NewWithEvict[V any](capacity int, onEvict EvictCallback[V]) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		capacity: capacity,
		index:    make(map[string]*entry[V]),
		items:    newList[V](),
		onEvict:  onEvict,
	}
}

// Has reports whether key is cached without touching recency.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.index[key]
	return ok
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	node, ok := c.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.items.moveToFront(node)
	return node.value, true
}

// Set stores value under key. Nil values are ignored. Updating an existing key
// replaces the value and promotes it; inserting a new key past capacity evicts
// the least recently used entry.
func (c *Cache[V]) Set(key string, value V) {
	if isNil(value) {
		return
	}

	if node, ok := c.index[key]; ok {
		c.items.moveToFront(node)
		node.value = value
		return
	}

	node := &entry[V]{key: key, value: value}
	c.index[key] = node
	c.items.pushFront(node)

	if len(c.index) > c.capacity {
		c.evict()
	}
}

// Remove deletes key, reporting whether it was present.
func (c *Cache[V]) Remove(key string) bool {
	node, ok := c.index[key]
	if !ok {
		return false
	}
	c.items.remove(node)
	delete(c.index, key)
	return true
}

// Purge drops every entry. The eviction callback is not fired.
func (c *Cache[V]) Purge() {
	c.index = make(map[string]*entry[V], c.capacity)
	c.items = newList[V]()
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	return len(c.index)
}

// Cap returns the configured capacity.
func (c *Cache[V]) Cap() int {
	return c.capacity
}

// Travel returns the cached values ordered from most to least recently used.
// Intended for diagnostics and tests.
func (c *Cache[V]) Travel() []V {
	values := make([]V, 0, len(c.index))
	for node := c.items.head.next; node != c.items.tail; node = node.next {
		values = append(values, node.value)
	}
	return values
}

// Keys returns the cached keys ordered from most to least recently used.
func (c *Cache[V]) Keys() []string {
	keys := make([]string, 0, len(c.index))
	for node := c.items.head.next; node != c.items.tail; node = node.next {
		keys = append(keys, node.key)
	}
	return keys
}

func (c *Cache[V]) evict() {
	node := c.items.back()
	if node == nil {
		return
	}
	c.items.remove(node)
	delete(c.index, node.key)
	if c.onEvict != nil {
		c.onEvict(node.key, node.value)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
