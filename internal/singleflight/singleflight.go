// Package singleflight coalesces concurrent calls sharing a key so that the
// wrapped function runs once per in-flight window. The client uses it to
// collapse concurrent token refreshes into a single hook invocation.
package singleflight

import (
	"context"
	"sync"
)

// Group manages a set of in-flight calls to prevent duplicate work.
type Group[T any] struct {
	mu sync.Mutex
	m  map[string]*call[T]
}

type call[T any] struct {
	done chan struct{}
	val  T
	err  error
	dups int
}

// New creates a new Group.
func New[T any]() *Group[T] {
	return &Group[T]{
		m: make(map[string]*call[T]),
	}
}

// Do executes fn once for all callers that arrive while it is running.
// shared reports whether the result was handed to more than one caller.
// A waiter whose ctx ends first returns ctx.Err() without affecting the owner.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (v T, err error, shared bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()
		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err(), true
		}
	}

	c := &call[T]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	g.run(key, c, fn)
	return c.val, c.err, c.dups > 0
}

// TryDo runs fn only if no call for key is in flight; otherwise it returns
// ErrInProgress and ok=false immediately.
func (g *Group[T]) TryDo(key string, fn func() (T, error)) (v T, err error, ok bool) {
	g.mu.Lock()
	if _, exists := g.m[key]; exists {
		g.mu.Unlock()
		var zero T
		return zero, ErrInProgress, false
	}

	c := &call[T]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	g.run(key, c, fn)
	return c.val, c.err, true
}

// Forget drops key so the next Do starts a fresh call even if one is running.
func (g *Group[T]) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// InFlight reports whether a call for key is running.
func (g *Group[T]) InFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.m[key]
	return ok
}

// Waiting returns how many callers are blocked on the in-flight call for key.
func (g *Group[T]) Waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.m[key]; ok {
		return c.dups
	}
	return 0
}

func (g *Group[T]) run(key string, c *call[T], fn func() (T, error)) {
	defer func() {
		g.mu.Lock()
		if g.m[key] == c {
			delete(g.m, key)
		}
		g.mu.Unlock()
		close(c.done)
	}()
	c.val, c.err = fn()
}
