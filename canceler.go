package taxios

import (
	"sync"
)

// CancelFunc aborts an in-flight request with the given reason.
type CancelFunc func(reason error)

type cancelerEntry struct {
	token  uint64
	cancel CancelFunc
}

// CancelerRegistry maps the fingerprint of an in-flight cancelable request to
// its cancel callback, so that a newer equivalent request can supersede it.
// It is safe for concurrent use.
type CancelerRegistry struct {
	mu      sync.Mutex
	entries map[string]cancelerEntry
	next    uint64
}

// NewCancelerRegistry returns an empty registry.
func NewCancelerRegistry() *CancelerRegistry {
	return &CancelerRegistry{
		entries: make(map[string]cancelerEntry),
	}
}

// Register stores cancel for fingerprint unless an entry already exists.
// The returned token identifies this registration for Release.
func (r *CancelerRegistry) Register(fingerprint string, cancel CancelFunc) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(fingerprint, cancel)
}

// Supersede cancels and removes the entry for fingerprint, if any.
func (r *CancelerRegistry) Supersede(fingerprint string) bool {
	r.mu.Lock()
	entry, ok := r.takeLocked(fingerprint)
	r.mu.Unlock()

	if ok {
		entry.cancel(ErrSuperseded)
	}
	return ok
}

// Release removes the entry for fingerprint without invoking it, but only if
// it still belongs to the registration identified by token. A finished
// request therefore never drops the entry of a newer request.
func (r *CancelerRegistry) Release(fingerprint string, token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[fingerprint]
	if !ok || entry.token != token {
		return false
	}
	delete(r.entries, fingerprint)
	return true
}

// Replace supersedes any pending request for fingerprint and registers cancel
// in its place, as one step. It reports whether a request was superseded.
func (r *CancelerRegistry) Replace(fingerprint string, cancel CancelFunc) (token uint64, superseded bool) {
	r.mu.Lock()
	previous, superseded := r.takeLocked(fingerprint)
	token, _ = r.registerLocked(fingerprint, cancel)
	r.mu.Unlock()

	if superseded {
		previous.cancel(ErrSuperseded)
	}
	return token, superseded
}

// Len returns the number of pending entries.
func (r *CancelerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *CancelerRegistry) registerLocked(fingerprint string, cancel CancelFunc) (uint64, bool) {
	if _, exists := r.entries[fingerprint]; exists {
		return 0, false
	}
	r.next++
	r.entries[fingerprint] = cancelerEntry{token: r.next, cancel: cancel}
	return r.next, true
}

func (r *CancelerRegistry) takeLocked(fingerprint string) (cancelerEntry, bool) {
	entry, ok := r.entries[fingerprint]
	if ok {
		delete(r.entries, fingerprint)
	}
	return entry, ok
}
