// Package registry maps opaque integer handles to live values.
package registry

import "sync"

// Registry assigns each registered value a unique, never-reused id.
// Id 0 is never assigned.
type Registry[T any] struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]T
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{entries: make(map[uint64]T)}
}

// Register stores v and returns its id.
func (r *Registry[T]) Register(v T) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.entries[r.next] = v
	return r.next
}

// Lookup returns the value for id.
func (r *Registry[T]) Lookup(id uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[id]
	return v, ok
}

// Remove deletes id and returns the value it held. Only one caller
// observes ok for a given id.
func (r *Registry[T]) Remove(id uint64) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return v, ok
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Drain removes and returns every live value.
func (r *Registry[T]) Drain() []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]T, 0, len(r.entries))
	for id, v := range r.entries {
		out = append(out, v)
		delete(r.entries, id)
	}
	return out
}
