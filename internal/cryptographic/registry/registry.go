// Package registry maps driver names to factories. Each capability package
// keeps one Registry and validates names against it at configuration time.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnknownDriver = errors.New("unknown driver")

type (
	Registry[F any] struct {
		kind      string
		mu        sync.RWMutex
		factories map[string]F
	}
)

func New[F any](kind string) *Registry[F] {
	return &Registry[F]{
		kind:      kind,
		factories: make(map[string]F),
	}
}

// Register adds or replaces the factory for name.
func (r *Registry[F]) Register(name string, factory F) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

func (r *Registry[F]) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

func (r *Registry[F]) Lookup(name string) (F, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[name]
	if !ok || name == "" {
		var zero F
		return zero, fmt.Errorf("%s driver %q: %w", r.kind, name, ErrUnknownDriver)
	}
	return f, nil
}

func (r *Registry[F]) IsValid(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Names returns the registered driver names in sorted order.
func (r *Registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
