package render

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known resource keys.
const (
	ResourceSPATemplate    = "spaTemplate"
	ResourceErrorTemplate  = "errorTemplate"
	ResourceClientManifest = "clientManifest"
	ResourceModernManifest = "modernManifest"
)

// Resources is the named bag of runtime resources shared by the server,
// its renderer and middleware. Reset empties it in place, so holders of
// the pointer observe the reset.
type Resources struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewResources returns an empty bag.
func NewResources() *Resources {
	return &Resources{m: make(map[string]any)}
}

// Get returns the value stored under key.
func (r *Resources) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[key]
	return v, ok
}

// Set stores v under key.
func (r *Resources) Set(key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[key] = v
}

// Has reports whether key is set.
func (r *Resources) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Delete removes key.
func (r *Resources) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, key)
}

// Len returns the number of entries.
func (r *Resources) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// Keys returns the sorted keys.
func (r *Resources) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.m))
	for k := range r.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset removes every entry.
func (r *Resources) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.m)
}

// Lookup returns the value under key as a T.
func Lookup[T any](r *Resources, key string) (T, error) {
	var zero T
	v, ok := r.Get(key)
	if !ok {
		return zero, fmt.Errorf("resource %q not loaded", key)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("resource %q has type %T, want %T", key, v, zero)
	}
	return t, nil
}
