// Package modules resolves middleware by name.
//
// A module export is one of:
//
//   - dispatch.Middleware: mounted with the registration defaults
//   - options.ObjectDescriptor: mounted with its own path and match kind
//   - Factory: built with the options the caller provides
package modules

import (
	"errors"
	"sort"
	"sync"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/middleware"
)

// ErrNotFound is wrapped by resolution errors for unknown modules.
var ErrNotFound = errors.New("module not found")

// Resolver resolves module names to their exports.
type Resolver interface {
	RequireModule(name string) (any, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (any, error)

// RequireModule calls f.
func (f ResolverFunc) RequireModule(name string) (any, error) {
	return f(name)
}

// Factory builds a middleware from loosely typed options.
type Factory func(opts map[string]any) (dispatch.Middleware, error)

// Registry is an in-process Resolver. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	exports map[string]any
}

// NewRegistry returns a registry with the built-in modules:
//
//   - "compression": Factory over middleware.CompressionFactory
func NewRegistry() *Registry {
	r := &Registry{exports: make(map[string]any)}
	r.Register("compression", Factory(middleware.CompressionFactory))
	return r
}

// Register adds or replaces the export of name.
func (r *Registry) Register(name string, export any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exports[name] = export
}

// RequireModule returns the export of name.
func (r *Registry) RequireModule(name string) (any, error) {
	r.mu.RLock()
	export, ok := r.exports[name]
	r.mu.RUnlock()

	if !ok {
		return nil, vserrors.New(vserrors.CodeModuleNotFound).
			WithDetailf("No module named %q is registered.", name).
			Wrap(ErrNotFound)
	}
	return export, nil
}

// Names returns the registered module names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.exports))
	for name := range r.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize converts an export declared as a plain factory function into
// a Factory. Other exports are returned unchanged.
func Normalize(export any) any {
	if fn, ok := export.(func(map[string]any) (dispatch.Middleware, error)); ok {
		return Factory(fn)
	}
	return export
}

// Build resolves name and returns its middleware. Factories are called with
// opts; plain middleware exports ignore them.
func Build(r Resolver, name string, opts map[string]any) (dispatch.Middleware, error) {
	export, err := r.RequireModule(name)
	if err != nil {
		return nil, err
	}

	switch v := Normalize(export).(type) {
	case Factory:
		mw, err := v(opts)
		if err != nil {
			return nil, vserrors.New(vserrors.CodeModuleFactory).
				WithDetailf("Module %q rejected its options.", name).
				Wrap(err)
		}
		return mw, nil
	case dispatch.Middleware:
		return v, nil
	default:
		return nil, vserrors.New(vserrors.CodeModuleInvalid).
			WithDetailf("Module %q exports %T, which is not a middleware factory.", name, export)
	}
}
