package options

import "github.com/vango-dev/vserve/pkg/dispatch"

// Middleware is the mountable unit; see package dispatch.
type Middleware = dispatch.Middleware

// Descriptor describes one middleware registration. It is one of
// HandlerDescriptor, ObjectDescriptor or ModuleDescriptor.
type Descriptor interface {
	descriptor()
}

// HandlerDescriptor mounts an already resolved middleware at the router base.
type HandlerDescriptor struct {
	Handler Middleware
}

// ObjectDescriptor mounts a middleware, given directly or by module name,
// with an explicit path.
type ObjectDescriptor struct {
	// Handler wins over Module when both are set.
	Handler Middleware

	// Module is resolved through the module resolver.
	Module string

	// Path is joined to the router base (see Prefix).
	Path string

	// Prefix joins Path to the router base.
	// Default: true.
	Prefix *bool

	// Exact mounts for Path only instead of everything below it.
	// Default: the opposite of Prefix.
	Exact *bool
}

// ModuleDescriptor mounts the middleware exported by a module at the
// router base.
type ModuleDescriptor struct {
	Name string
}

func (HandlerDescriptor) descriptor() {}
func (ObjectDescriptor) descriptor()  {}
func (ModuleDescriptor) descriptor()  {}

// PrefixOrDefault resolves the Prefix default.
func (d ObjectDescriptor) PrefixOrDefault() bool {
	return d.Prefix == nil || *d.Prefix
}

// ExactOrDefault resolves the Exact default.
func (d ObjectDescriptor) ExactOrDefault() bool {
	if d.Exact != nil {
		return *d.Exact
	}
	return !d.PrefixOrDefault()
}

// Handler returns a HandlerDescriptor for mw.
func Handler(mw Middleware) Descriptor {
	return HandlerDescriptor{Handler: mw}
}

// Module returns a ModuleDescriptor for name.
func Module(name string) Descriptor {
	return ModuleDescriptor{Name: name}
}
