package server

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/modules"
	"github.com/vango-dev/vserve/pkg/options"
)

// UseMiddleware mounts the middleware described by d on the dispatcher.
//
// Module references are resolved through the resolver. When resolution
// fails the error is logged; in development it is then ignored so the
// server keeps starting, otherwise it is returned.
func (s *Server) UseMiddleware(d options.Descriptor) error {
	obj, err := s.resolveDescriptor(d)
	if err != nil {
		s.logger.Error("could not resolve middleware", zap.Error(err))
		if s.opts.Dev {
			return nil
		}
		return err
	}

	app := s.app.Load()
	if app == nil {
		return ErrClosed
	}

	path := s.mountPath(obj)
	if obj.ExactOrDefault() {
		app.UseExact(path, obj.Handler)
	} else {
		app.Use(path, obj.Handler)
	}
	return nil
}

// resolveDescriptor turns every descriptor kind into an ObjectDescriptor
// with a Handler.
func (s *Server) resolveDescriptor(d options.Descriptor) (options.ObjectDescriptor, error) {
	switch d := d.(type) {
	case options.HandlerDescriptor:
		if d.Handler == nil {
			return options.ObjectDescriptor{}, invalidDescriptor("handler is nil")
		}
		return options.ObjectDescriptor{Handler: d.Handler}, nil

	case options.ModuleDescriptor:
		return s.resolveModule(options.ObjectDescriptor{Module: d.Name})

	case options.ObjectDescriptor:
		if d.Handler != nil {
			return d, nil
		}
		if d.Module == "" {
			return options.ObjectDescriptor{}, invalidDescriptor("neither handler nor module is set")
		}
		return s.resolveModule(d)

	case nil:
		return options.ObjectDescriptor{}, invalidDescriptor("descriptor is nil")

	default:
		return options.ObjectDescriptor{}, invalidDescriptor(fmt.Sprintf("unsupported descriptor %T", d))
	}
}

// resolveModule resolves d.Module. The export's own path and match
// settings fill in whatever d leaves unset.
func (s *Server) resolveModule(d options.ObjectDescriptor) (options.ObjectDescriptor, error) {
	export, err := s.resolver.RequireModule(d.Module)
	if err != nil {
		return options.ObjectDescriptor{}, err
	}

	switch v := modules.Normalize(export).(type) {
	case options.ObjectDescriptor:
		if v.Handler == nil {
			return options.ObjectDescriptor{}, vserrors.New(vserrors.CodeModuleInvalid).
				WithDetailf("Module %q exports a descriptor without a handler.", d.Module)
		}
		d.Handler = v.Handler
		if d.Path == "" {
			d.Path = v.Path
		}
		if d.Prefix == nil {
			d.Prefix = v.Prefix
		}
		if d.Exact == nil {
			d.Exact = v.Exact
		}
		return d, nil

	case modules.Factory:
		mw, err := v(nil)
		if err != nil {
			return options.ObjectDescriptor{}, vserrors.New(vserrors.CodeModuleFactory).
				WithDetailf("Module %q could not be built.", d.Module).
				Wrap(err)
		}
		d.Handler = mw
		return d, nil

	case dispatch.Middleware:
		d.Handler = v
		return d, nil
	}

	return options.ObjectDescriptor{}, vserrors.New(vserrors.CodeModuleInvalid).
		WithDetailf("Module %q exports %T.", d.Module, export)
}

// mountPath joins the router base and d.Path when d is prefixed, and
// collapses runs of slashes.
func (s *Server) mountPath(d options.ObjectDescriptor) string {
	path := d.Path
	if d.PrefixOrDefault() {
		path = s.opts.Router.Base + "/" + path
	}
	return cleanPath(path)
}

func cleanPath(path string) string {
	var b strings.Builder
	b.Grow(len(path) + 1)
	b.WriteByte('/')
	for i := 0; i < len(path); i++ {
		if path[i] == '/' && (i == 0 || path[i-1] == '/' || b.Len() == 1) {
			continue
		}
		b.WriteByte(path[i])
	}
	return b.String()
}

func invalidDescriptor(detail string) error {
	return vserrors.New(vserrors.CodeModuleInvalid).WithDetail("Invalid middleware descriptor: " + detail + ".")
}
