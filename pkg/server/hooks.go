package server

import (
	"net/http"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/hooks"
	"github.com/vango-dev/vserve/pkg/middleware"
	"github.com/vango-dev/vserve/pkg/options"
)

// RenderBeforeEvent is passed to render:before.
type RenderBeforeEvent struct {
	Server *Server
	Render *options.RenderOptions
}

// ListenEvent is passed to listen.
type ListenEvent struct {
	Server *http.Server
	Record *ListenerRecord
}

// DevMiddlewareEvent is passed to server:devMiddleware. Either field may
// be nil.
type DevMiddlewareEvent struct {
	Dev *BuildMiddleware
	Hot *BuildMiddleware
}

// Hooks are the lifecycle notifications of a framework instance.
type Hooks struct {
	RenderBefore    *hooks.Event[RenderBeforeEvent]
	RenderDone      *hooks.Event[*Server]
	SetupMiddleware *hooks.Event[*dispatch.Dispatcher]
	ErrorMiddleware *hooks.Event[*dispatch.Dispatcher]
	Listen          *hooks.Event[ListenEvent]
	Close           *hooks.Event[struct{}]
	DevMiddleware   *hooks.Event[DevMiddlewareEvent]

	Route          *hooks.Event[*middleware.RouteEvent]
	BeforeResponse *hooks.Event[*middleware.RouteEvent]
	RouteDone      *hooks.Event[*middleware.RouteEvent]
}

// NewHooks returns empty hooks.
func NewHooks() *Hooks {
	return &Hooks{
		RenderBefore:    hooks.NewEvent[RenderBeforeEvent]("render:before"),
		RenderDone:      hooks.NewEvent[*Server]("render:done"),
		SetupMiddleware: hooks.NewEvent[*dispatch.Dispatcher]("render:setupMiddleware"),
		ErrorMiddleware: hooks.NewEvent[*dispatch.Dispatcher]("render:errorMiddleware"),
		Listen:          hooks.NewEvent[ListenEvent]("listen"),
		Close:           hooks.NewEvent[struct{}]("close"),
		DevMiddleware:   hooks.NewEvent[DevMiddlewareEvent]("server:devMiddleware"),

		Route:          hooks.NewEvent[*middleware.RouteEvent]("render:route"),
		BeforeResponse: hooks.NewEvent[*middleware.RouteEvent]("render:beforeResponse"),
		RouteDone:      hooks.NewEvent[*middleware.RouteEvent]("render:routeDone"),
	}
}

func (h *Hooks) render() middleware.RenderHooks {
	return middleware.RenderHooks{
		Route:          h.Route,
		BeforeResponse: h.BeforeResponse,
		RouteDone:      h.RouteDone,
	}
}
