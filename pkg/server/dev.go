package server

import (
	"net/http"
	"strings"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/middleware"
)

// BuildMiddleware is a development sub-middleware with one handler per
// bundle flavor. Handlers that do not own the request must leave the
// response untouched.
type BuildMiddleware struct {
	Client http.Handler
	Modern http.Handler
}

func (b *BuildMiddleware) handler(modern bool) http.Handler {
	if b == nil {
		return nil
	}
	if modern {
		return b.Modern
	}
	return b.Client
}

// AttachDev swaps the development sub-middleware. Nil detaches.
func (s *Server) AttachDev(dev, hot *BuildMiddleware) {
	s.dev.Store(dev)
	s.hot.Store(hot)
}

// devBridge forwards requests to the attached dev and hot middleware for
// the request's bundle flavor, then always continues the chain once.
func (s *Server) devBridge() dispatch.Middleware {
	publicPath := s.opts.PublicPath()

	return dispatch.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
		dev, hot := s.dev.Load(), s.hot.Load()
		if dev == nil && hot == nil {
			next(w, r, nil)
			return
		}

		if strings.HasPrefix(r.URL.Path, publicPath) && strings.HasSuffix(r.URL.Path, ".js") {
			w.Header().Set("Vary", "*")
		}

		modern := middleware.IsModern(r)
		if h := dev.handler(modern); h != nil {
			h.ServeHTTP(w, r)
		}
		if h := hot.handler(modern); h != nil {
			h.ServeHTTP(w, r)
		}
		next(w, r, nil)
	})
}
