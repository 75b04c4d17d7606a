package dispatch

import "net/http"

// Next continues the chain. A non-nil err skips to the next ErrorMiddleware.
type Next func(w http.ResponseWriter, r *http.Request, err error)

// Middleware handles a request and either responds or calls next.
type Middleware interface {
	ServeNext(w http.ResponseWriter, r *http.Request, next Next)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(w http.ResponseWriter, r *http.Request, next Next)

// ServeNext calls f(w, r, next).
func (f MiddlewareFunc) ServeNext(w http.ResponseWriter, r *http.Request, next Next) {
	f(w, r, next)
}

// ErrorMiddleware is invoked only while an error travels down the chain.
type ErrorMiddleware interface {
	Middleware
	ServeError(err error, w http.ResponseWriter, r *http.Request, next Next)
}

// ErrorFunc adapts a function to ErrorMiddleware. Requests without an
// error pass straight through.
type ErrorFunc func(err error, w http.ResponseWriter, r *http.Request, next Next)

// ServeNext passes the request on untouched.
func (f ErrorFunc) ServeNext(w http.ResponseWriter, r *http.Request, next Next) {
	next(w, r, nil)
}

// ServeError calls f(err, w, r, next).
func (f ErrorFunc) ServeError(err error, w http.ResponseWriter, r *http.Request, next Next) {
	f(err, w, r, next)
}

// Handler mounts a terminal http.Handler. The chain ends at h.
func Handler(h http.Handler) Middleware {
	return MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, _ Next) {
		h.ServeHTTP(w, r)
	})
}

// Wrap adapts net/http style middleware. The chain continues when the
// wrapped middleware calls its inner handler, with whatever writer and
// request it passes along.
func Wrap(mw func(http.Handler) http.Handler) Middleware {
	return MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next Next) {
		mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next(w, r, nil)
		})).ServeHTTP(w, r)
	})
}
