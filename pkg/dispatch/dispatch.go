// Package dispatch implements the ordered middleware chain the server
// pipeline is mounted on.
//
// Entries run in mount order. Each entry is mounted at a path and matches
// either every request below that path (prefix) or that path only (exact).
// A middleware sees the request path with its mount prefix stripped; the
// next entry sees the original path again.
package dispatch

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Route is one mounted entry.
type Route struct {
	Path       string
	Exact      bool
	Middleware Middleware
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for panics and unhandled errors.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithNotFound replaces the handler used when no entry responds.
func WithNotFound(h http.Handler) Option {
	return func(d *Dispatcher) {
		d.notFound = h
	}
}

// Dispatcher is an ordered, path-aware middleware chain.
type Dispatcher struct {
	mu       sync.RWMutex
	stack    []Route
	closed   bool
	logger   *zap.Logger
	notFound http.Handler
}

// New creates an empty Dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:   zap.NewNop(),
		notFound: http.HandlerFunc(notFound),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Use mounts mw for every request at or below path.
func (d *Dispatcher) Use(path string, mw Middleware) {
	d.use(Route{Path: cleanMount(path), Middleware: mw})
}

// UseExact mounts mw for requests to path only.
func (d *Dispatcher) UseExact(path string, mw Middleware) {
	d.use(Route{Path: cleanMount(path), Exact: true, Middleware: mw})
}

func (d *Dispatcher) use(rt Route) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stack = append(d.stack, rt)
}

// Routes returns a copy of the mounted entries in order.
func (d *Dispatcher) Routes() []Route {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Route, len(d.stack))
	copy(out, d.stack)
	return out
}

// Len returns the number of mounted entries.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stack)
}

// Reset drops every entry. A reset dispatcher answers 503 from then on.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stack = nil
	d.closed = true
}

// Closed reports whether Reset was called.
func (d *Dispatcher) Closed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// ServeHTTP runs the chain for one request against a snapshot of the
// entries mounted at the time the request arrived.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.RLock()
	stack, closed := d.stack, d.closed
	d.mu.RUnlock()

	if closed {
		http.Error(w, "Server closed", http.StatusServiceUnavailable)
		return
	}

	orig := r.URL
	var (
		idx     int
		current *responseWriter
		next    Next
	)
	next = func(w http.ResponseWriter, r *http.Request, err error) {
		if err == nil && current != nil && current.done() {
			return
		}
		r = withURL(r, orig)
		for idx < len(stack) {
			rt := stack[idx]
			idx++

			rest, ok := rt.match(orig.Path)
			if !ok {
				continue
			}
			em, isErr := rt.Middleware.(ErrorMiddleware)
			if err != nil && !isErr {
				continue
			}

			tw := &responseWriter{ResponseWriter: w}
			current = tw
			d.invoke(rt, tw, stripped(r, rt, rest), next, err, em)
			return
		}
		d.finish(w, r, err)
	}
	next(w, r, nil)
}

func (d *Dispatcher) invoke(rt Route, w http.ResponseWriter, r *http.Request, next Next, err error, em ErrorMiddleware) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		d.logger.Error("middleware panicked",
			zap.String("mount", rt.Path),
			zap.String("path", r.URL.Path),
			zap.Any("panic", rec),
		)
		next(w, r, &PanicError{Value: rec, Stack: debug.Stack()})
	}()

	if err != nil {
		em.ServeError(err, w, r, next)
		return
	}
	rt.Middleware.ServeNext(w, r, next)
}

func (d *Dispatcher) finish(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		d.notFound.ServeHTTP(w, r)
		return
	}
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		d.logger.Error("unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	http.Error(w, http.StatusText(status), status)
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Cannot "+r.Method+" "+r.URL.Path, http.StatusNotFound)
}

// match reports whether path falls under the route and returns the path
// the middleware should see.
func (rt Route) match(path string) (string, bool) {
	if rt.Exact {
		p := strings.TrimSuffix(path, "/")
		if p == "" {
			p = "/"
		}
		if !strings.EqualFold(p, rt.Path) {
			return "", false
		}
		return "/", true
	}
	if rt.Path == "/" {
		return path, true
	}
	n := len(rt.Path)
	if len(path) < n || !strings.EqualFold(path[:n], rt.Path) {
		return "", false
	}
	if len(path) > n && path[n] != '/' && path[n] != '.' {
		return "", false
	}
	rest := path[n:]
	if !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	return rest, true
}

func cleanMount(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

func withURL(r *http.Request, u *url.URL) *http.Request {
	if r.URL == u {
		return r
	}
	r2 := new(http.Request)
	*r2 = *r
	r2.URL = u
	return r2
}

func stripped(r *http.Request, rt Route, rest string) *http.Request {
	if rt.Path == "/" && !rt.Exact {
		return r
	}
	r2 := new(http.Request)
	*r2 = *r
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = rest
	if r.URL.RawPath != "" {
		r2.URL.RawPath = ""
	}
	return r2
}
