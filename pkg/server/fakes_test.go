package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"testing/fstest"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/listener"
	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/render"
)

type fakeRenderer struct {
	sc *render.ServerContext

	html      string
	readyErr  error
	renderErr error
	closeErr  error

	readyCalls atomic.Int32
	closeCalls atomic.Int32
	loaded     []fs.FS
	onReady    func()
}

func (r *fakeRenderer) Ready(ctx context.Context) error {
	r.readyCalls.Add(1)
	if r.onReady != nil {
		r.onReady()
	}
	return r.readyErr
}

func (r *fakeRenderer) RenderRoute(ctx context.Context, url string, rc *render.RenderContext) (*render.Result, error) {
	if r.renderErr != nil {
		return nil, r.renderErr
	}
	return &render.Result{HTML: r.html + url}, nil
}

func (r *fakeRenderer) LoadResources(ctx context.Context, fsys fs.FS) error {
	r.loaded = append(r.loaded, fsys)
	return nil
}

func (r *fakeRenderer) Close(ctx context.Context) error {
	r.closeCalls.Add(1)
	return r.closeErr
}

func (r *fakeRenderer) Context() *render.ServerContext { return r.sc }

func (r *fakeRenderer) factory() render.Factory {
	return func(sc *render.ServerContext) (render.Renderer, error) {
		r.sc = sc
		return r, nil
	}
}

type fakeListener struct {
	cfg       listener.Config
	srv       *http.Server
	listenErr error
	closeErr  error
	closes    atomic.Int32

	// entered receives when Listen starts; Listen then waits for release.
	entered chan<- struct{}
	release <-chan struct{}
}

func (l *fakeListener) Listen(ctx context.Context) error {
	if l.entered != nil {
		l.entered <- struct{}{}
	}
	if l.release != nil {
		<-l.release
	}
	return l.listenErr
}

func (l *fakeListener) Server() *http.Server { return l.srv }
func (l *fakeListener) URL() string          { return "fake://" + l.cfg.Host }
func (l *fakeListener) Close(ctx context.Context) error {
	l.closes.Add(1)
	return l.closeErr
}

// listenerFactory records every listener it builds.
type listenerFactory struct {
	mu        sync.Mutex
	built     []*fakeListener
	listenErr error
	closeErr  error
	entered   chan struct{}
	release   chan struct{}
}

func (f *listenerFactory) build(cfg listener.Config) Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &fakeListener{
		cfg:       cfg,
		srv:       &http.Server{},
		listenErr: f.listenErr,
		closeErr:  f.closeErr,
		entered:   f.entered,
		release:   f.release,
	}
	f.built = append(f.built, l)
	return l
}

// marker is a comparable middleware that records its name in the
// response and continues.
type marker struct{ name string }

func (m *marker) ServeNext(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
	w.Header().Add("X-Marker", m.name)
	next(w, r, nil)
}

type resolverMap map[string]any

func (m resolverMap) RequireModule(name string) (any, error) {
	if v, ok := m[name]; ok {
		return v, nil
	}
	return nil, errors.New("cannot find module " + name)
}

func testFS() (static, dist fstest.MapFS) {
	static = fstest.MapFS{"robots.txt": {Data: []byte("User-agent: *")}}
	dist = fstest.MapFS{"app.js": {Data: []byte("console.log('app')")}}
	return static, dist
}

func testConfig(opts *options.Options, r *fakeRenderer) Config {
	static, dist := testFS()
	return Config{
		Options:  opts,
		Renderer: r.factory(),
		StaticFS: static,
		DistFS:   dist,
		Resolver: resolverMap{},
	}
}
