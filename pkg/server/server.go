package server

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/assets"
	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/listener"
	"github.com/vango-dev/vserve/pkg/modules"
	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/render"
)

var (
	// ErrNotReady is returned by renderer delegations before Ready.
	ErrNotReady = vserrors.New(vserrors.CodeNotReady)

	// ErrClosed is returned by operations on a closed server.
	ErrClosed = vserrors.New(vserrors.CodeClosed)
)

// Listener is a bound endpoint. *listener.Listener implements it.
type Listener interface {
	Listen(ctx context.Context) error
	Server() *http.Server
	URL() string
	Close(ctx context.Context) error
}

// ListenerFactory builds a Listener for an endpoint.
type ListenerFactory func(cfg listener.Config) Listener

// ListenerRecord is one endpoint the server listens on.
type ListenerRecord struct {
	Listener Listener
	Server   *http.Server
	URL      string
}

// Config configures a Server.
type Config struct {
	// Options default to options.Default().
	Options *options.Options

	// Hooks default to NewHooks().
	Hooks *Hooks

	// Resolver resolves module middleware. Default: modules.NewRegistry().
	Resolver modules.Resolver

	// Renderer builds the renderer in Ready. Default: render.NewSPA.
	Renderer render.Factory

	// Listeners builds listeners in Listen. Default: listener.New.
	Listeners ListenerFactory

	// Registry receives server and request metrics. Nil disables them.
	Registry prometheus.Registerer

	// StaticFS and DistFS replace the static directory and build output.
	StaticFS fs.FS
	DistFS   fs.FS

	// Objects is the S3 client used when build output lives in a bucket.
	Objects assets.ObjectAPI

	Logger *zap.Logger
}

// Server is the runtime HTTP server of one framework instance.
type Server struct {
	cfg         Config
	opts        *options.Options
	hooks       *Hooks
	resolver    modules.Resolver
	newRenderer render.Factory
	newListener ListenerFactory
	registry    prometheus.Registerer
	logger      *zap.Logger
	metrics     *serverMetrics

	resources *render.Resources
	sc        *render.ServerContext
	app       atomic.Pointer[dispatch.Dispatcher]
	dev       atomic.Pointer[BuildMiddleware]
	hot       atomic.Pointer[BuildMiddleware]

	readyMu  sync.Mutex
	ready    bool
	mu       sync.Mutex
	renderer render.Renderer
	records  []*ListenerRecord
	closing  bool

	closeMu sync.Mutex
	closed  atomic.Bool
}

// New creates a server. It subscribes to the close hook, and in
// development to server:devMiddleware.
func New(cfg Config) *Server {
	if cfg.Options == nil {
		cfg.Options = options.Default()
	}
	if cfg.Hooks == nil {
		cfg.Hooks = NewHooks()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = modules.NewRegistry()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = render.NewSPA(render.SPAOptions{})
	}
	if cfg.Listeners == nil {
		cfg.Listeners = func(c listener.Config) Listener { return listener.New(c) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("server")

	s := &Server{
		cfg:         cfg,
		opts:        cfg.Options,
		hooks:       cfg.Hooks,
		resolver:    cfg.Resolver,
		newRenderer: cfg.Renderer,
		newListener: cfg.Listeners,
		registry:    cfg.Registry,
		logger:      logger,
		resources:   render.NewResources(),
	}
	s.sc = render.NewServerContext(s.opts, s.resources, logger.Named("context"))
	s.app.Store(dispatch.New(dispatch.WithLogger(logger.Named("dispatch"))))
	if cfg.Registry != nil {
		s.metrics = newServerMetrics(cfg.Registry)
	}

	s.hooks.Close.On(func(ctx context.Context, _ struct{}) error {
		return s.Close(ctx)
	})
	if s.opts.Dev {
		s.hooks.DevMiddleware.On(func(_ context.Context, ev DevMiddlewareEvent) error {
			s.AttachDev(ev.Dev, ev.Hot)
			return nil
		})
	}
	return s
}

// Options returns the options the server was built with.
func (s *Server) Options() *options.Options { return s.opts }

// Hooks returns the server hooks.
func (s *Server) Hooks() *Hooks { return s.hooks }

// Resources returns the resources bag. It is never nil.
func (s *Server) Resources() *render.Resources { return s.resources }

// Context returns the context shared with the renderer.
func (s *Server) Context() *render.ServerContext { return s.sc }

// Dispatcher returns the middleware chain, or nil after Close.
func (s *Server) Dispatcher() *dispatch.Dispatcher { return s.app.Load() }

// Closed reports whether Close has completed.
func (s *Server) Closed() bool { return s.closed.Load() }

// Ready builds the renderer, waits for it and assembles the pipeline. It
// runs once; later calls return nil.
func (s *Server) Ready(ctx context.Context) error {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()

	if s.closed.Load() {
		return ErrClosed
	}
	if s.ready {
		return nil
	}

	if err := s.hooks.RenderBefore.Emit(ctx, RenderBeforeEvent{Server: s, Render: &s.opts.Render}); err != nil {
		return err
	}

	r, err := s.newRenderer(s.sc)
	if err != nil {
		return vserrors.New(vserrors.CodeRendererFailed).Wrap(err)
	}
	if err := r.Ready(ctx); err != nil {
		return s.discardRenderer(ctx, r, vserrors.New(vserrors.CodeRendererFailed).Wrap(err))
	}
	s.mu.Lock()
	s.renderer = r
	s.mu.Unlock()

	if err := s.SetupMiddleware(ctx); err != nil {
		s.logger.Error("pipeline setup failed", zap.Error(err))
		s.resetDispatcher()
		return s.discardRenderer(ctx, r, err)
	}

	if err := s.hooks.RenderDone.Emit(ctx, s); err != nil {
		s.resetDispatcher()
		return s.discardRenderer(ctx, r, err)
	}
	s.ready = true
	s.metrics.setReady(true)
	return nil
}

// discardRenderer closes r after a failed Ready so a retry starts clean.
func (s *Server) discardRenderer(ctx context.Context, r render.Renderer, err error) error {
	s.mu.Lock()
	if s.renderer == r {
		s.renderer = nil
	}
	s.mu.Unlock()
	if cerr := r.Close(context.WithoutCancel(ctx)); cerr != nil {
		s.logger.Error("renderer close failed", zap.Error(cerr))
		err = multierr.Append(err, cerr)
	}
	return err
}

func (s *Server) resetDispatcher() {
	if app := s.app.Load(); app != nil {
		app.Reset()
		s.app.Store(dispatch.New(dispatch.WithLogger(s.logger.Named("dispatch"))))
	}
}

func (s *Server) currentRenderer() (render.Renderer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.renderer == nil {
		if s.closed.Load() {
			return nil, ErrClosed
		}
		return nil, ErrNotReady
	}
	return s.renderer, nil
}

// RenderRoute renders url through the renderer.
func (s *Server) RenderRoute(ctx context.Context, url string, rc *render.RenderContext) (*render.Result, error) {
	r, err := s.currentRenderer()
	if err != nil {
		return nil, err
	}
	if rc == nil {
		rc = &render.RenderContext{}
	}
	return r.RenderRoute(ctx, url, rc)
}

// LoadResources reloads the renderer resources from fsys, or from the
// build output on disk when fsys is nil.
func (s *Server) LoadResources(ctx context.Context, fsys fs.FS) error {
	r, err := s.currentRenderer()
	if err != nil {
		return err
	}
	return r.LoadResources(ctx, fsys)
}

// RenderAndGetWindow fetches url and parses the page the app renders.
func (s *Server) RenderAndGetWindow(ctx context.Context, url string, opts render.WindowOptions) (*render.Window, error) {
	g := s.sc.Globals
	return render.GetWindow(ctx, url, opts, render.WindowConfig{
		LoadedCallback: g.LoadedCallback,
		SSR:            s.opts.Render.SSR,
		Globals:        g,
	})
}

// ServeHTTP runs the pipeline. After Close it answers 503.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app := s.app.Load()
	if app == nil {
		http.Error(w, "Server closed", http.StatusServiceUnavailable)
		return
	}
	app.ServeHTTP(w, r)
}

type listenOptions struct {
	port   int
	host   string
	socket string
}

// ListenOption overrides one configured endpoint setting.
type ListenOption func(*listenOptions)

// WithPort overrides Options.Server.Port.
func WithPort(port int) ListenOption {
	return func(o *listenOptions) { o.port = port }
}

// WithHost overrides Options.Server.Host.
func WithHost(host string) ListenOption {
	return func(o *listenOptions) { o.host = host }
}

// WithSocket overrides Options.Server.Socket.
func WithSocket(socket string) ListenOption {
	return func(o *listenOptions) { o.socket = socket }
}

// Listen binds one more endpoint. Explicit options win over
// Options.Server. Ready should have completed before.
func (s *Server) Listen(ctx context.Context, opts ...ListenOption) (*ListenerRecord, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	so := s.opts.Server
	lo := listenOptions{port: so.Port, host: so.Host, socket: so.Socket}
	for _, opt := range opts {
		opt(&lo)
	}

	l := s.newListener(listener.Config{
		Port:    lo.port,
		Host:    lo.host,
		Socket:  lo.socket,
		HTTPS:   so.HTTPS,
		Handler: s,
		Dev:     s.opts.Dev,
		Logger:  s.logger.Named("listener"),
	})
	if err := l.Listen(ctx); err != nil {
		s.logger.Error("listen failed",
			zap.String("host", lo.host),
			zap.Int("port", lo.port),
			zap.String("socket", lo.socket),
			zap.Error(err),
		)
		return nil, err
	}

	rec := &ListenerRecord{Listener: l, Server: l.Server(), URL: l.URL()}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		if err := l.Close(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error("listener close failed", zap.String("url", rec.URL), zap.Error(err))
		}
		return nil, ErrClosed
	}
	s.records = append(s.records, rec)
	n := len(s.records)
	s.mu.Unlock()
	s.metrics.setListeners(n)

	if err := s.hooks.Listen.Emit(ctx, ListenEvent{Server: rec.Server, Record: rec}); err != nil {
		return rec, err
	}
	return rec, nil
}

// Listeners returns the active listener records in listen order.
func (s *Server) Listeners() []*ListenerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ListenerRecord(nil), s.records...)
}

// Close shuts down every listener concurrently, then the dispatcher and
// the renderer, and empties the resources. Teardown continues past
// failures; their errors are combined. Once closed, Close returns nil.
func (s *Server) Close(ctx context.Context) error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed.Load() {
		return nil
	}

	s.mu.Lock()
	s.closing = true
	records := s.records
	s.records = nil
	s.mu.Unlock()

	errs := make([]error, len(records))
	var g errgroup.Group
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			if err := rec.Listener.Close(ctx); err != nil {
				errs[i] = err
				s.logger.Error("listener close failed", zap.String("url", rec.URL), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	s.metrics.setListeners(0)
	err := multierr.Combine(errs...)

	if app := s.app.Load(); app != nil {
		app.Reset()
	}

	s.mu.Lock()
	r := s.renderer
	s.renderer = nil
	s.mu.Unlock()
	if r != nil {
		if rerr := r.Close(ctx); rerr != nil {
			s.logger.Error("renderer close failed", zap.Error(rerr))
			err = multierr.Append(err, rerr)
		}
	}

	s.resources.Reset()
	s.app.Store(nil)
	s.AttachDev(nil, nil)
	s.metrics.setReady(false)
	s.closed.Store(true)

	return err
}
