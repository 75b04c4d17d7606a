// Package vserve is the runtime HTTP server of the vserve SSR framework.
//
// An App ties the framework options, lifecycle hooks, module registry and
// server together:
//
//	app := vserve.New(vserve.Config{Options: opts, Logger: logger})
//	app.Hooks().Listen.On(func(ctx context.Context, ev server.ListenEvent) error {
//	    logger.Info("listening", zap.String("url", ev.Record.URL))
//	    return nil
//	})
//	if _, err := app.Listen(ctx); err != nil {
//	    return err
//	}
//	defer app.Close(context.Background())
package vserve

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vango-dev/vserve/internal/logging"
	"github.com/vango-dev/vserve/pkg/modules"
	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/render"
	"github.com/vango-dev/vserve/pkg/server"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures an App. Zero values select the defaults.
type Config struct {
	// Options default to options.Default().
	Options *options.Options

	// Modules resolves module middleware. Default: modules.NewRegistry().
	Modules *modules.Registry

	// Renderer builds the renderer. Default: the SPA renderer.
	Renderer render.Factory

	// Registry receives prometheus metrics. Nil disables them.
	Registry prometheus.Registerer

	// StaticFS and DistFS replace the static directory and build output.
	StaticFS fs.FS
	DistFS   fs.FS

	// ShutdownTimeout bounds Close in Run.
	// Default: 10s.
	ShutdownTimeout time.Duration

	Logger *zap.Logger
}

// =============================================================================
// App
// =============================================================================

// App is one framework instance.
type App struct {
	server  *server.Server
	modules *modules.Registry
	logger  *zap.Logger
	config  Config
}

// New creates an App. The server is built immediately; nothing is
// rendered or bound until Ready or Listen.
func New(cfg Config) *App {
	if cfg.Options == nil {
		cfg.Options = options.Default()
	}
	if cfg.Modules == nil {
		cfg.Modules = modules.NewRegistry()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	logger := logging.OrNop(cfg.Logger)

	return &App{
		server: server.New(server.Config{
			Options:  cfg.Options,
			Resolver: cfg.Modules,
			Renderer: cfg.Renderer,
			Registry: cfg.Registry,
			StaticFS: cfg.StaticFS,
			DistFS:   cfg.DistFS,
			Logger:   logger,
		}),
		modules: cfg.Modules,
		logger:  logger,
		config:  cfg,
	}
}

// Options returns the framework options.
func (a *App) Options() *options.Options { return a.server.Options() }

// Hooks returns the lifecycle hooks.
func (a *App) Hooks() *server.Hooks { return a.server.Hooks() }

// Modules returns the module registry server middleware is resolved from.
func (a *App) Modules() *modules.Registry { return a.modules }

// Server returns the underlying server for advanced use.
// Most apps won't need this.
func (a *App) Server() *server.Server { return a.server }

// ServeHTTP runs the middleware pipeline.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.server.ServeHTTP(w, r)
}

// Ready builds the renderer and assembles the pipeline.
func (a *App) Ready(ctx context.Context) error {
	return a.server.Ready(ctx)
}

// RenderRoute renders url.
func (a *App) RenderRoute(ctx context.Context, url string, rc *render.RenderContext) (*render.Result, error) {
	return a.server.RenderRoute(ctx, url, rc)
}

// LoadResources reloads the renderer resources.
func (a *App) LoadResources(ctx context.Context, fsys fs.FS) error {
	return a.server.LoadResources(ctx, fsys)
}

// RenderAndGetWindow fetches url and parses the page the app renders.
func (a *App) RenderAndGetWindow(ctx context.Context, url string, opts render.WindowOptions) (*render.Window, error) {
	return a.server.RenderAndGetWindow(ctx, url, opts)
}

// Listen makes the App ready if needed, then binds one more endpoint.
func (a *App) Listen(ctx context.Context, opts ...server.ListenOption) (*server.ListenerRecord, error) {
	if err := a.server.Ready(ctx); err != nil {
		return nil, err
	}
	return a.server.Listen(ctx, opts...)
}

// Close fires the close hook, which closes the server and anything else
// subscribed to it. Every subscriber runs even when an earlier one fails or
// ctx is already done; their errors are combined.
func (a *App) Close(ctx context.Context) error {
	return a.Hooks().Close.EmitAll(ctx, struct{}{})
}

// Run listens on every endpoint in order and blocks until ctx is done,
// then closes the App within the shutdown timeout. Endpoints already bound
// are closed when a later one fails.
func (a *App) Run(ctx context.Context, endpoints ...[]server.ListenOption) error {
	if len(endpoints) == 0 {
		endpoints = [][]server.ListenOption{nil}
	}
	for _, opts := range endpoints {
		rec, err := a.Listen(ctx, opts...)
		if err != nil {
			return multierr.Append(err, a.shutdown())
		}
		a.logger.Info("listening", zap.String("url", rec.URL))
	}

	<-ctx.Done()
	a.logger.Info("shutting down")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
	defer cancel()
	return a.Close(ctx)
}
