package render

import (
	"context"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/vango-dev/vserve/pkg/options"
)

// Renderer renders routes for the server.
type Renderer interface {
	// Ready loads resources and prepares the renderer. It is called once.
	Ready(ctx context.Context) error

	// RenderRoute renders url. Application level failures (a 404 page)
	// are reported in Result.Error; a returned error is a server failure.
	RenderRoute(ctx context.Context, url string, rc *RenderContext) (*Result, error)

	// LoadResources (re)loads templates and manifests from fsys. A nil
	// fsys reads the build output on disk.
	LoadResources(ctx context.Context, fsys fs.FS) error

	// Close releases the renderer.
	Close(ctx context.Context) error

	// Context returns the server context the renderer was built with.
	Context() *ServerContext
}

// Factory builds a Renderer for a server.
type Factory func(sc *ServerContext) (Renderer, error)

// ServerContext is the state a server shares with its renderer.
type ServerContext struct {
	Options   *options.Options
	Globals   Globals
	Resources *Resources
	Logger    *zap.Logger

	modernOnce sync.Once
	modern     atomic.Pointer[options.ModernMode]
}

// NewServerContext derives globals from opts.
func NewServerContext(opts *options.Options, resources *Resources, logger *zap.Logger) *ServerContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerContext{
		Options:   opts,
		Globals:   DetermineGlobals(opts.GlobalName, opts.Globals),
		Resources: resources,
		Logger:    logger,
	}
}

// ModernMode returns the resolved modern mode, or the configured one
// before ResolveModern has run.
func (c *ServerContext) ModernMode() options.ModernMode {
	if m := c.modern.Load(); m != nil {
		return *m
	}
	return c.Options.Render.Modern
}

// ResolveModern settles ModernAuto once: modern mode is enabled when a
// modern manifest was loaded, in server mode when rendering server side.
func (c *ServerContext) ResolveModern() options.ModernMode {
	c.modernOnce.Do(func() {
		mode := c.Options.Render.Modern
		if mode == options.ModernAuto {
			mode = options.ModernOff
			if c.Resources.Has(ResourceModernManifest) {
				mode = options.ModernClient
				if c.Options.Render.SSR {
					mode = options.ModernServer
				}
				c.Logger.Info("modern bundles detected", zap.String("mode", string(mode)))
			}
		}
		c.modern.Store(&mode)
	})
	return c.ModernMode()
}

// RenderContext carries per-request state into RenderRoute.
type RenderContext struct {
	Request *http.Request

	// Modern is set when the request should get modern bundles.
	Modern bool

	// State is serialized into the page's context script.
	State map[string]any
}

// Result is a rendered page.
type Result struct {
	HTML string

	// Error is set when the page rendered is an error page.
	Error *PageError

	// Redirect asks the server to redirect instead of sending HTML.
	Redirect *Redirect

	// PreloadFiles are the assets the page loads first.
	PreloadFiles []PreloadFile

	// ScriptHashes are CSP hashes ("sha256-...") of inline scripts.
	ScriptHashes []string
}

// PageError describes an application level error page.
type PageError struct {
	StatusCode int
	Message    string
}

// Redirect describes a redirect produced while rendering.
type Redirect struct {
	Location   string
	StatusCode int
}

// PreloadFile is an asset referenced by a rendered page.
type PreloadFile struct {
	// File is the asset URL.
	File string
	// As is the preload destination ("script", "style").
	As string
	// Modern marks ES module bundles.
	Modern bool
}
