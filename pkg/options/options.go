// Package options holds the framework configuration consumed by the server
// and its middleware. Options are built once (see internal/config) and are
// read-only afterwards.
package options

import (
	"net/url"
	"strings"
	"time"
)

// Options is the framework configuration.
type Options struct {
	// Dev enables development mode: module resolution failures are
	// tolerated and the dev bridge is mounted.
	Dev bool `koanf:"dev"`

	// Debug shows full error details in error pages and enables the
	// open-in-editor endpoint (together with Dev and Editor).
	Debug bool `koanf:"debug"`

	// SrcDir is the application source directory.
	// Default: ".".
	SrcDir string `koanf:"srcDir"`

	// BuildDir holds the build output (dist/client, dist/server).
	// Default: ".vserve".
	BuildDir string `koanf:"buildDir"`

	// Dir names directories relative to SrcDir.
	Dir DirOptions `koanf:"dir"`

	// GlobalName derives the global identifiers shared with the client
	// (root element id, context key, callbacks).
	// Default: "vserve".
	GlobalName string `koanf:"globalName"`

	// Globals overrides individual derived globals by key
	// (id, app, context, pluginPrefix, readyCallback, loadedCallback).
	Globals map[string]string `koanf:"globals"`

	// Build configures where build output is published.
	Build BuildOptions `koanf:"build"`

	// Render configures rendering and the asset middleware.
	Render RenderOptions `koanf:"render"`

	// Server configures listening.
	Server ServerOptions `koanf:"server"`

	// ServerMiddleware is mounted after the built-in asset middleware and
	// before rendering, in order.
	ServerMiddleware []Descriptor `koanf:"-"`

	// Router configures routing.
	Router RouterOptions `koanf:"router"`

	// Editor is the command used by the open-in-editor endpoint
	// (e.g. "code"). Empty disables the endpoint.
	Editor string `koanf:"editor"`
}

// DirOptions names directories relative to SrcDir.
type DirOptions struct {
	// Static is served at the router base.
	// Default: "static".
	Static string `koanf:"static"`
}

// BuildOptions configures build output publishing.
type BuildOptions struct {
	// PublicPath is where the client loads build output from. It may be an
	// absolute URL when assets live on a CDN.
	// Default: "/_vserve/".
	PublicPath string `koanf:"publicPath"`

	// LocalPublicPath is the path build output is served from by this
	// server when PublicPath is an absolute URL.
	// Default: "/_vserve/".
	LocalPublicPath string `koanf:"localPublicPath"`
}

// RouterOptions configures routing.
type RouterOptions struct {
	// Base is prepended to every mount path.
	// Default: "/".
	Base string `koanf:"base"`
}

// ModernMode selects how modern (ES module) bundles are served.
type ModernMode string

const (
	// ModernAuto enables modern mode when a modern manifest is present.
	ModernAuto ModernMode = ""
	// ModernOff disables modern mode.
	ModernOff ModernMode = "off"
	// ModernClient lets the client pick bundles.
	ModernClient ModernMode = "client"
	// ModernServer selects bundles per request from the User-Agent.
	ModernServer ModernMode = "server"
)

// RenderOptions configures rendering.
type RenderOptions struct {
	// SSR enables server-side rendering. When false the SPA shell is served.
	// Default: true.
	SSR bool `koanf:"ssr"`

	// ETag adds an ETag header to rendered pages and answers 304 when the
	// client copy is fresh.
	// Default: true.
	ETag bool `koanf:"etag"`

	// WeakETag emits weak validators (W/"...").
	WeakETag bool `koanf:"weakEtag"`

	// HTTP2Push adds Link preload headers for the page's assets.
	HTTP2Push bool `koanf:"http2Push"`

	// CSP adds a Content-Security-Policy header. Nil disables it.
	CSP *CSPOptions `koanf:"csp"`

	// Modern selects the modern bundle mode.
	Modern ModernMode `koanf:"modern"`

	// Static configures serving of SrcDir/Dir.Static.
	Static StaticOptions `koanf:"static"`

	// Dist configures serving of build output at the public path.
	Dist DistOptions `koanf:"dist"`

	// Compressor enables response compression. Nil disables it.
	Compressor *Compressor `koanf:"-"`

	// Fallback configures 404 placeholders for missing assets.
	Fallback FallbackOptions `koanf:"fallback"`
}

// CSPOptions configures the Content-Security-Policy header.
type CSPOptions struct {
	// ReportOnly uses Content-Security-Policy-Report-Only.
	ReportOnly bool `koanf:"reportOnly"`

	// Policies are extra directives; script-src is merged with the
	// rendered page's script hashes.
	Policies map[string][]string `koanf:"policies"`
}

// CacheControl selects cache headers for static files.
type CacheControl string

const (
	// CacheControlNone forbids caching.
	CacheControlNone CacheControl = "none"
	// CacheControlProduction caches fingerprinted files for a year and
	// revalidates everything else.
	CacheControlProduction CacheControl = "production"
)

// StaticOptions configures a static file middleware.
type StaticOptions struct {
	// Prefix mounts the static directory under the router base. When false
	// it is mounted at "/".
	// Default: true.
	Prefix *bool `koanf:"prefix"`

	// CacheControl selects the cache header strategy.
	// Default: CacheControlNone.
	CacheControl CacheControl `koanf:"cacheControl"`

	// MaxAge overrides the max-age used for non-fingerprinted files.
	MaxAge time.Duration `koanf:"maxAge"`

	// Headers are added to every file response.
	Headers map[string]string `koanf:"headers"`

	// Index is served for directory requests. Empty disables it.
	// Default: "index.html".
	Index string `koanf:"index"`
}

// PrefixOrDefault reports whether the mount is joined with the router base.
func (s StaticOptions) PrefixOrDefault() bool {
	return s.Prefix == nil || *s.Prefix
}

// DistOptions configures serving of build output.
type DistOptions struct {
	StaticOptions `koanf:",squash"`

	// S3 serves build output from a bucket instead of BuildDir.
	S3 *S3Options `koanf:"s3"`
}

// S3Options locates build output in an S3 bucket.
type S3Options struct {
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	KeyPrefix string `koanf:"keyPrefix"`
	// Endpoint targets S3-compatible stores (MinIO, R2).
	Endpoint string `koanf:"endpoint"`
}

// Compressor configures response compression. Handler wins over Options.
type Compressor struct {
	// Handler is mounted as is.
	Handler Middleware

	// Options are passed to the "compression" module when Handler is nil.
	Options map[string]any
}

// FallbackOptions configures placeholders for missing assets. A nil
// field disables that placeholder.
type FallbackOptions struct {
	// Dist answers missing build output under the public path.
	Dist *PlaceholderOptions `koanf:"dist"`

	// Static answers missing files everywhere else.
	Static *PlaceholderOptions `koanf:"static"`
}

// PlaceholderOptions configures a placeholder middleware.
type PlaceholderOptions struct {
	// StatusCode is the placeholder response status.
	// Default: 404.
	StatusCode int `koanf:"statusCode"`

	// SkipUnknown passes requests with unmapped extensions to the next
	// middleware.
	SkipUnknown bool `koanf:"skipUnknown"`

	// Handlers maps extensions (".js") to placeholder types ("js"). An
	// empty type skips that extension.
	Handlers map[string]string `koanf:"handlers"`

	// Placeholders maps types to response bodies.
	Placeholders map[string]string `koanf:"placeholders"`

	// NoCache adds no-cache headers.
	// Default: true.
	NoCache *bool `koanf:"noCache"`
}

// ServerOptions configures listening.
type ServerOptions struct {
	// Host to bind.
	// Default: "localhost".
	Host string `koanf:"host"`

	// Port to bind. 0 picks a free port.
	// Default: 3000.
	Port int `koanf:"port"`

	// Socket is a unix socket path. It wins over Host and Port.
	Socket string `koanf:"socket"`

	// HTTPS enables TLS. Nil serves plain HTTP.
	HTTPS *HTTPSOptions `koanf:"https"`

	// Timing enables the timing middleware. Nil disables it.
	Timing *TimingOptions `koanf:"timing"`
}

// HTTPSOptions configures TLS for listeners.
type HTTPSOptions struct {
	CertFile string `koanf:"cert"`
	KeyFile  string `koanf:"key"`

	// Autocert obtains certificates from Let's Encrypt instead.
	Autocert *AutocertOptions `koanf:"autocert"`
}

// AutocertOptions configures ACME certificates.
type AutocertOptions struct {
	Hosts    []string `koanf:"hosts"`
	CacheDir string   `koanf:"cacheDir"`
	Email    string   `koanf:"email"`
}

// TimingOptions configures the timing middleware.
type TimingOptions struct {
	// Total adds a "total" Server-Timing entry for the whole request.
	Total bool `koanf:"total"`

	// Metrics records prometheus request metrics.
	Metrics bool `koanf:"metrics"`

	// Tracing starts an OpenTelemetry span per request.
	Tracing bool `koanf:"tracing"`
}

// Default returns options with every default applied.
func Default() *Options {
	o := &Options{
		Render: RenderOptions{SSR: true, ETag: true},
		Server: ServerOptions{Port: 3000},
	}
	o.Normalize()
	return o
}

// Normalize fills empty fields with their defaults.
func (o *Options) Normalize() {
	if o.SrcDir == "" {
		o.SrcDir = "."
	}
	if o.BuildDir == "" {
		o.BuildDir = ".vserve"
	}
	if o.Dir.Static == "" {
		o.Dir.Static = "static"
	}
	if o.GlobalName == "" {
		o.GlobalName = "vserve"
	}
	if o.Build.PublicPath == "" {
		o.Build.PublicPath = "/_vserve/"
	}
	if o.Build.LocalPublicPath == "" {
		o.Build.LocalPublicPath = "/_vserve/"
	}
	if o.Router.Base == "" {
		o.Router.Base = "/"
	}
	if o.Server.Host == "" {
		o.Server.Host = "localhost"
	}
	if o.Render.Static.Index == "" {
		o.Render.Static.Index = "index.html"
	}
	if o.Render.Static.CacheControl == "" {
		o.Render.Static.CacheControl = CacheControlNone
	}
	if o.Render.Dist.CacheControl == "" {
		o.Render.Dist.CacheControl = CacheControlProduction
	}
}

// PublicPath returns the path build output is served from by this server.
func (o *Options) PublicPath() string {
	if IsURL(o.Build.PublicPath) {
		return o.Build.LocalPublicPath
	}
	return o.Build.PublicPath
}

// IsURL reports whether s is an absolute http(s) URL or a
// protocol-relative one.
func IsURL(s string) bool {
	if strings.HasPrefix(s, "//") {
		return true
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Bool returns a pointer to b, for the optional boolean fields.
func Bool(b bool) *bool {
	return &b
}
