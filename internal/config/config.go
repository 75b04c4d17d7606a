package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/internal/logging"
	"github.com/vango-dev/vserve/pkg/options"
)

const (
	// ConfigFileName is the file looked up in the working directory when
	// no file is given.
	ConfigFileName = "vserve.yaml"

	// DefaultEnvPrefix is the environment variable prefix.
	DefaultEnvPrefix = "VSERVE_"
)

// Config is the loaded configuration.
type Config struct {
	// Options are the framework options, normalized.
	Options *options.Options

	// Log configures the process logger.
	Log logging.Config

	// Path is the file the configuration was read from, if any.
	Path string
}

// Loader loads configuration from a file, the environment and overrides.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
	dev       bool
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file. Unlike the default file, an
// explicit file must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets values applied last, keyed by dotted path
// ("server.port").
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// WithDev starts from development defaults: dev mode on and debug logging.
func WithDev() Option {
	return func(l *Loader) {
		l.dev = true
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and decodes the result.
func Load(opts ...Option) (*Config, error) {
	return NewLoader(opts...).Load()
}

// Load reads every source and decodes the result over the defaults.
func (l *Loader) Load() (*Config, error) {
	cfg := &Config{Options: options.Default(), Log: logging.DefaultConfig()}
	if l.dev {
		cfg.Options.Dev = true
		cfg.Log = logging.DevConfig()
	}

	path, err := l.loadFile()
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	if err := l.loadEnv(); err != nil {
		return nil, vserrors.New(vserrors.CodeConfigInvalid).Wrap(err)
	}
	if len(l.overrides) > 0 {
		if err := l.k.Load(mapProvider(l.overrides), nil); err != nil {
			return nil, vserrors.New(vserrors.CodeConfigInvalid).Wrap(err)
		}
	}

	if err := l.k.Unmarshal("", cfg.Options); err != nil {
		return nil, invalid(path, err)
	}
	if err := l.k.Unmarshal("log", &cfg.Log); err != nil {
		return nil, invalid(path, err)
	}

	middleware, err := decodeServerMiddleware(l.k.Get("serverMiddleware"))
	if err != nil {
		return nil, err
	}
	cfg.Options.ServerMiddleware = middleware

	compressor, err := decodeCompressor(l.k.Get("render.compressor"))
	if err != nil {
		return nil, err
	}
	cfg.Options.Render.Compressor = compressor

	cfg.Options.Normalize()
	if err := Validate(cfg.Options); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadFile() (string, error) {
	path := l.filePath
	if path == "" {
		if _, err := os.Stat(ConfigFileName); err != nil {
			return "", nil
		}
		path = ConfigFileName
	}

	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", vserrors.New(vserrors.CodeConfigNotFound).
				WithDetail("No configuration file at " + path + ".").
				WithSuggestion("Create " + ConfigFileName + " or drop the --config flag")
		}
		return "", invalid(path, err)
	}
	return path, nil
}

func (l *Loader) loadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}
	return l.k.Load(env.Provider(l.envPrefix, ".", transform), nil)
}

// Validate checks values Normalize cannot repair.
func Validate(o *options.Options) error {
	if o.Server.Port < 0 || o.Server.Port > 65535 {
		return vserrors.New(vserrors.CodeConfigInvalid).
			WithDetailf("server.port must be between 0 and 65535, got %d.", o.Server.Port)
	}
	switch o.Render.Modern {
	case options.ModernAuto, options.ModernOff, options.ModernClient, options.ModernServer:
	default:
		return vserrors.New(vserrors.CodeConfigInvalid).
			WithDetailf("render.modern must be one of off, client or server, got %q.", o.Render.Modern)
	}
	for key, cc := range map[string]options.CacheControl{
		"render.static.cacheControl": o.Render.Static.CacheControl,
		"render.dist.cacheControl":   o.Render.Dist.CacheControl,
	} {
		if cc != options.CacheControlNone && cc != options.CacheControlProduction {
			return vserrors.New(vserrors.CodeConfigInvalid).
				WithDetailf("%s must be none or production, got %q.", key, cc)
		}
	}
	if h := o.Server.HTTPS; h != nil && h.Autocert == nil && (h.CertFile == "" || h.KeyFile == "") {
		return vserrors.New(vserrors.CodeConfigInvalid).
			WithDetail("server.https needs cert and key, or autocert.")
	}
	return nil
}

func invalid(path string, err error) error {
	e := vserrors.New(vserrors.CodeConfigInvalid).Wrap(err)
	if path != "" {
		e = e.WithDetail("Failed to parse " + path + ": " + err.Error())
	}
	return e
}

// mapProvider is a koanf provider over an in-memory map with dotted keys.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return maps.Unflatten(m, "."), nil
}
