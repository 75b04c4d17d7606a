package middleware

import (
	"compress/gzip"
	"fmt"
	"net/http"

	"github.com/go-viper/mapstructure/v2"
	"github.com/klauspost/compress/gzhttp"

	"github.com/vango-dev/vserve/pkg/dispatch"
)

// CompressionOptions configures the compression middleware.
type CompressionOptions struct {
	// Level is one of "fastest", "default", "best" or "none".
	Level string `mapstructure:"level"`

	// MinSize is the smallest response that gets compressed.
	// Default: gzhttp.DefaultMinSize.
	MinSize int `mapstructure:"minSize"`

	// ContentTypes limits compression to these types. Empty uses the
	// gzhttp defaults.
	ContentTypes []string `mapstructure:"contentTypes"`
}

// Compression compresses responses the client accepts compressed.
// Level "none" returns a pass-through middleware.
func Compression(opts CompressionOptions) (dispatch.Middleware, error) {
	if opts.Level == "none" {
		return dispatch.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
			next(w, r, nil)
		}), nil
	}

	var level int
	switch opts.Level {
	case "fastest":
		level = gzip.BestSpeed
	case "best":
		level = gzip.BestCompression
	case "", "default":
		level = gzip.DefaultCompression
	default:
		return nil, fmt.Errorf("compression: unknown level %q", opts.Level)
	}

	minSize := opts.MinSize
	if minSize <= 0 {
		minSize = gzhttp.DefaultMinSize
	}

	var (
		wrapper func(http.Handler) http.HandlerFunc
		err     error
	)
	if len(opts.ContentTypes) > 0 {
		wrapper, err = gzhttp.NewWrapper(
			gzhttp.MinSize(minSize),
			gzhttp.CompressionLevel(level),
			gzhttp.ContentTypes(opts.ContentTypes),
		)
	} else {
		wrapper, err = gzhttp.NewWrapper(
			gzhttp.MinSize(minSize),
			gzhttp.CompressionLevel(level),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("compression: %w", err)
	}

	return dispatch.Wrap(func(h http.Handler) http.Handler {
		return wrapper(h)
	}), nil
}

// CompressionFactory builds the compression middleware from loosely typed
// options, as found in configuration files.
func CompressionFactory(raw map[string]any) (dispatch.Middleware, error) {
	var opts CompressionOptions
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("compression options: %w", err)
	}
	return Compression(opts)
}
