package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/options"
)

// middlewareEntry is the object form of a serverMiddleware entry.
type middlewareEntry struct {
	Module string `mapstructure:"module"`
	Path   string `mapstructure:"path"`
	Prefix *bool  `mapstructure:"prefix"`
	Exact  *bool  `mapstructure:"exact"`
}

// decodeServerMiddleware decodes serverMiddleware. Each entry is a module
// name or an object with a module and optional path, prefix and exact.
// Handlers cannot be configured from a file.
func decodeServerMiddleware(raw any) ([]options.Descriptor, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, middlewareError(-1, fmt.Sprintf("serverMiddleware must be a list, got %T", raw))
	}

	out := make([]options.Descriptor, 0, len(list))
	for i, item := range list {
		switch v := item.(type) {
		case string:
			if v == "" {
				return nil, middlewareError(i, "module name is empty")
			}
			out = append(out, options.Module(v))

		case map[string]any:
			var entry middlewareEntry
			if err := decodeStrict(v, &entry); err != nil {
				return nil, middlewareError(i, err.Error())
			}
			if entry.Module == "" {
				return nil, middlewareError(i, "module is required")
			}
			out = append(out, options.ObjectDescriptor{
				Module: entry.Module,
				Path:   entry.Path,
				Prefix: entry.Prefix,
				Exact:  entry.Exact,
			})

		default:
			return nil, middlewareError(i, fmt.Sprintf("unsupported entry %T", item))
		}
	}
	return out, nil
}

// decodeCompressor decodes render.compressor: true enables compression
// with default options, a map passes options to the compression module,
// false or nothing disables it.
func decodeCompressor(raw any) (*options.Compressor, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case bool:
		if !v {
			return nil, nil
		}
		return &options.Compressor{}, nil
	case map[string]any:
		return &options.Compressor{Options: v}, nil
	case string:
		var enabled bool
		if err := mapstructure.WeakDecode(v, &enabled); err != nil {
			return nil, vserrors.New(vserrors.CodeConfigInvalid).
				WithDetailf("render.compressor must be a boolean or an object, got %q.", v)
		}
		return decodeCompressor(enabled)
	}
	return nil, vserrors.New(vserrors.CodeConfigInvalid).
		WithDetailf("render.compressor must be a boolean or an object, got %T.", raw)
}

func decodeStrict(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func middlewareError(index int, detail string) error {
	e := vserrors.New(vserrors.CodeConfigMiddleware)
	if index < 0 {
		return e.WithDetail(detail + ".")
	}
	return e.WithDetailf("serverMiddleware[%d]: %s.", index, detail)
}
