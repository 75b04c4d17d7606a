package assets

// Resolver turns entry names into asset URLs.
type Resolver interface {
	// Asset resolves an entry name to its URL, e.g.
	// "app.js" → "/_vserve/app.a1b2c3d4.js".
	Asset(source string) string
}

type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver resolves through m and prepends prefix, which may be a path
// or an absolute CDN URL.
func NewResolver(m *Manifest, prefix string) Resolver {
	return &manifestResolver{
		manifest: m,
		prefix:   prefix,
	}
}

func (r *manifestResolver) Asset(source string) string {
	return r.prefix + r.manifest.Resolve(source)
}

type passthrough struct {
	prefix string
}

// NewPassthroughResolver only prepends prefix. Development builds are not
// fingerprinted.
func NewPassthroughResolver(prefix string) Resolver {
	return &passthrough{prefix: prefix}
}

func (p *passthrough) Asset(source string) string {
	return p.prefix + source
}
