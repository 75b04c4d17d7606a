package assets

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestResolve(t *testing.T) {
	m := NewManifest()
	m.Set("app.js", "app.abc12345.js")
	m.Set("app.css", "app.def45678.css")

	tests := []struct {
		source, want string
	}{
		{"app.js", "app.abc12345.js"},
		{"app.css", "app.def45678.css"},
		{"unknown.js", "unknown.js"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Resolve(tt.source), tt.source)
	}
	assert.True(t, m.Has("app.js"))
	assert.False(t, m.Has("unknown.js"))
	assert.Equal(t, 2, m.Len())
}

func TestManifestAllIsACopy(t *testing.T) {
	m := NewManifest()
	m.Set("a.js", "a.123.js")

	all := m.All()
	all["b.js"] = "b.456.js"
	assert.False(t, m.Has("b.js"))
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"client.manifest.json": {Data: []byte(`{"app.js": "app.abc12345.js"}`)},
		"broken.json":          {Data: []byte("not json")},
		"null.json":            {Data: []byte("null")},
	}

	m, err := LoadFS(fsys, "client.manifest.json")
	require.NoError(t, err)
	assert.Equal(t, "app.abc12345.js", m.Resolve("app.js"))

	_, err = LoadFS(fsys, "missing.json")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	_, err = LoadFS(fsys, "broken.json")
	assert.ErrorContains(t, err, "broken.json")

	m, err = LoadFS(fsys, "null.json")
	require.NoError(t, err)
	m.Set("x", "y")
	assert.Equal(t, 1, m.Len())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app.css": "app.def45678.css"}`), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app.def45678.css", m.Resolve("app.css"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestResolvers(t *testing.T) {
	m := NewManifest()
	m.Set("app.js", "app.abc12345.js")

	r := NewResolver(m, "/_vserve/")
	assert.Equal(t, "/_vserve/app.abc12345.js", r.Asset("app.js"))
	assert.Equal(t, "/_vserve/other.js", r.Asset("other.js"))

	cdn := NewResolver(m, "https://cdn.example.com/")
	assert.Equal(t, "https://cdn.example.com/app.abc12345.js", cdn.Asset("app.js"))

	p := NewPassthroughResolver("/_vserve/")
	assert.Equal(t, "/_vserve/app.js", p.Asset("app.js"))
	assert.Equal(t, "app.js", NewPassthroughResolver("").Asset("app.js"))
}
