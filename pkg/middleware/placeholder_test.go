package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vango-dev/vserve/pkg/options"
)

func TestPlaceholderDefaults(t *testing.T) {
	mw := Placeholder(options.PlaceholderOptions{})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.False(t, out.called)
	assert.Equal(t, http.StatusNotFound, out.rec.Code)
	assert.Equal(t, "/* script not found */", out.rec.Body.String())
	assert.Equal(t, "application/javascript; charset=utf-8", out.rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", out.rec.Header().Get("Cache-Control"))

	out = serve(mw, httptest.NewRequest(http.MethodGet, "/logo.PNG", nil))
	assert.Equal(t, http.StatusNotFound, out.rec.Code)
	assert.Empty(t, out.rec.Body.String())

	out = serve(mw, httptest.NewRequest(http.MethodGet, "/unknown.xyz", nil))
	assert.Equal(t, http.StatusNotFound, out.rec.Code)
	assert.False(t, out.called)

	out = serve(mw, httptest.NewRequest(http.MethodGet, "/about", nil))
	assert.True(t, out.called)
	assert.Empty(t, out.rec.Body.String())
}

func TestPlaceholderOptions(t *testing.T) {
	mw := Placeholder(options.PlaceholderOptions{
		StatusCode:   http.StatusGone,
		SkipUnknown:  true,
		Handlers:     map[string]string{".png": "", ".txt": "text"},
		Placeholders: map[string]string{"text": "nothing here", "css": "/* gone */"},
		NoCache:      options.Bool(false),
	})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/unknown.xyz", nil))
	assert.True(t, out.called)

	out = serve(mw, httptest.NewRequest(http.MethodGet, "/logo.png", nil))
	assert.True(t, out.called)

	out = serve(mw, httptest.NewRequest(http.MethodGet, "/notes.txt", nil))
	assert.Equal(t, http.StatusGone, out.rec.Code)
	assert.Equal(t, "nothing here", out.rec.Body.String())
	assert.Empty(t, out.rec.Header().Get("Cache-Control"))

	out = serve(mw, httptest.NewRequest(http.MethodHead, "/site.css", nil))
	assert.Equal(t, http.StatusGone, out.rec.Code)
	assert.Equal(t, "10", out.rec.Header().Get("Content-Length"))
	assert.Empty(t, out.rec.Body.String())
}
