package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/render"
)

const (
	chrome90  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/90.0.4430.93 Safari/537.36"
	chrome50  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/50.0.2661.102 Safari/537.36"
	ie11      = "Mozilla/5.0 (Windows NT 10.0; WOW64; Trident/7.0; rv:11.0) like Gecko"
	edge15    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/52.0.2743.116 Safari/537.36 Edge/15.15063"
	safari12  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_14) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/12.0 Safari/605.1.15"
	safari10  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_12) AppleWebKit/603.3.8 (KHTML, like Gecko) Version/10.1.2 Safari/603.3.8"
	firefox88 = "Mozilla/5.0 (X11; Linux x86_64; rv:88.0) Gecko/20100101 Firefox/88.0"
	samsung81 = "Mozilla/5.0 (Linux; Android 9) AppleWebKit/537.36 (KHTML, like Gecko) SamsungBrowser/8.1 Chrome/63.0.3239.111 Mobile Safari/537.36"
)

func TestIsModernBrowser(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want bool
	}{
		{"chrome 90", chrome90, true},
		{"chrome 50", chrome50, false},
		{"ie 11", ie11, false},
		{"edge 15", edge15, false},
		{"safari 12", safari12, true},
		{"safari 10", safari10, false},
		{"firefox 88", firefox88, true},
		{"samsung 8.1", samsung81, false},
		{"empty", "", false},
		{"curl", "curl/8.0.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsModernBrowser(tt.ua))
		})
	}
}

func modernRequest(t *testing.T, mode options.ModernMode, dev bool, ua string) bool {
	t.Helper()
	opts := options.Default()
	opts.Dev = dev
	opts.Render.Modern = mode
	sc := render.NewServerContext(opts, render.NewResources(), nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", ua)
	out := serve(Modern(sc), r)
	assert.True(t, out.called)
	return IsModern(out.req)
}

func TestModernMiddleware(t *testing.T) {
	assert.True(t, modernRequest(t, options.ModernServer, false, chrome90))
	assert.False(t, modernRequest(t, options.ModernServer, false, ie11))
	assert.False(t, modernRequest(t, options.ModernClient, false, chrome90))
	assert.True(t, modernRequest(t, options.ModernClient, true, chrome90))
	assert.False(t, modernRequest(t, options.ModernOff, true, chrome90))
	// Without a modern manifest, auto resolves to off.
	assert.False(t, modernRequest(t, options.ModernAuto, false, chrome90))
}

func TestModernAutoDetectsManifest(t *testing.T) {
	opts := options.Default()
	resources := render.NewResources()
	resources.Set(render.ResourceModernManifest, struct{}{})
	sc := render.NewServerContext(opts, resources, nil)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", firefox88)
	out := serve(Modern(sc), r)
	assert.True(t, IsModern(out.req))
	assert.Equal(t, options.ModernServer, sc.ModernMode())
}
