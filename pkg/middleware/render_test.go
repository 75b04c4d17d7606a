package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vserve/pkg/hooks"
	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/render"
)

func staticResult(result *render.Result, err error) RenderFunc {
	return func(ctx context.Context, url string, rc *render.RenderContext) (*render.Result, error) {
		return result, err
	}
}

func TestRenderPage(t *testing.T) {
	var gotURL string
	mw := Render(RenderOptions{
		Options: options.Default(),
		Render: func(ctx context.Context, url string, rc *render.RenderContext) (*render.Result, error) {
			gotURL = url
			return &render.Result{HTML: "<p>hello</p>"}, nil
		},
	})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/about?tab=team", nil))
	assert.False(t, out.called)
	assert.Equal(t, "/about?tab=team", gotURL)
	assert.Equal(t, http.StatusOK, out.rec.Code)
	assert.Equal(t, "<p>hello</p>", out.rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", out.rec.Header().Get("Content-Type"))
	assert.Equal(t, "none", out.rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "12", out.rec.Header().Get("Content-Length"))

	etag := out.rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, generateETag("<p>hello</p>", false), etag)

	r := httptest.NewRequest(http.MethodGet, "/about?tab=team", nil)
	r.Header.Set("If-None-Match", etag)
	out = serve(mw, r)
	assert.Equal(t, http.StatusNotModified, out.rec.Code)
	assert.Empty(t, out.rec.Body.String())
}

func TestRenderWeakETag(t *testing.T) {
	opts := options.Default()
	opts.Render.WeakETag = true
	mw := Render(RenderOptions{Options: opts, Render: staticResult(&render.Result{HTML: "x"}, nil)})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/", nil))
	etag := out.rec.Header().Get("ETag")
	assert.Regexp(t, `^W/"1-`, etag)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("If-None-Match", etag[2:])
	assert.Equal(t, http.StatusNotModified, serve(mw, r).rec.Code)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("If-None-Match", etag)
	r.Header.Set("Cache-Control", "no-cache")
	assert.Equal(t, http.StatusOK, serve(mw, r).rec.Code)
}

func TestRenderErrorPage(t *testing.T) {
	mw := Render(RenderOptions{
		Options: options.Default(),
		Render: staticResult(&render.Result{
			HTML:  "<p>not found</p>",
			Error: &render.PageError{StatusCode: http.StatusNotFound},
		}, nil),
	})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, out.rec.Code)
	assert.Equal(t, "<p>not found</p>", out.rec.Body.String())
	assert.Empty(t, out.rec.Header().Get("ETag"))
}

func TestRenderRedirect(t *testing.T) {
	mw := Render(RenderOptions{
		Options: options.Default(),
		Render:  staticResult(&render.Result{Redirect: &render.Redirect{Location: "/login"}}, nil),
	})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/account", nil))
	assert.Equal(t, http.StatusFound, out.rec.Code)
	assert.Equal(t, "/login", out.rec.Header().Get("Location"))
}

func TestRenderFailurePassesError(t *testing.T) {
	boom := errors.New("renderer crashed")
	mw := Render(RenderOptions{Options: options.Default(), Render: staticResult(nil, boom)})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, out.called)
	assert.ErrorIs(t, out.err, boom)
	assert.Empty(t, out.rec.Body.String())
}

func TestRenderHooks(t *testing.T) {
	rh := RenderHooks{
		Route:          hooks.NewEvent[*RouteEvent]("render:route"),
		BeforeResponse: hooks.NewEvent[*RouteEvent]("render:beforeResponse"),
		RouteDone:      hooks.NewEvent[*RouteEvent]("render:routeDone"),
	}
	var order []string
	rh.Route.On(func(ctx context.Context, ev *RouteEvent) error {
		order = append(order, "route:"+ev.URL)
		return nil
	})
	rh.BeforeResponse.On(func(ctx context.Context, ev *RouteEvent) error {
		order = append(order, "before")
		return nil
	})
	rh.RouteDone.On(func(ctx context.Context, ev *RouteEvent) error {
		order = append(order, "done")
		return errors.New("only logged")
	})

	mw := Render(RenderOptions{Options: options.Default(), Hooks: rh, Render: staticResult(&render.Result{HTML: "ok"}, nil)})
	out := serve(mw, httptest.NewRequest(http.MethodGet, "/page", nil))
	assert.False(t, out.called)
	assert.Equal(t, http.StatusOK, out.rec.Code)
	assert.Equal(t, []string{"route:/page", "before", "done"}, order)

	failing := hooks.NewEvent[*RouteEvent]("render:route")
	failing.On(func(ctx context.Context, ev *RouteEvent) error { return errors.New("denied") })
	mw = Render(RenderOptions{
		Options: options.Default(),
		Hooks:   RenderHooks{Route: failing},
		Render:  staticResult(&render.Result{HTML: "ok"}, nil),
	})
	out = serve(mw, httptest.NewRequest(http.MethodGet, "/page", nil))
	assert.True(t, out.called)
	assert.ErrorContains(t, out.err, "denied")
}

func TestRenderPreloadAndCSP(t *testing.T) {
	opts := options.Default()
	opts.Render.HTTP2Push = true
	opts.Render.CSP = &options.CSPOptions{
		ReportOnly: true,
		Policies:   map[string][]string{"default-src": {"'self'"}},
	}
	mw := Render(RenderOptions{Options: opts, Render: staticResult(&render.Result{
		HTML: "ok",
		PreloadFiles: []render.PreloadFile{
			{File: "/_vserve/app.js", As: "script"},
			{File: "/_vserve/app.mjs", As: "script", Modern: true},
			{File: "/_vserve/data.json"},
		},
		ScriptHashes: []string{"sha256-abc"},
	}, nil)})

	out := serve(mw, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t,
		"</_vserve/app.js>; rel=preload; as=script, </_vserve/app.mjs>; rel=modulepreload; crossorigin",
		out.rec.Header().Get("Link"))
	assert.Equal(t,
		"default-src 'self'; script-src 'self' 'sha256-abc'",
		out.rec.Header().Get("Content-Security-Policy-Report-Only"))
	assert.Empty(t, out.rec.Header().Get("Content-Security-Policy"))
}

func TestRenderHead(t *testing.T) {
	mw := Render(RenderOptions{Options: options.Default(), Render: staticResult(&render.Result{HTML: "body"}, nil)})
	out := serve(mw, httptest.NewRequest(http.MethodHead, "/", nil))
	assert.Equal(t, http.StatusOK, out.rec.Code)
	assert.Equal(t, "4", out.rec.Header().Get("Content-Length"))
	assert.Empty(t, out.rec.Body.String())
}

func TestRenderUsesModernFlag(t *testing.T) {
	var modern bool
	mw := Render(RenderOptions{
		Options: options.Default(),
		Render: func(ctx context.Context, url string, rc *render.RenderContext) (*render.Result, error) {
			modern = rc.Modern
			return &render.Result{}, nil
		},
	})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	serve(mw, r.WithContext(WithModern(r.Context(), true)))
	assert.True(t, modern)
}
