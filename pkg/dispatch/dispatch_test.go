package dispatch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func record(name string, seen *[]string) Middleware {
	return MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next Next) {
		*seen = append(*seen, name+":"+r.URL.Path)
		next(w, r, nil)
	})
}

func respond(body string) Middleware {
	return MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, _ Next) {
		io.WriteString(w, body)
	})
}

func serve(d *Dispatcher, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestDispatcherRunsInOrder(t *testing.T) {
	var seen []string
	d := New()
	d.Use("/", record("a", &seen))
	d.Use("/", record("b", &seen))
	d.Use("/", respond("done"))

	rec := serve(d, http.MethodGet, "/page")
	assert.Equal(t, "done", rec.Body.String())
	assert.Equal(t, []string{"a:/page", "b:/page"}, seen)
}

func TestDispatcherPrefixMatching(t *testing.T) {
	tests := []struct {
		mount string
		path  string
		match bool
		rest  string
	}{
		{"/", "/anything", true, "/anything"},
		{"/api", "/api", true, "/"},
		{"/api", "/api/users", true, "/users"},
		{"/api", "/API/users", true, "/users"},
		{"/api", "/apiary", false, ""},
		{"/app", "/app.js", true, "/.js"},
		{"/_nuxt/", "/_nuxt/app.js", true, "/app.js"},
		{"api", "/api/x", true, "/x"},
	}
	for _, tt := range tests {
		t.Run(tt.mount+"→"+tt.path, func(t *testing.T) {
			var got string
			d := New()
			d.Use(tt.mount, MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, _ Next) {
				got = r.URL.Path
				w.WriteHeader(http.StatusNoContent)
			}))
			rec := serve(d, http.MethodGet, tt.path)
			if tt.match {
				assert.Equal(t, http.StatusNoContent, rec.Code)
				assert.Equal(t, tt.rest, got)
			} else {
				assert.Equal(t, http.StatusNotFound, rec.Code)
			}
		})
	}
}

func TestDispatcherExactMatching(t *testing.T) {
	d := New()
	d.UseExact("/health", respond("ok"))

	assert.Equal(t, "ok", serve(d, http.MethodGet, "/health").Body.String())
	assert.Equal(t, "ok", serve(d, http.MethodGet, "/health/").Body.String())
	assert.Equal(t, http.StatusNotFound, serve(d, http.MethodGet, "/health/deep").Code)
}

func TestDispatcherRestoresPathForNextEntry(t *testing.T) {
	var seen []string
	d := New()
	d.Use("/static", record("static", &seen))
	d.Use("/", record("root", &seen))
	d.Use("/", respond("x"))

	serve(d, http.MethodGet, "/static/img.png")
	assert.Equal(t, []string{"static:/img.png", "root:/static/img.png"}, seen)
}

func TestDispatcherKeepsContextFromNext(t *testing.T) {
	type key struct{}
	d := New()
	d.Use("/a", MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next Next) {
		next(w, r.WithContext(contextWith(r, key{}, "v")), nil)
	}))
	d.Use("/", MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, _ Next) {
		io.WriteString(w, r.Context().Value(key{}).(string)+" "+r.URL.Path)
	}))

	assert.Equal(t, "v /a/b", serve(d, http.MethodGet, "/a/b").Body.String())
}

func TestDispatcherErrorsSkipToErrorMiddleware(t *testing.T) {
	var seen []string
	d := New()
	d.Use("/", MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next Next) {
		next(w, r, NewError(http.StatusTeapot, errors.New("short and stout")))
	}))
	d.Use("/", record("skipped", &seen))
	d.Use("/", ErrorFunc(func(err error, w http.ResponseWriter, r *http.Request, next Next) {
		w.WriteHeader(StatusOf(err))
		io.WriteString(w, err.Error())
	}))

	rec := serve(d, http.MethodGet, "/")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
	assert.Empty(t, seen)
}

func TestDispatcherErrorMiddlewarePassesThroughWithoutError(t *testing.T) {
	d := New()
	called := false
	d.Use("/", ErrorFunc(func(error, http.ResponseWriter, *http.Request, Next) { called = true }))
	d.Use("/", respond("fine"))

	assert.Equal(t, "fine", serve(d, http.MethodGet, "/").Body.String())
	assert.False(t, called)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	d := New(WithLogger(zap.New(core)))
	d.Use("/", MiddlewareFunc(func(http.ResponseWriter, *http.Request, Next) {
		panic("kaboom")
	}))
	var got error
	d.Use("/", ErrorFunc(func(err error, w http.ResponseWriter, r *http.Request, next Next) {
		got = err
		w.WriteHeader(StatusOf(err))
	}))

	rec := serve(d, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var perr *PanicError
	require.ErrorAs(t, got, &perr)
	assert.Equal(t, "kaboom", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.Equal(t, 1, logs.FilterMessage("middleware panicked").Len())
}

func TestDispatcherFinalHandler(t *testing.T) {
	d := New()
	rec := serve(d, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot GET /missing")

	core, logs := observer.New(zapcore.ErrorLevel)
	d = New(WithLogger(zap.New(core)))
	d.Use("/", MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next Next) {
		next(w, r, errors.New("broken"))
	}))
	rec = serve(d, http.MethodGet, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("unhandled error").Len())
}

func TestDispatcherCustomNotFound(t *testing.T) {
	d := New(WithNotFound(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})))
	assert.Equal(t, http.StatusGone, serve(d, http.MethodGet, "/").Code)
}

func TestDispatcherStopsWhenResponseCommitted(t *testing.T) {
	d := New()
	d.Use("/", MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next Next) {
		io.WriteString(w, "first")
		next(w, r, nil)
	}))
	d.Use("/", respond("second"))

	assert.Equal(t, "first", serve(d, http.MethodGet, "/").Body.String())
}

func TestDispatcherWrapAndHandler(t *testing.T) {
	d := New()
	d.Use("/", Wrap(func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Wrapped", "yes")
			h.ServeHTTP(w, r)
		})
	}))
	d.Use("/", Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "handled")
	})))
	d.Use("/", respond("unreachable"))

	rec := serve(d, http.MethodGet, "/")
	assert.Equal(t, "yes", rec.Header().Get("X-Wrapped"))
	assert.Equal(t, "handled", rec.Body.String())
}

func TestDispatcherReset(t *testing.T) {
	d := New()
	d.Use("/", respond("x"))
	d.UseExact("/y", respond("y"))
	require.Equal(t, 2, d.Len())

	routes := d.Routes()
	assert.Equal(t, "/", routes[0].Path)
	assert.True(t, routes[1].Exact)

	d.Reset()
	assert.True(t, d.Closed())
	assert.Zero(t, d.Len())
	rec := serve(d, http.MethodGet, "/")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDispatcherSnapshotsStackPerRequest(t *testing.T) {
	d := New()
	d.Use("/", MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next Next) {
		d.Use("/", respond("late"))
		next(w, r, nil)
	}))

	rec := serve(d, http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.HasPrefix(serve(d, http.MethodGet, "/").Body.String(), "late"))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, 500, StatusOf(errors.New("x")))
	assert.Equal(t, 404, StatusOf(NewError(404, nil)))
	assert.Equal(t, "Not Found", NewError(404, nil).Error())
	assert.Equal(t, 500, StatusOf(NewError(200, nil)))
	assert.Equal(t, 500, StatusOf(&PanicError{Value: "x"}))
}

func contextWith(r *http.Request, key, value any) context.Context {
	return context.WithValue(r.Context(), key, value)
}
