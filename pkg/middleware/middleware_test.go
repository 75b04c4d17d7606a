package middleware

import (
	"net/http"
	"net/http/httptest"

	"github.com/vango-dev/vserve/pkg/dispatch"
)

// outcome is what a middleware did with one request.
type outcome struct {
	rec    *httptest.ResponseRecorder
	called bool
	err    error
	req    *http.Request
}

// serve runs mw with a next that only records the call.
func serve(mw dispatch.Middleware, r *http.Request) outcome {
	out := outcome{rec: httptest.NewRecorder()}
	mw.ServeNext(out.rec, r, func(w http.ResponseWriter, r *http.Request, err error) {
		out.called = true
		out.err = err
		out.req = r
	})
	return out
}

// serveWith runs mw with next as the rest of the chain.
func serveWith(mw dispatch.Middleware, r *http.Request, next dispatch.Next) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mw.ServeNext(rec, r, next)
	return rec
}
