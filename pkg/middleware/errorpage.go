package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	vserrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/render"
)

// ErrorOptions configures the error page middleware.
type ErrorOptions struct {
	// Resources holds the loaded error template.
	Resources *render.Resources

	// Debug adds error details and stacks to responses.
	Debug bool

	Logger *zap.Logger
}

type errorBody struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Name    string `json:"name"`
	Detail  string `json:"detail,omitempty"`
}

// ErrorPage answers errors with an HTML page, or JSON for clients that
// ask for it. Errors other than 404 are logged. Outside of debug mode
// server errors are reported without their message.
func ErrorPage(opts ErrorOptions) dispatch.ErrorMiddleware {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return dispatch.ErrorFunc(func(err error, w http.ResponseWriter, r *http.Request, next dispatch.Next) {
		status := dispatch.StatusOf(err)
		if status != http.StatusNotFound {
			logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("url", r.URL.RequestURI()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}

		body := errorBody{
			Status:  status,
			Message: err.Error(),
			Name:    errorName(err),
		}
		if body.Message == "" || (status >= 500 && !opts.Debug) {
			body.Message = http.StatusText(status)
		}
		if opts.Debug {
			body.Detail = errorDetail(err)
		}

		h := w.Header()
		h.Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
		h.Del("ETag")

		var payload []byte
		if wantsJSON(r) {
			payload, _ = json.MarshalIndent(body, "", "  ")
			h.Set("Content-Type", "application/json; charset=utf-8")
		} else {
			tmpl := render.ErrorTemplateOf(opts.Resources)
			payload = []byte(tmpl(render.ErrorData{
				Status:  body.Status,
				Message: body.Message,
				Name:    body.Name,
				Detail:  body.Detail,
			}))
			h.Set("Content-Type", "text/html; charset=utf-8")
		}
		h.Set("Content-Length", strconv.Itoa(len(payload)))
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			w.Write(payload)
		}
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.UserAgent(), "curl/")
}

func errorName(err error) string {
	var e *vserrors.Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	var pe *dispatch.PanicError
	if errors.As(err, &pe) {
		return "PanicError"
	}
	var de *dispatch.Error
	if errors.As(err, &de) {
		return "HTTPError"
	}
	return "ServerError"
}

func errorDetail(err error) string {
	var pe *dispatch.PanicError
	if errors.As(err, &pe) {
		return fmt.Sprintf("%v\n\n%s", pe.Value, pe.Stack)
	}
	var e *vserrors.Error
	if errors.As(err, &e) {
		return strings.TrimSpace(e.FormatPlain())
	}
	return err.Error()
}
