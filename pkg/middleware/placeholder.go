package middleware

import (
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/options"
)

var defaultPlaceholderHandlers = map[string]string{
	".js":    "js",
	".mjs":   "js",
	".css":   "css",
	".json":  "json",
	".map":   "map",
	".html":  "html",
	".htm":   "html",
	".png":   "image",
	".jpg":   "image",
	".jpeg":  "image",
	".gif":   "image",
	".svg":   "image",
	".webp":  "image",
	".ico":   "image",
	".woff":  "font",
	".woff2": "font",
	".ttf":   "font",
	".eot":   "font",
}

var defaultPlaceholders = map[string]string{
	"default": "",
	"js":      "/* script not found */",
	"css":     "/* style not found */",
	"html":    "<!-- page not found -->",
	"json":    "{}",
	"map":     `{"version":3,"sources":[],"names":[],"mappings":""}`,
	"image":   "",
	"font":    "",
}

var placeholderMimes = map[string]string{
	"js":   "application/javascript",
	"css":  "text/css",
	"html": "text/html",
	"json": "application/json",
	"map":  "application/json",
}

// Placeholder answers asset requests with a small per-type placeholder and
// a 404 status, so missing assets fail fast instead of reaching the
// renderer. Paths without an extension are pages and pass through.
func Placeholder(opts options.PlaceholderOptions) dispatch.Middleware {
	handlers := make(map[string]string, len(defaultPlaceholderHandlers))
	for ext, typ := range defaultPlaceholderHandlers {
		handlers[ext] = typ
	}
	for ext, typ := range opts.Handlers {
		handlers[strings.ToLower(ext)] = typ
	}

	bodies := make(map[string]string, len(defaultPlaceholders))
	for typ, body := range defaultPlaceholders {
		bodies[typ] = body
	}
	for typ, body := range opts.Placeholders {
		bodies[typ] = body
	}

	status := opts.StatusCode
	if status == 0 {
		status = http.StatusNotFound
	}
	noCache := opts.NoCache == nil || *opts.NoCache

	return dispatch.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
		ext := strings.ToLower(path.Ext(r.URL.Path))
		if ext == "" {
			next(w, r, nil)
			return
		}

		typ, known := handlers[ext]
		switch {
		case known && typ == "":
			next(w, r, nil)
			return
		case !known && opts.SkipUnknown:
			next(w, r, nil)
			return
		case !known:
			typ = "default"
		}

		body := bodies[typ]
		h := w.Header()
		if mime, ok := placeholderMimes[typ]; ok {
			h.Set("Content-Type", mime+"; charset=utf-8")
		}
		if noCache {
			h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
			h.Set("Expires", "0")
		}
		h.Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			w.Write([]byte(body))
		}
	})
}
