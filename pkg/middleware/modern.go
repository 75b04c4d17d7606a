package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strconv"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/render"
)

type modernKey struct{}

// WithModern marks ctx as belonging to a request from a modern browser.
func WithModern(ctx context.Context, modern bool) context.Context {
	return context.WithValue(ctx, modernKey{}, modern)
}

// IsModern reports whether r was marked by the Modern middleware.
func IsModern(r *http.Request) bool {
	modern, _ := r.Context().Value(modernKey{}).(bool)
	return modern
}

// Modern marks requests from browsers that load ES modules, so the
// renderer and dev bridge can serve modern bundles. The modern mode is
// resolved on the first request, once build resources are loaded.
// Requests are only marked in server mode, or in development unless modern
// bundles are off.
func Modern(sc *render.ServerContext) dispatch.Middleware {
	return dispatch.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
		mode := sc.ResolveModern()
		if mode == options.ModernServer || (sc.Options.Dev && mode != options.ModernOff) {
			r = r.WithContext(WithModern(r.Context(), IsModernBrowser(r.UserAgent())))
		}
		next(w, r, nil)
	})
}

type browserRule struct {
	re    *regexp.Regexp
	major int
	minor int
}

// Order matters: Edge and Opera user agents also contain "Chrome/", and
// every Chromium user agent contains "Safari/".
var modernBrowsers = []browserRule{
	{regexp.MustCompile(`Edge/(\d+)(?:\.(\d+))?`), 16, 0},
	{regexp.MustCompile(`Edg/(\d+)(?:\.(\d+))?`), 79, 0},
	{regexp.MustCompile(`OPR/(\d+)(?:\.(\d+))?`), 48, 0},
	{regexp.MustCompile(`SamsungBrowser/(\d+)(?:\.(\d+))?`), 8, 2},
	{regexp.MustCompile(`(?:Chrome|CriOS)/(\d+)(?:\.(\d+))?`), 61, 0},
	{regexp.MustCompile(`(?:Firefox|FxiOS)/(\d+)(?:\.(\d+))?`), 60, 0},
	{regexp.MustCompile(`Version/(\d+)(?:\.(\d+))?.*Safari/`), 11, 0},
}

// IsModernBrowser reports whether ua belongs to a browser with native ES
// module support.
func IsModernBrowser(ua string) bool {
	for _, b := range modernBrowsers {
		m := b.re.FindStringSubmatch(ua)
		if m == nil {
			continue
		}
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])
		return major > b.major || (major == b.major && minor >= b.minor)
	}
	return false
}
