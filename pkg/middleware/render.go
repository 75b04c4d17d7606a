package middleware

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/hooks"
	"github.com/vango-dev/vserve/pkg/options"
	"github.com/vango-dev/vserve/pkg/render"
)

// RouteEvent is passed to the render:route, render:beforeResponse and
// render:routeDone hooks.
type RouteEvent struct {
	URL     string
	Request *http.Request
	Context *render.RenderContext
	Result  *render.Result
}

// RenderHooks are the per-route hooks. Nil events are skipped.
type RenderHooks struct {
	Route          *hooks.Event[*RouteEvent]
	BeforeResponse *hooks.Event[*RouteEvent]
	RouteDone      *hooks.Event[*RouteEvent]
}

// RenderFunc renders one route.
type RenderFunc func(ctx context.Context, url string, rc *render.RenderContext) (*render.Result, error)

// RenderOptions configures the render middleware.
type RenderOptions struct {
	Render  RenderFunc
	Options *options.Options
	Hooks   RenderHooks
	Logger  *zap.Logger
}

// Render renders every request that reaches it. Renderer failures and
// failing hooks are passed to next as errors; application error pages are
// sent with their own status.
func Render(opts RenderOptions) dispatch.Middleware {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ro := opts.Options.Render

	return dispatch.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
		ctx := r.Context()
		url := r.URL.Path
		if r.URL.RawQuery != "" {
			url += "?" + r.URL.RawQuery
		}

		rc := &render.RenderContext{Request: r, Modern: IsModern(r)}
		timing := TimingFrom(ctx)
		timing.Start("render", "Render")
		result, err := opts.Render(ctx, url, rc)
		timing.End("render")
		if err != nil {
			next(w, r, err)
			return
		}

		ev := &RouteEvent{URL: url, Request: r, Context: rc, Result: result}
		if err := emit(ctx, opts.Hooks.Route, ev); err != nil {
			next(w, r, err)
			return
		}

		if result.Redirect != nil {
			status := result.Redirect.StatusCode
			if status == 0 {
				status = http.StatusFound
			}
			if err := emit(ctx, opts.Hooks.BeforeResponse, ev); err != nil {
				next(w, r, err)
				return
			}
			http.Redirect(w, r, result.Redirect.Location, status)
			routeDone(ctx, logger, opts.Hooks.RouteDone, ev)
			return
		}

		status := http.StatusOK
		if result.Error != nil {
			status = result.Error.StatusCode
			if status == 0 {
				status = http.StatusInternalServerError
			}
		}

		h := w.Header()
		if ro.ETag && result.Error == nil {
			etag := generateETag(result.HTML, ro.WeakETag)
			if fresh(r, etag) {
				if err := emit(ctx, opts.Hooks.BeforeResponse, ev); err != nil {
					next(w, r, err)
					return
				}
				h.Set("ETag", etag)
				w.WriteHeader(http.StatusNotModified)
				routeDone(ctx, logger, opts.Hooks.RouteDone, ev)
				return
			}
			h.Set("ETag", etag)
		}

		if ro.HTTP2Push && result.Error == nil {
			if link := preloadLinks(result.PreloadFiles); link != "" {
				h.Set("Link", link)
			}
		}

		if ro.CSP != nil {
			name := "Content-Security-Policy"
			if ro.CSP.ReportOnly {
				name = "Content-Security-Policy-Report-Only"
			}
			h.Set(name, contentSecurityPolicy(ro.CSP.Policies, result.ScriptHashes))
		}

		if err := emit(ctx, opts.Hooks.BeforeResponse, ev); err != nil {
			next(w, r, err)
			return
		}

		h.Set("Content-Type", "text/html; charset=utf-8")
		h.Set("Accept-Ranges", "none")
		h.Set("Content-Length", strconv.Itoa(len(result.HTML)))
		w.WriteHeader(status)
		if r.Method != http.MethodHead {
			if _, err := w.Write([]byte(result.HTML)); err != nil {
				logger.Debug("write response", zap.String("url", url), zap.Error(err))
			}
		}
		routeDone(ctx, logger, opts.Hooks.RouteDone, ev)
	})
}

func emit(ctx context.Context, e *hooks.Event[*RouteEvent], ev *RouteEvent) error {
	if e == nil {
		return nil
	}
	return e.Emit(ctx, ev)
}

// routeDone runs after the response is sent, so failures can only be
// logged.
func routeDone(ctx context.Context, logger *zap.Logger, e *hooks.Event[*RouteEvent], ev *RouteEvent) {
	if err := emit(ctx, e, ev); err != nil {
		logger.Error("route done hook failed", zap.String("url", ev.URL), zap.Error(err))
	}
}

// generateETag returns `"<len hex>-<sha1 base64>"`, prefixed with W/ when
// weak.
func generateETag(body string, weak bool) string {
	sum := sha1.Sum([]byte(body))
	hash := base64.RawStdEncoding.EncodeToString(sum[:])[:27]
	tag := fmt.Sprintf(`"%x-%s"`, len(body), hash)
	if weak {
		return "W/" + tag
	}
	return tag
}

// fresh reports whether the client's cached copy matches etag.
func fresh(r *http.Request, etag string) bool {
	inm := r.Header.Get("If-None-Match")
	if inm == "" {
		return false
	}
	if strings.Contains(r.Header.Get("Cache-Control"), "no-cache") {
		return false
	}
	if strings.TrimSpace(inm) == "*" {
		return true
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(inm, ",") {
		if strings.TrimPrefix(strings.TrimSpace(tag), "W/") == want {
			return true
		}
	}
	return false
}

func preloadLinks(files []render.PreloadFile) string {
	links := make([]string, 0, len(files))
	for _, f := range files {
		if f.As == "" {
			continue
		}
		if f.Modern {
			links = append(links, fmt.Sprintf("<%s>; rel=modulepreload; crossorigin", f.File))
			continue
		}
		links = append(links, fmt.Sprintf("<%s>; rel=preload; as=%s", f.File, f.As))
	}
	return strings.Join(links, ", ")
}

// contentSecurityPolicy merges the configured policies with the page's
// inline script hashes. Directives are sorted for stable output.
func contentSecurityPolicy(policies map[string][]string, hashes []string) string {
	merged := make(map[string][]string, len(policies)+1)
	for name, values := range policies {
		merged[name] = append([]string(nil), values...)
	}

	scriptSrc := merged["script-src"]
	if len(scriptSrc) == 0 {
		scriptSrc = []string{"'self'"}
	}
	for _, h := range hashes {
		scriptSrc = append(scriptSrc, "'"+h+"'")
	}
	merged["script-src"] = scriptSrc

	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	directives := make([]string, 0, len(names))
	for _, name := range names {
		directives = append(directives, strings.TrimSpace(name+" "+strings.Join(merged[name], " ")))
	}
	return strings.Join(directives, "; ")
}
