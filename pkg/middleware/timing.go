package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vserve/pkg/dispatch"
	"github.com/vango-dev/vserve/pkg/options"
)

// ServerTiming collects the Server-Timing entries of one response.
// A nil *ServerTiming ignores every call, so handlers may use TimingFrom
// without checking whether the timing middleware is mounted.
type ServerTiming struct {
	mu      sync.Mutex
	entries []timingEntry
	started map[string]timingStart
}

type timingEntry struct {
	name string
	desc string
	dur  time.Duration
}

type timingStart struct {
	desc string
	at   time.Time
}

// Start begins measuring name.
func (t *ServerTiming) Start(name, desc string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started == nil {
		t.started = make(map[string]timingStart)
	}
	t.started[name] = timingStart{desc: desc, at: time.Now()}
}

// End stops measuring name and records the entry. Unknown names are
// ignored.
func (t *ServerTiming) End(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.started[name]
	if !ok {
		return
	}
	delete(t.started, name)
	t.entries = append(t.entries, timingEntry{name: name, desc: s.desc, dur: time.Since(s.at)})
}

// Add records a finished measurement.
func (t *ServerTiming) Add(name string, dur time.Duration, desc string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, timingEntry{name: name, desc: desc, dur: dur})
}

// Header returns the Server-Timing header values, one per entry.
func (t *ServerTiming) Header() []string {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	values := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		v := fmt.Sprintf("%s;dur=%.3f", e.name, float64(e.dur)/float64(time.Millisecond))
		if e.desc != "" {
			v += fmt.Sprintf(";desc=%q", e.desc)
		}
		values = append(values, v)
	}
	return values
}

type timingKey struct{}

// WithTiming returns a context carrying t.
func WithTiming(ctx context.Context, t *ServerTiming) context.Context {
	return context.WithValue(ctx, timingKey{}, t)
}

// TimingFrom returns the ServerTiming of the request context, or nil.
func TimingFrom(ctx context.Context) *ServerTiming {
	t, _ := ctx.Value(timingKey{}).(*ServerTiming)
	return t
}

// TimingConfig configures the timing middleware.
type TimingConfig struct {
	options.TimingOptions

	// Metrics configures the request metrics when Metrics is enabled.
	Metrics []MetricsOption

	// Tracer overrides the global OpenTelemetry tracer.
	Tracer trace.Tracer
}

// Timing measures requests. It attaches a ServerTiming to the request
// context and writes its entries as Server-Timing headers right before the
// response headers are sent. It optionally records Prometheus metrics and
// an OpenTelemetry span per request.
func Timing(cfg TimingConfig) dispatch.Middleware {
	var m *requestMetrics
	if cfg.Metrics != nil || cfg.TimingOptions.Metrics {
		mc := defaultMetricsConfig()
		for _, opt := range cfg.Metrics {
			opt(&mc)
		}
		m = metricsFor(mc)
	}

	tracer := cfg.Tracer
	if tracer == nil && cfg.Tracing {
		tracer = defaultTracer()
	}

	return dispatch.MiddlewareFunc(func(w http.ResponseWriter, r *http.Request, next dispatch.Next) {
		start := time.Now()
		st := &ServerTiming{}
		ctx := WithTiming(r.Context(), st)

		var span trace.Span
		if tracer != nil {
			ctx, span = startSpan(r.WithContext(ctx), tracer)
		}
		r = r.WithContext(ctx)

		hw := &headerHook{ResponseWriter: w, before: func(h http.Header) {
			if cfg.Total {
				st.Add("total", time.Since(start), "Total server time")
			}
			for _, v := range st.Header() {
				h.Add("Server-Timing", v)
			}
		}}
		ww := chimw.NewWrapResponseWriter(hw, r.ProtoMajor)

		var began time.Time
		if m != nil {
			began = m.begin()
		}

		next(ww, r, nil)

		if m == nil && span == nil {
			return
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if m != nil {
			m.end(r, ww, began)
		}
		if span != nil {
			endSpan(span, status)
		}
	})
}

// headerHook calls before once, just before the headers are written.
type headerHook struct {
	http.ResponseWriter
	before func(http.Header)
	once   sync.Once
}

func (h *headerHook) fire() {
	h.once.Do(func() { h.before(h.ResponseWriter.Header()) })
}

func (h *headerHook) WriteHeader(code int) {
	// Informational responses leave the final headers open.
	if code >= 200 {
		h.fire()
	}
	h.ResponseWriter.WriteHeader(code)
}

func (h *headerHook) Write(b []byte) (int, error) {
	h.fire()
	return h.ResponseWriter.Write(b)
}

func (h *headerHook) Flush() {
	h.fire()
	_ = http.NewResponseController(h.ResponseWriter).Flush()
}

func (h *headerHook) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(h.ResponseWriter).Hijack()
}

func (h *headerHook) Unwrap() http.ResponseWriter {
	return h.ResponseWriter
}
