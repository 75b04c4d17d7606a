package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// serverMetrics tracks lifecycle state. A nil *serverMetrics records
// nothing.
type serverMetrics struct {
	listeners prometheus.Gauge
	ready     prometheus.Gauge
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	return &serverMetrics{
		listeners: registerGauge(reg, prometheus.GaugeOpts{
			Namespace: "vserve",
			Subsystem: "server",
			Name:      "listeners",
			Help:      "Number of endpoints the server listens on",
		}),
		ready: registerGauge(reg, prometheus.GaugeOpts{
			Namespace: "vserve",
			Subsystem: "server",
			Name:      "ready",
			Help:      "1 when the pipeline is assembled and the renderer is ready",
		}),
	}
}

// registerGauge registers a gauge, or returns the one a previous server
// registered on reg.
func registerGauge(reg prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	if err := reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing
			}
		}
	}
	return g
}

func (m *serverMetrics) setListeners(n int) {
	if m == nil {
		return
	}
	m.listeners.Set(float64(n))
}

func (m *serverMetrics) setReady(ready bool) {
	if m == nil {
		return
	}
	v := 0.0
	if ready {
		v = 1
	}
	m.ready.Set(v)
}
