package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Interpretation outcomes
const (
	OutcomeOK         = "ok"
	OutcomeGuestError = "guest_error"
	OutcomeError      = "error"
)

// Metrics holds the bridge's Prometheus collectors
type Metrics struct {
	InterpretTotal    *prometheus.CounterVec
	InterpretDuration prometheus.Histogram
	LiveHandles       prometheus.Gauge
	ViewRebuilds      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		InterpretTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wasm_bridge_interpret_total",
				Help: "Total number of interpret calls by outcome",
			},
			[]string{"outcome"},
		),
		InterpretDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wasm_bridge_interpret_duration_seconds",
				Help:    "Interpret call duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
		),
		LiveHandles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wasm_bridge_live_handles",
				Help: "Number of live host values referenced by the guest",
			},
		),
		ViewRebuilds: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wasm_bridge_view_rebuilds_total",
				Help: "Number of times the guest memory view was rebuilt",
			},
		),
	}
}

func (m *Metrics) recordInterpret(outcome string, d time.Duration, live int, rebuilds uint64) {
	if m == nil {
		return
	}
	m.InterpretTotal.WithLabelValues(outcome).Inc()
	m.InterpretDuration.Observe(d.Seconds())
	m.LiveHandles.Set(float64(live))
	if rebuilds > 0 {
		m.ViewRebuilds.Add(float64(rebuilds))
	}
}
