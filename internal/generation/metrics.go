package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records supervisor outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	jobs     *prometheus.CounterVec
	attempts *prometheus.HistogramVec
	inflight prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixo",
			Subsystem: "generation",
			Name:      "jobs_total",
			Help:      "Generation jobs by provider and outcome.",
		}, []string{"provider", "outcome"}),
		attempts: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fixo",
			Subsystem: "generation",
			Name:      "poll_attempts",
			Help:      "Status polls per finished generation job.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 45, 60},
		}, []string{"provider"}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "fixo",
			Subsystem: "generation",
			Name:      "jobs_inflight",
			Help:      "Generation jobs currently being supervised.",
		}),
	}
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *Metrics) finished(provider string, attempts int, err error) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	outcome := "completed"
	if err != nil {
		outcome = string(KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	m.jobs.WithLabelValues(provider, outcome).Inc()
	m.attempts.WithLabelValues(provider).Observe(float64(attempts))
}
