package analysis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder observes fetches against the statistics source and local
// recomputations.
type MetricsRecorder interface {
	ObserveFetch(operation string, success bool, duration time.Duration)
	ObserveRecompute(kind string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveFetch(string, bool, time.Duration) {}
func (noopMetrics) ObserveRecompute(string)                  {}

// PrometheusMetrics implements MetricsRecorder with client_golang collectors
type PrometheusMetrics struct {
	fetchTotal     *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	recomputeTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		fetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agreement_fetch_total",
			Help: "Fetches against the statistics source by operation and status.",
		}, []string{"operation", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agreement_fetch_duration_seconds",
			Help:    "Duration of fetches against the statistics source.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		recomputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agreement_recompute_total",
			Help: "Local recomputations triggered by selection or dataset changes.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.fetchTotal, m.fetchDuration, m.recomputeTotal)
	return m
}

func (m *PrometheusMetrics) ObserveFetch(operation string, success bool, duration time.Duration) {
	status := "error"
	if success {
		status = "success"
	}
	m.fetchTotal.WithLabelValues(operation, status).Inc()
	m.fetchDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) ObserveRecompute(kind string) {
	m.recomputeTotal.WithLabelValues(kind).Inc()
}
