package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/webcore/internal/core/domain"
	"github.com/tjfontaine/webcore/internal/core/ports"
)

// PrometheusConfig configures the Prometheus sink.
type PrometheusConfig struct {
	Namespace string
	Subsystem string
}

// DefaultPrometheusConfig returns the default configuration.
func DefaultPrometheusConfig() PrometheusConfig {
	return PrometheusConfig{
		Namespace: "webcore",
	}
}

// Prometheus records samples as gauges in its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	Samples         *prometheus.GaugeVec
	RequestDuration *prometheus.HistogramVec
	Failures        *prometheus.CounterVec
}

// NewPrometheus creates a sink with a fresh registry.
func NewPrometheus(cfg PrometheusConfig) *Prometheus {
	reg := prometheus.NewRegistry()

	p := &Prometheus{
		registry: reg,
		Samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "sample",
			Help:      "Last value of each monitoring sample",
		}, []string{"name"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "request_duration_seconds",
			Help:      "Duration of requests through the pipeline in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status_class"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "failures_total",
			Help:      "Failures reported by background loops and trailing steps",
		}, []string{"source"}),
	}

	reg.MustRegister(p.Samples, p.RequestDuration, p.Failures)
	return p
}

func (p *Prometheus) Emit(sample domain.Sample) {
	p.Samples.WithLabelValues(sample.Name).Set(sample.Value)
}

// ObserveRequest records one request duration under its status class
// ("2xx", "5xx", ...).
func (p *Prometheus) ObserveRequest(status int, seconds float64) {
	p.RequestDuration.WithLabelValues(StatusClass(status)).Observe(seconds)
}

// CountFailure increments the failure counter for source.
func (p *Prometheus) CountFailure(source string) {
	p.Failures.WithLabelValues(source).Inc()
}

// Registry returns the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// StatusClass maps a status code to its class label.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return string(rune('0'+status/100)) + "xx"
}

// Ensure Prometheus implements the interface.
var _ ports.Sink = (*Prometheus)(nil)
