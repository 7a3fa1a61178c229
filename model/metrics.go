package model

import (
	"time"

	"github.com/influxdata/mlcore"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus metrics of models.
type Metrics struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics returns a Metrics. Register its PrometheusCollectors with a
// registry to export them.
func NewMetrics() *Metrics {
	const (
		namespace = "mlcore"
		subsystem = "model"
	)

	return &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operations_total",
			Help:      "Count of model operations by result",
		}, []string{"model", "operation", "result"}),

		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Histogram of time spent in model operations",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 5, 7),
		}, []string{"model", "operation"}),
	}
}

// PrometheusCollectors returns the collectors of m.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Operations,
		m.Duration,
	}
}

// observe records one operation. It is safe to call on a nil Metrics.
func (m *Metrics) observe(model, operation string, took time.Duration, err *error) {
	if m == nil {
		return
	}

	result := "success"
	if *err != nil {
		result = mlcore.ErrorCode(*err)
	}
	m.Operations.WithLabelValues(model, operation, result).Inc()
	m.Duration.WithLabelValues(model, operation).Observe(took.Seconds())
}
