// Package metrics exposes Prometheus metrics about model archive acquisitions.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "modelarchive"

// Result labels used for acquisition metrics.
const (
	ResultSuccess = "success"
	ResultCached  = "cached"
	ResultFailure = "failure"
)

// Metrics holds the collectors updated by a model store.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	registered   prometheus.Gauge
}

// Default is the set of metrics registered by RegisterMetrics.
var Default = New()

func New() *Metrics {
	return &Metrics{
		acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisitions_total",
			Help:      "number of model archive acquisitions by source kind and result",
		}, []string{"kind", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "acquisition_duration_seconds",
			Help:      "duration of model archive acquisitions by source kind",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"kind"}),
		registered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_archives",
			Help:      "number of archives registered in the model store",
		}),
	}
}

// MustRegisterMetrics registers Default and panics on error.
// Intended to be called during process startup.
func MustRegisterMetrics(registerer prometheus.Registerer) {
	if err := RegisterMetrics(registerer); err != nil {
		panic(err)
	}
}

// RegisterMetrics registers Default with registerer.
func RegisterMetrics(registerer prometheus.Registerer) error {
	return Default.Register(registerer)
}

// Register registers all collectors of m.
// Uses errors.Join to return multiple registration errors if they occur.
func (m *Metrics) Register(registerer prometheus.Registerer) error {
	return errors.Join(
		registerer.Register(m.acquisitions),
		registerer.Register(m.duration),
		registerer.Register(m.registered),
	)
}

// ObserveAcquisition records one finished acquisition.
func (m *Metrics) ObserveAcquisition(kind, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(kind, result).Inc()
	m.duration.WithLabelValues(kind).Observe(took.Seconds())
}

// SetRegistered reports the current number of registered archives.
func (m *Metrics) SetRegistered(n int) {
	if m == nil {
		return
	}
	m.registered.Set(float64(n))
}
