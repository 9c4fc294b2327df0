// Package metrics provides Prometheus metrics for fieldtype hosts.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for a host and its store.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Store metrics
	ChangesTotal *prometheus.CounterVec
	FieldsOpen   prometheus.Gauge

	// Preload metrics
	PreloadDuration *prometheus.HistogramVec
	PreloadFailures *prometheus.CounterVec
	PreloadCacheHit *prometheus.CounterVec

	// Form metrics
	FormsOpened      prometheus.Counter
	ValidationErrors *prometheus.CounterVec
}

// New creates a collector registered with the default Prometheus registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxfield",
				Name:      "changes_total",
				Help:      "Total number of changes applied to the field store",
			},
			[]string{"handle", "kind"},
		),
		FieldsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "hxfield",
				Name:      "fields_open",
				Help:      "Number of field instances held by the store",
			},
		),
		PreloadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hxfield",
				Name:      "preload_duration_seconds",
				Help:      "Fieldtype preload duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"handle"},
		),
		PreloadFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxfield",
				Name:      "preload_failures_total",
				Help:      "Total number of failed fieldtype preloads",
			},
			[]string{"handle"},
		),
		PreloadCacheHit: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxfield",
				Name:      "preload_cache_hits_total",
				Help:      "Total number of preloads served from cache",
			},
			[]string{"handle"},
		),
		FormsOpened: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "hxfield",
				Name:      "forms_opened_total",
				Help:      "Total number of form instances opened",
			},
		),
		ValidationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hxfield",
				Name:      "validation_errors_total",
				Help:      "Total number of rejected field values",
			},
			[]string{"handle"},
		),
	}
}

// RecordChange counts an applied store change.
func (c *Collector) RecordChange(handle, kind string) {
	if c == nil {
		return
	}
	c.ChangesTotal.WithLabelValues(handle, kind).Inc()
}

// SetFieldsOpen reports the number of field instances in the store.
func (c *Collector) SetFieldsOpen(n int) {
	if c == nil {
		return
	}
	c.FieldsOpen.Set(float64(n))
}

// RecordPreload records a preload's duration and outcome.
func (c *Collector) RecordPreload(handle string, d time.Duration, err error) {
	if c == nil {
		return
	}
	c.PreloadDuration.WithLabelValues(handle).Observe(d.Seconds())
	if err != nil {
		c.PreloadFailures.WithLabelValues(handle).Inc()
	}
}

// RecordPreloadCacheHit counts a preload answered from cache.
func (c *Collector) RecordPreloadCacheHit(handle string) {
	if c == nil {
		return
	}
	c.PreloadCacheHit.WithLabelValues(handle).Inc()
}

// RecordFormOpened counts an opened form.
func (c *Collector) RecordFormOpened() {
	if c == nil {
		return
	}
	c.FormsOpened.Inc()
}

// RecordValidationError counts a rejected value.
func (c *Collector) RecordValidationError(handle string) {
	if c == nil {
		return
	}
	c.ValidationErrors.WithLabelValues(handle).Inc()
}
