// Package metrics wraps the Prometheus collectors fed by the analytics,
// performance, persistence and rate limit middlewares.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "hearth"

// Collector owns a private registry. A nil *Collector is valid and records
// nothing.
type Collector struct {
	registry *prometheus.Registry

	actionsTotal        *prometheus.CounterVec
	actionDuration      *prometheus.HistogramVec
	rateLimitedTotal    *prometheus.CounterVec
	persistenceFailures prometheus.Counter
	subscribers         prometheus.Gauge
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of dispatched actions",
		},
		[]string{"slice", "type"},
	)

	c.actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Time spent running an action through the rest of the chain",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12), // 100us to ~200ms
		},
		[]string{"slice"},
	)

	c.rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of actions rejected by the rate limiter",
		},
		[]string{"bucket"},
	)

	c.persistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Total number of failed preference writes",
		},
	)

	c.subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_subscribers",
			Help:      "Current number of state subscribers",
		},
	)

	c.registry.MustRegister(
		c.actionsTotal,
		c.actionDuration,
		c.rateLimitedTotal,
		c.persistenceFailures,
		c.subscribers,
	)

	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordAction counts one dispatched action.
func (c *Collector) RecordAction(slice, actionType string) {
	if c == nil {
		return
	}
	c.actionsTotal.WithLabelValues(slice, actionType).Inc()
}

// RecordDuration observes how long an action took.
func (c *Collector) RecordDuration(slice string, d time.Duration) {
	if c == nil {
		return
	}
	c.actionDuration.WithLabelValues(slice).Observe(d.Seconds())
}

// RecordRateLimited counts one rejected action.
func (c *Collector) RecordRateLimited(bucket string) {
	if c == nil {
		return
	}
	c.rateLimitedTotal.WithLabelValues(bucket).Inc()
}

// RecordPersistenceFailure counts one failed preference write.
func (c *Collector) RecordPersistenceFailure() {
	if c == nil {
		return
	}
	c.persistenceFailures.Inc()
}

// SetSubscribers records the current subscriber count.
func (c *Collector) SetSubscribers(n int) {
	if c == nil {
		return
	}
	c.subscribers.Set(float64(n))
}
