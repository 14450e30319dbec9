package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bivex/subscription-renewals/internal/domain/entity"
	"github.com/bivex/subscription-renewals/internal/domain/service"
)

const namespace = "subscription"

// ProcessingBuckets covers a fast local decline up to a slow gateway round trip, in seconds
var ProcessingBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60}

// RenewalMetrics records renewal and reminder outcomes. It implements service.RenewalObserver.
type RenewalMetrics struct {
	registry *prometheus.Registry

	outcomes   *prometheus.CounterVec
	reminders  *prometheus.CounterVec
	processing *prometheus.HistogramVec

	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec
}

var _ service.RenewalObserver = (*RenewalMetrics)(nil)

// NewRenewalMetrics registers every collector on a fresh registry, together
// with the Go runtime and process collectors.
func NewRenewalMetrics() *RenewalMetrics {
	m := &RenewalMetrics{
		registry: prometheus.NewRegistry(),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_outcomes_total",
			Help:      "Renewal attempts partitioned by outcome and subscription type.",
		}, []string{"outcome", "type"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renewal_reminders_total",
			Help:      "Renewal reminders partitioned by days before billing and delivery result.",
		}, []string{"days", "result"}),
		processing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "renewal_processing_seconds",
			Help:      "Time spent processing one renewal, including the gateway call.",
			Buckets:   ProcessingBuckets,
		}, []string{"outcome"}),
		reqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "How many HTTP requests processed, partitioned by status code, method and route.",
		}, []string{"code", "method", "route"}),
		reqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "The HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method", "route"}),
	}

	m.registry.MustRegister(
		m.outcomes, m.reminders, m.processing, m.reqCnt, m.reqDur,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *RenewalMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRenewal implements service.RenewalObserver
func (m *RenewalMetrics) ObserveRenewal(outcome service.RenewalOutcome, subType entity.SubscriptionType, elapsed time.Duration) {
	m.outcomes.WithLabelValues(string(outcome), string(subType)).Inc()
	m.processing.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

// ObserveReminder implements service.RenewalObserver
func (m *RenewalMetrics) ObserveReminder(daysBefore int, sent bool) {
	result := "skipped"
	if sent {
		result = "sent"
	}
	m.reminders.WithLabelValues(strconv.Itoa(daysBefore), result).Inc()
}

// Middleware counts requests and their latency. The route label is the gin
// route template so path parameters do not explode cardinality.
func (m *RenewalMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		m.reqCnt.WithLabelValues(code, c.Request.Method, route).Inc()
		m.reqDur.WithLabelValues(code, c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *RenewalMetrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
