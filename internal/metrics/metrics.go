// Package metrics exposes Prometheus counters for lead workflow outcomes.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeOK labels successful operations; failures use their error code.
const OutcomeOK = "ok"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	lockTotal          *prometheus.CounterVec
	purchaseTotal      *prometheus.CounterVec
	webhookTotal       *prometheus.CounterVec
	viewsTotal         prometheus.Counter
	expiredTotal       prometheus.Counter
	backgroundFailures *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New creates Metrics with every collector prefixed by namespace.
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.lockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_lock_total",
			Help:      "Lead lock attempts by outcome.",
		},
		[]string{"outcome"},
	)
	m.purchaseTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lead_purchase_total",
			Help:      "Lead purchase finalizations by path and outcome.",
		},
		[]string{"path", "outcome"},
	)
	m.webhookTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Payment webhook deliveries by event type and outcome.",
		},
		[]string{"event_type", "outcome"},
	)
	m.viewsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lead_views_total",
		Help:      "Lead views recorded.",
	})
	m.expiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_expired_total",
		Help:      "Pending purchases expired as abandoned.",
	})
	m.backgroundFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_failures_total",
			Help:      "Best-effort background task failures by task kind.",
		},
		[]string{"task"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	m.registry.MustRegister(
		m.lockTotal,
		m.purchaseTotal,
		m.webhookTotal,
		m.viewsTotal,
		m.expiredTotal,
		m.backgroundFailures,
		m.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordLock counts a lock attempt.
func (m *Metrics) RecordLock(outcome string) {
	if m == nil {
		return
	}
	m.lockTotal.WithLabelValues(outcome).Inc()
}

// RecordPurchase counts a purchase finalization. path is "mock" or "webhook".
func (m *Metrics) RecordPurchase(path, outcome string) {
	if m == nil {
		return
	}
	m.purchaseTotal.WithLabelValues(path, outcome).Inc()
}

// RecordWebhook counts a webhook delivery.
func (m *Metrics) RecordWebhook(eventType, outcome string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhookTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordView counts a lead view.
func (m *Metrics) RecordView() {
	if m == nil {
		return
	}
	m.viewsTotal.Inc()
}

// RecordExpired counts abandoned checkouts marked expired.
func (m *Metrics) RecordExpired(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredTotal.Add(float64(n))
}

// RecordBackgroundFailure counts a failed best-effort task. Its signature
// matches background.Runner.OnFailure. Task names carry entity ids after the
// first space ("matching proj-1"); only the leading kind becomes a label.
func (m *Metrics) RecordBackgroundFailure(task string, _ error) {
	if m == nil {
		return
	}
	kind, _, _ := strings.Cut(task, " ")
	m.backgroundFailures.WithLabelValues(kind).Inc()
}

// ObserveRequest records the latency of one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
