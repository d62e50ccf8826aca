package providers

import (
	"rsd/internal/structures"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncDeltasPublished(entityType string)
	IncSubscriberGaps()
	AddActiveSubscriptions(n int)
	SetPendingMutations(count int)
	SetConflicts(count int)
	IncNotificationsSent()
	ObservePersistenceDuration(duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	deltasPublished     *prometheus.CounterVec
	subscriberGaps      prometheus.Counter
	activeSubscriptions prometheus.Gauge
	pendingMutations    prometheus.Gauge
	conflicts           prometheus.Gauge
	notificationsSent   prometheus.Counter
	persistenceDuration prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncDeltasPublished(entityType string) {
	m.deltasPublished.WithLabelValues(entityType).Inc()
}

func (m *MetricsProvider) IncSubscriberGaps() {
	m.subscriberGaps.Inc()
}

func (m *MetricsProvider) AddActiveSubscriptions(n int) {
	m.activeSubscriptions.Add(float64(n))
}

func (m *MetricsProvider) SetPendingMutations(count int) {
	m.pendingMutations.Set(float64(count))
}

func (m *MetricsProvider) SetConflicts(count int) {
	m.conflicts.Set(float64(count))
}

func (m *MetricsProvider) IncNotificationsSent() {
	m.notificationsSent.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rsd_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rsd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rsd_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rsd_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		deltasPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rsd_deltas_published_total",
			Help: "Total number of deltas published to the event channel",
		}, []string{"entity_type"}),

		subscriberGaps: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rsd_subscriber_gaps_total",
			Help: "Total number of subscriber streams marked gapped by backpressure",
		}),

		activeSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rsd_active_subscriptions",
			Help: "Number of live channel subscriptions",
		}),

		pendingMutations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rsd_pending_mutations",
			Help: "Number of outstanding pending mutations",
		}),

		conflicts: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "rsd_conflicts",
			Help: "Number of unresolved conflicts",
		}),

		notificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rsd_notifications_sent_total",
			Help: "Total number of notifications dispatched",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rsd_persistence_duration_seconds",
			Help:    "Snapshot persistence duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	return m
}

type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncDeltasPublished(_ string)                      {}
func (n *noopMetrics) IncSubscriberGaps()                               {}
func (n *noopMetrics) AddActiveSubscriptions(_ int)                     {}
func (n *noopMetrics) SetPendingMutations(_ int)                        {}
func (n *noopMetrics) SetConflicts(_ int)                               {}
func (n *noopMetrics) IncNotificationsSent()                            {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
