package monitoring

import (
	"time"

	"tagfall/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements the metrics hooks of the ingestion merger,
// the poll scheduler and the dispatch hub.
type PrometheusCollector struct {
	contentIngestedTotal  *prometheus.CounterVec
	contentDuplicateTotal *prometheus.CounterVec
	contentBlockedTotal   *prometheus.CounterVec

	eventsDispatchedTotal *prometheus.CounterVec
	eventsDroppedTotal    prometheus.Counter
	sessionsConnected     prometheus.Gauge

	fetchDuration  *prometheus.HistogramVec
	providerHealth *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		contentIngestedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tagfall_content_ingested_total",
			Help: "Content items admitted to the tag logs",
		}, []string{"provider"}),

		contentDuplicateTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tagfall_content_duplicate_total",
			Help: "Re-delivered content items absorbed by dedup",
		}, []string{"provider"}),

		contentBlockedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tagfall_content_blocked_total",
			Help: "Content items dropped at ingest because the author is hidden",
		}, []string{"provider"}),

		eventsDispatchedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tagfall_events_dispatched_total",
			Help: "Events delivered to subscriber sessions",
		}, []string{"event_type"}),

		eventsDroppedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tagfall_events_dropped_total",
			Help: "Events dropped because a session buffer was full",
		}),

		sessionsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tagfall_sessions_connected",
			Help: "Currently connected websocket sessions",
		}),

		fetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tagfall_provider_fetch_duration_seconds",
			Help:    "Duration of provider fetches",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"provider", "outcome"}),

		providerHealth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tagfall_provider_health",
			Help: "Provider health status (0 healthy, 1 degraded, 2 unhealthy, 3 disabled)",
		}, []string{"provider"}),
	}
}

func (p *PrometheusCollector) ContentIngested(provider domain.ProviderID) {
	p.contentIngestedTotal.WithLabelValues(string(provider)).Inc()
}

func (p *PrometheusCollector) ContentDuplicate(provider domain.ProviderID) {
	p.contentDuplicateTotal.WithLabelValues(string(provider)).Inc()
}

func (p *PrometheusCollector) ContentBlocked(provider domain.ProviderID) {
	p.contentBlockedTotal.WithLabelValues(string(provider)).Inc()
}

func (p *PrometheusCollector) EventDispatched(eventType domain.EventType) {
	p.eventsDispatchedTotal.WithLabelValues(string(eventType)).Inc()
}

func (p *PrometheusCollector) EventDropped() {
	p.eventsDroppedTotal.Inc()
}

func (p *PrometheusCollector) SetSessions(count int) {
	p.sessionsConnected.Set(float64(count))
}

func (p *PrometheusCollector) ObserveFetch(provider domain.ProviderID, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.fetchDuration.WithLabelValues(string(provider), outcome).Observe(duration.Seconds())
}

func (p *PrometheusCollector) SetProviderHealth(provider domain.ProviderID, status domain.ProviderStatus) {
	p.providerHealth.WithLabelValues(string(provider)).Set(float64(status))
}
