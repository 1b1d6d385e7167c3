package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	registry *prometheus.Registry

	eventsIngested   *prometheus.CounterVec
	ingestRejected   *prometheus.CounterVec
	deliveries       *prometheus.CounterVec
	deliveryDuration prometheus.Histogram
	queueDropped     prometheus.Counter
	reportsComputed  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_events_ingested_total",
			Help: "Tracking events stored, by event type.",
		}, []string{"event_type"}),
		ingestRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_ingest_rejected_total",
			Help: "Ingest requests refused, by reason.",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_deliveries_total",
			Help: "Delivery attempts to utmify, by outcome.",
		}, []string{"outcome"}),
		deliveryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_delivery_duration_seconds",
			Help:    "Latency of delivery attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		queueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_delivery_queue_dropped_total",
			Help: "Event ids not queued because the dispatcher was full; the sweep retries them.",
		}),
		reportsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_reports_computed_total",
			Help: "Reports computed and stored.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.eventsIngested, m.ingestRejected, m.deliveries, m.deliveryDuration,
		m.queueDropped, m.reportsComputed,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) EventIngested(eventType string) {
	if m != nil {
		m.eventsIngested.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IngestRejected(reason string) {
	if m != nil {
		m.ingestRejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Delivered(outcome string, seconds float64) {
	if m != nil {
		m.deliveries.WithLabelValues(outcome).Inc()
		m.deliveryDuration.Observe(seconds)
	}
}

func (m *Metrics) QueueDropped() {
	if m != nil {
		m.queueDropped.Inc()
	}
}

func (m *Metrics) ReportComputed() {
	if m != nil {
		m.reportsComputed.Inc()
	}
}
