package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.EventIngested("sale")
	m.EventIngested("sale")
	m.IngestRejected("unauthorized")
	m.Delivered("success", 0.05)
	m.QueueDropped()
	m.ReportComputed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.True(t, strings.Contains(out, `tracker_events_ingested_total{event_type="sale"} 2`), out)
	assert.True(t, strings.Contains(out, `tracker_ingest_rejected_total{reason="unauthorized"} 1`))
	assert.True(t, strings.Contains(out, `tracker_deliveries_total{outcome="success"} 1`))
	assert.True(t, strings.Contains(out, "tracker_delivery_queue_dropped_total 1"))
	assert.True(t, strings.Contains(out, "tracker_reports_computed_total 1"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EventIngested("click")
		m.IngestRejected("invalid")
		m.Delivered("failed", 1)
		m.QueueDropped()
		m.ReportComputed()
	})
}
