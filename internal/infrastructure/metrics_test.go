package infrastructure

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveInbound("webhook", "ok")
	m.ObserveInbound("webhook", "ok")
	m.ObserveReply("template")
	m.ObserveEscalation("urgent keyword")
	m.ObserveTaskRun("morning_briefing", "ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.inboundTotal.WithLabelValues("webhook", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.repliesTotal.WithLabelValues("template")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.escalations.WithLabelValues("urgent keyword")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.taskRuns.WithLabelValues("morning_briefing", "ok")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveInbound("x", "y")
		m.ObserveReply("x")
		m.ObserveEscalation("x")
		m.ObserveBackendLatency("ok", 0.1)
		m.ObserveTaskRun("x", "ok")
		m.ObserveNotification("x", "ok")
	})
}
