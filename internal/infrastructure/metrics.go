package infrastructure

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters and histograms for the reply pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	inboundTotal   *prometheus.CounterVec
	repliesTotal   *prometheus.CounterVec
	escalations    *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	taskRuns       *prometheus.CounterVec
	notifications  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luma",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Inbound client messages by platform and outcome",
		}, []string{"platform", "status"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luma",
			Subsystem: "messaging",
			Name:      "replies_total",
			Help:      "Replies by the strategy that produced them",
		}, []string{"strategy"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luma",
			Subsystem: "messaging",
			Name:      "escalations_total",
			Help:      "Human handoffs by reason",
		}, []string{"reason"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "luma",
			Subsystem: "generative",
			Name:      "latency_seconds",
			Help:      "Latency of generative backend calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luma",
			Subsystem: "scheduler",
			Name:      "task_runs_total",
			Help:      "Scheduled task executions",
		}, []string{"task", "status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "luma",
			Subsystem: "notifier",
			Name:      "events_total",
			Help:      "Operator notification events",
		}, []string{"type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.repliesTotal, m.escalations, m.backendLatency, m.taskRuns, m.notifications)
	return m
}

func (m *Metrics) ObserveInbound(platform, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(platform, status).Inc()
}

func (m *Metrics) ObserveReply(strategy string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(strategy).Inc()
}

func (m *Metrics) ObserveEscalation(reason string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBackendLatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.backendLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *Metrics) ObserveTaskRun(task, status string) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(task, status).Inc()
}

func (m *Metrics) ObserveNotification(eventType, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(eventType, status).Inc()
}
