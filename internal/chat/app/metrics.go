package app

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics chat service collectors; a nil *Metrics records nothing
type Metrics struct {
	tracked      prometheus.Gauge
	draining     prometheus.Gauge
	deletions    *prometheus.CounterVec
	events       *prometheus.CounterVec
	sessions     prometheus.Gauge
	quotaDenials prometheus.Counter
	cleanupJobs  *prometheus.CounterVec
}

// NewMetrics create and register collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "presence_tracked_conversations",
			Help:      "Conversations with a live presence record.",
		}),
		draining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "presence_draining_conversations",
			Help:      "Conversations waiting out the grace period.",
		}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "conversation_deletions_total",
			Help:      "Cascade deletions by trigger and result.",
		}, []string{"trigger", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "ws_events_total",
			Help:      "Inbound websocket events by action and result.",
		}, []string{"action", "result"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chat",
			Name:      "ws_sessions",
			Help:      "Open websocket sessions.",
		}),
		quotaDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "quota_denials_total",
			Help:      "Conversation creations rejected by the quota gate.",
		}),
		cleanupJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "cleanup_jobs_total",
			Help:      "Out-of-band cleanup jobs by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.tracked, m.draining, m.deletions, m.events, m.sessions, m.quotaDenials, m.cleanupJobs)
	}
	return m
}

func (m *Metrics) setPresence(tracked, draining int) {
	if m == nil {
		return
	}
	m.tracked.Set(float64(tracked))
	m.draining.Set(float64(draining))
}

func (m *Metrics) deletion(trigger string, err error) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues(trigger, result(err)).Inc()
}

func (m *Metrics) event(action string, err error) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(action, result(err)).Inc()
}

func (m *Metrics) sessionOpened() {
	if m != nil {
		m.sessions.Inc()
	}
}

func (m *Metrics) sessionClosed() {
	if m != nil {
		m.sessions.Dec()
	}
}

func (m *Metrics) quotaDenied() {
	if m != nil {
		m.quotaDenials.Inc()
	}
}

func (m *Metrics) cleanupJob(res string) {
	if m != nil {
		m.cleanupJobs.WithLabelValues(res).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
