package services

import "github.com/prometheus/client_golang/prometheus"

// Metrics: счётчики Prometheus. Нулевой указатель ничего не считает.
type Metrics struct {
	accessActions   *prometheus.CounterVec
	webhookRequests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		accessActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "access_actions_total",
			Help: "Access control actions by type (claimed, granted, revoked, unbanned, rebound).",
		}, []string{"action"}),
		webhookRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_requests_total",
			Help: "Payment webhook calls by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.accessActions, m.webhookRequests)
	return m
}

func (m *Metrics) Access(action string) {
	if m == nil {
		return
	}
	m.accessActions.WithLabelValues(action).Inc()
}

func (m *Metrics) Webhook(result string) {
	if m == nil {
		return
	}
	m.webhookRequests.WithLabelValues(result).Inc()
}
