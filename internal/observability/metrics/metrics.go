package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the booking bot flows.
type BotMetrics struct {
	inboundTotal      *prometheus.CounterVec
	bookingsTotal     *prometheus.CounterVec
	notificationTotal *prometheus.CounterVec
	webhookLatency    *prometheus.HistogramVec
}

func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnosbot",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"event_type", "status"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnosbot",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Total booking operations",
		}, []string{"operation", "status"}),
		notificationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnosbot",
			Subsystem: "notifications",
			Name:      "dispatched_total",
			Help:      "Total notification delivery attempts",
		}, []string{"kind", "status"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "turnosbot",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of WhatsApp webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.bookingsTotal, m.notificationTotal, m.webhookLatency)
	return m
}

func (m *BotMetrics) ObserveInbound(eventType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(eventType, status).Inc()
}

func (m *BotMetrics) ObserveBooking(operation, status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(operation, status).Inc()
}

func (m *BotMetrics) ObserveNotification(kind, status string) {
	if m == nil {
		return
	}
	m.notificationTotal.WithLabelValues(kind, status).Inc()
}

func (m *BotMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}
