package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "chat"

// Metrics holds the chat collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	connections      prometheus.Gauge
	messagesSent     *prometheus.CounterVec
	sendDuration     prometheus.Histogram
	broadcastDropped prometheus.Counter
	invitations      *prometheus.CounterVec
	invitationsSwept prometheus.Counter
	commandErrors    *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	ns := fmtFixer(namespace)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "connections",
			Help: "Live websocket connections.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "messages_sent_total",
			Help: "Messages persisted and broadcast, by message type.",
		}, []string{"type"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: subsystem,
			Name:    "send_duration_seconds",
			Help:    "Time from authorization to broadcast enqueue.",
			Buckets: prometheus.DefBuckets,
		}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "broadcast_dropped_total",
			Help: "Broadcast frames dropped because a client buffer was full.",
		}),
		invitations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "invitations_total",
			Help: "Invitation transitions by resulting status.",
		}, []string{"status"}),
		invitationsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "invitations_expired_total",
			Help: "Invitations moved to EXPIRED by the sweeper.",
		}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "command_errors_total",
			Help: "Websocket commands answered with an error event.",
		}, []string{"command", "code"}),
	}

	registry.MustRegister(
		m.connections,
		m.messagesSent,
		m.sendDuration,
		m.broadcastDropped,
		m.invitations,
		m.invitationsSwept,
		m.commandErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

func (m *Metrics) MessageSent(messageType string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(messageType).Inc()
}

// SendTimer measures one pipeline run; call ObserveDuration when done.
func (m *Metrics) SendTimer() *prometheus.Timer {
	if m == nil {
		return prometheus.NewTimer(prometheus.ObserverFunc(func(float64) {}))
	}
	return prometheus.NewTimer(m.sendDuration)
}

func (m *Metrics) BroadcastDropped() {
	if m == nil {
		return
	}
	m.broadcastDropped.Inc()
}

func (m *Metrics) InvitationTransition(status string) {
	if m == nil {
		return
	}
	m.invitations.WithLabelValues(status).Inc()
}

func (m *Metrics) InvitationsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.invitationsSwept.Add(float64(n))
}

func (m *Metrics) CommandError(command, code string) {
	if m == nil {
		return
	}
	m.commandErrors.WithLabelValues(command, code).Inc()
}

func fmtFixer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "-", "_"), ".", "_")
}
