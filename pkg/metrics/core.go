package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics records the restaurant core's operational counters.
type CoreMetrics struct {
	ordersPlaced  *prometheus.CounterVec
	ticketsClosed prometheus.Counter
	eventsLogged  *prometheus.CounterVec
}

// NewCoreMetrics registers the core metrics on the provided registerer.
func NewCoreMetrics(reg prometheus.Registerer) *CoreMetrics {
	if reg == nil {
		return &CoreMetrics{}
	}
	ordersPlaced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed, labelled by resulting status.",
	}, []string{"status"})
	ticketsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tickets_closed_total",
		Help: "Tickets archived as closed_ticket events.",
	})
	eventsLogged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_logged_total",
		Help: "Append-only events written, labelled by event type.",
	}, []string{"type"})
	reg.MustRegister(ordersPlaced, ticketsClosed, eventsLogged)
	return &CoreMetrics{
		ordersPlaced:  ordersPlaced,
		ticketsClosed: ticketsClosed,
		eventsLogged:  eventsLogged,
	}
}

// IncOrderPlaced counts an order outcome (pending or rejected).
func (c *CoreMetrics) IncOrderPlaced(status string) {
	if c == nil || c.ordersPlaced == nil {
		return
	}
	c.ordersPlaced.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncTicketClosed counts a ticket archive.
func (c *CoreMetrics) IncTicketClosed() {
	if c == nil || c.ticketsClosed == nil {
		return
	}
	c.ticketsClosed.Inc()
}

// IncEventLogged counts an event append by type.
func (c *CoreMetrics) IncEventLogged(eventType string) {
	if c == nil || c.eventsLogged == nil {
		return
	}
	c.eventsLogged.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
