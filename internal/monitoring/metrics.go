package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued per event",
		},
		[]string{"event_id"},
	)

	SoldOutRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sold_out_rejections_total",
			Help: "Issue requests rejected because the category or event was exhausted",
		},
		[]string{"event_id"},
	)

	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders created",
		},
	)

	OrdersCanceled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_canceled_total",
			Help: "Orders canceled, by reason",
		},
		[]string{"reason"},
	)

	OrdersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Pending orders canceled by the expiration sweeper",
		},
	)

	SettlementEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_events_total",
			Help: "Settlement messages processed, by outcome",
		},
		[]string{"outcome"},
	)

	DeadLetteredMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_lettered_messages_total",
			Help: "Messages routed to a dead-letter topic, by source topic",
		},
		[]string{"topic"},
	)
)

// Handler exposes the default registry for the /metrics listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
