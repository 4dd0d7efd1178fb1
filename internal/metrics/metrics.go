package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "udx_ws_active_connections",
		Help: "Currently connected realtime clients.",
	})
	AuthFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udx_ws_auth_failures_total",
		Help: "Rejected realtime handshakes.",
	})
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "udx_ws_events_delivered_total",
		Help: "Outbound events enqueued to clients, by event name.",
	}, []string{"event"})
)

// Handler exposes the default prometheus registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
