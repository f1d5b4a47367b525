package rooms

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enceladus_broadcast_deliveries_total",
		Help: "Per-subscriber broadcast deliveries by result.",
	}, []string{"result"})

	connectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "enceladus_ws_connected_clients",
		Help: "Live broadcast subscribers.",
	})
)

func init() {
	prometheus.MustRegister(deliveriesTotal, connectedClients)
}
