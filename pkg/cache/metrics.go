package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enceladus_cache_requests_total",
		Help: "Entity cache lookups by kind and result (hit, miss, load_error).",
	}, []string{"kind", "result"})

	evictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enceladus_cache_evictions_total",
		Help: "Entries dropped because a kind's cache reached capacity.",
	}, []string{"kind"})

	entriesGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "enceladus_cache_entries",
		Help: "Entries currently held per kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(requestsTotal, evictionsTotal, entriesGauge)
}
