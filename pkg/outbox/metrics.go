package outbox

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	enqueueTotal    *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	coalescedTotal  *prometheus.CounterVec
	deadTotal       *prometheus.CounterVec
	cleanedTotal    *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	pending         *prometheus.GaugeVec
	relayLeader     *prometheus.GaugeVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		enqueueTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg_outbox",
			Name:      "enqueue_total",
			Help:      "Messages written to an outbox table.",
		}, []string{"table", "topic"}),
		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg_outbox",
			Name:      "dispatch_total",
			Help:      "Dispatch attempts by result.",
		}, []string{"table", "topic", "result"}),
		coalescedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg_outbox",
			Name:      "coalesced_total",
			Help:      "Messages acknowledged without dispatch because a newer message for the same key was claimed.",
		}, []string{"table", "topic"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg_outbox",
			Name:      "dead_total",
			Help:      "Messages that exhausted their attempts.",
		}, []string{"table", "topic"}),
		cleanedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg_outbox",
			Name:      "cleaned_total",
			Help:      "Rows removed by the cleaner.",
		}, []string{"table", "kind"}),
		dispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "statreg_outbox",
			Name:      "dispatch_latency_seconds",
			Help:      "Dispatch latency.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"table", "topic", "result"}),
		pending: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "statreg_outbox",
			Name:      "pending",
			Help:      "Unpublished messages.",
		}, []string{"table"}),
		relayLeader: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "statreg_outbox",
			Name:      "relay_leader",
			Help:      "1 when this process holds the relay lock for a table.",
		}, []string{"table"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
