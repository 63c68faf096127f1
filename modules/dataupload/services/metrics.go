package services

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/iota-uz/statreg/modules/dataupload/services")

type metrics struct {
	jobsTotal      *prometheus.CounterVec
	recordsTotal   *prometheus.CounterVec
	jobDuration    prometheus.Histogram
	reclaimedTotal prometheus.Counter
	logFlushTotal  *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		jobsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg",
			Name:      "import_jobs_total",
			Help:      "Import jobs finished, by final status.",
		}, []string{"status"}),
		recordsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg",
			Name:      "import_records_total",
			Help:      "Logical records processed, by upload log status.",
		}, []string{"status"}),
		jobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statreg",
			Name:      "import_job_duration_seconds",
			Help:      "Wall time from claim to finish of an import job.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900, 1800, 3600},
		}),
		reclaimedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "statreg",
			Name:      "import_reclaimed_total",
			Help:      "Jobs returned to the queue after their dequeue timed out.",
		}),
		logFlushTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statreg",
			Name:      "import_log_flush_total",
			Help:      "Upload log buffer flushes, by result.",
		}, []string{"result"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
