package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Controller registers its routes on the ops router.
type Controller interface {
	Key() string
	Register(r *mux.Router)
}

// MetricsController exposes the import worker's collectors (queue, records,
// outbox relay, authz decisions) for scraping. A collector that fails to
// gather is logged and skipped so one broken metric does not hide the rest.
type MetricsController struct {
	path    string
	handler http.Handler
}

func NewMetricsController(path string, gatherer prometheus.Gatherer, logger *logrus.Entry) *MetricsController {
	if path == "" {
		path = "/debug/prometheus"
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	opts := promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}
	if logger != nil {
		opts.ErrorLog = logger.WithField("path", path)
	}
	return &MetricsController{path: path, handler: promhttp.HandlerFor(gatherer, opts)}
}

func (c *MetricsController) Key() string {
	return c.path
}

func (c *MetricsController) Register(r *mux.Router) {
	r.Handle(c.path, c.handler).Methods(http.MethodGet)
}
