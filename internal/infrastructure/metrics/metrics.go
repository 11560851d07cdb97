// Package metrics registers the Prometheus collectors exported by GeoControl
// Core on the default registry and serves them over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "geocontrol"

var (
	// HTTPRequestsTotal counts API requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration observes API latency by method and route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// MeasurementsStored counts measurements appended to the store.
	MeasurementsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "measurements_stored_total",
		Help:      "Total number of measurements stored",
	})

	// OutliersFlagged counts outlier flags served by single-sensor queries.
	// Network aggregates are not counted. Repeated reads count again.
	OutliersFlagged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outliers_flagged_total",
		Help:      "Total number of outlier flags served by single-sensor queries",
	})

	// IngestMessages counts MQTT ingestion messages by outcome.
	IngestMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_messages_total",
		Help:      "Total number of MQTT measurement messages by result",
	}, []string{"result"})
)

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
