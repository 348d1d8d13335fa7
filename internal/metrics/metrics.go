package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
	OutcomeReplayed = "replayed"
)

var (
	CatalogFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shopora",
		Name:      "catalog_fetch_failures_total",
		Help:      "Product list fetches that failed and left the storefront catalog empty.",
	})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopora",
		Name:      "checkouts_total",
		Help:      "Checkout submissions by outcome.",
	}, []string{"outcome"})

	StatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shopora",
		Name:      "order_status_updates_total",
		Help:      "Admin order status changes by outcome.",
	}, []string{"outcome"})

	BackendRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shopora",
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of calls to the Shopora REST backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "code"})
)

func Handler() http.Handler { return promhttp.Handler() }
