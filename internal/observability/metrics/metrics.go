package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmbridge_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmbridge_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	storeRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmbridge_store_requests_total",
		Help: "Count of entity operations by backing store, verb and result",
	}, []string{"backend", "entity", "verb", "result"})

	storeRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crmbridge_store_request_duration_seconds",
		Help:    "Duration of entity operations against either store",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "verb"})

	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmbridge_logins_total",
		Help: "Count of login attempts by auth method and result",
	}, []string{"method", "result"})

	collectionResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crmbridge_collection_resolutions_total",
		Help: "Count of collection resolutions by outcome",
	}, []string{"outcome"})

	docstoreCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crmbridge_docstore_circuit_state",
		Help: "Secondary store circuit breaker state (0 closed, 1 open, 2 half-open)",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveStoreRequest records an entity operation with its routing decision.
func ObserveStoreRequest(backend, entity, verb, result string, duration time.Duration) {
	storeRequestsTotal.WithLabelValues(backend, entity, verb, result).Inc()
	storeRequestDuration.WithLabelValues(backend, verb).Observe(duration.Seconds())
}

// ObserveLogin records a login attempt by auth method.
func ObserveLogin(method, result string) {
	loginsTotal.WithLabelValues(method, result).Inc()
}

// ObserveResolution records a collection resolution outcome
// (cached, matched, fallback, miss).
func ObserveResolution(outcome string) {
	collectionResolutions.WithLabelValues(outcome).Inc()
}

// SetCircuitState exposes the secondary store breaker state as a gauge.
func SetCircuitState(state int) {
	docstoreCircuitState.Set(float64(state))
}
