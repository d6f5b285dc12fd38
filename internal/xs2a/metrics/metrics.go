// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ScaTransitions  *prometheus.CounterVec
	SpiCallDuration *prometheus.HistogramVec
	ExpiredObjects  *prometheus.CounterVec

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. Tests pass a
// fresh prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ScaTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xs2a_sca_transitions_total",
			Help: "Authorisation stage results by authorisation type, source and target SCA status.",
		}, []string{"type", "from", "to"}),

		SpiCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xs2a_spi_call_duration_seconds",
			Help:    "Latency of calls into the bank backend.",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),

		ExpiredObjects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xs2a_expired_objects_total",
			Help: "Business objects force-rejected because they were not confirmed in time.",
		}, []string{"type"}),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		gatherer: reg,
	}

	reg.MustRegister(
		m.ScaTransitions, m.SpiCallDuration, m.ExpiredObjects,
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
	)
	return m
}

// ObserveTransition counts one stage result.
func (m *Metrics) ObserveTransition(authType, from, to string) {
	if m == nil {
		return
	}
	m.ScaTransitions.WithLabelValues(authType, from, to).Inc()
}

// TimeSpiCall returns a func that records the call duration when invoked.
func (m *Metrics) TimeSpiCall(call string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.SpiCallDuration.WithLabelValues(call).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ObserveExpired(objectType string) {
	if m == nil {
		return
	}
	m.ExpiredObjects.WithLabelValues(objectType).Inc()
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument records RPS, latency and in-flight requests. The route label
// is the matched ServeMux pattern so ids do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
