package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the player bridge.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   prometheus.Counter
	errorsTotal     prometheus.Counter
	activePlayers   prometheus.Gauge
	eventsDelivered *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	thumbnailsTotal *prometheus.CounterVec
}

// New creates and registers Prometheus metrics for the bridge.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playerbridge_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playerbridge_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	activePlayers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playerbridge_active_players",
		Help: "Number of player sessions currently registered",
	})
	eventsDelivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playerbridge_events_delivered_total",
		Help: "Events handed to an attached subscriber",
	}, []string{"stream"})
	eventsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playerbridge_events_dropped_total",
		Help: "Events discarded because no subscriber was attached",
	}, []string{"stream"})
	thumbnailsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playerbridge_thumbnails_total",
		Help: "Thumbnail requests by result",
	}, []string{"result"})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		activePlayers,
		eventsDelivered,
		eventsDropped,
		thumbnailsTotal,
	)

	return &Metrics{
		registry:        registry,
		requestsTotal:   requestsTotal,
		errorsTotal:     errorsTotal,
		activePlayers:   activePlayers,
		eventsDelivered: eventsDelivered,
		eventsDropped:   eventsDropped,
		thumbnailsTotal: thumbnailsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetActivePlayers sets the active players gauge.
func (m *Metrics) SetActivePlayers(n int) {
	m.activePlayers.Set(float64(n))
}

// EventDelivered counts one event pushed to a subscriber of stream.
func (m *Metrics) EventDelivered(stream string) {
	m.eventsDelivered.WithLabelValues(stream).Inc()
}

// EventDropped counts one event discarded on stream.
func (m *Metrics) EventDropped(stream string) {
	m.eventsDropped.WithLabelValues(stream).Inc()
}

// Thumbnail counts a finished thumbnail request; result is "ok", "invalid" or "failed".
func (m *Metrics) Thumbnail(result string) {
	m.thumbnailsTotal.WithLabelValues(result).Inc()
}

// Gatherer exposes the underlying registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active players).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
