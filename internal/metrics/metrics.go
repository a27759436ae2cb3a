// Package metrics holds the prometheus collectors for the joke ledger and
// the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is one set of registered collectors. Each Server builds its own
// against its own registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	JokesCreated prometheus.Counter
	JokesDeleted prometheus.Counter
	JokeViews    *prometheus.CounterVec
	JokeRatings  prometheus.Counter

	RequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JokesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jokes_created_total",
			Help: "Jokes created (author credited).",
		}),
		JokesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jokes_deleted_total",
			Help: "Jokes deleted by their author (author debited).",
		}),
		JokeViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "joke_views_total",
			Help: "Joke views; charged=true when the viewer paid for a first view.",
		}, []string{"charged"}),
		JokeRatings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "joke_ratings_total",
			Help: "Ratings submitted.",
		}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method, route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.JokesCreated,
		m.JokesDeleted,
		m.JokeViews,
		m.JokeRatings,
		m.RequestDuration,
	)
	return m
}

// ViewRecorded counts one view.
func (m *Metrics) ViewRecorded(charged bool) {
	m.JokeViews.WithLabelValues(strconv.FormatBool(charged)).Inc()
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves this registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
