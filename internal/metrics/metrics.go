// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateLimitRejections prometheus.Counter
	AuthFailures        *prometheus.CounterVec

	WebsocketClients prometheus.Gauge
	PushSent         *prometheus.CounterVec
	WeatherFetches   *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hearth_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hearth_ratelimit_rejections_total",
			Help: "Requests answered with 429",
		}),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_auth_failures_total",
				Help: "Rejected credentials by kind (session, kiosk)",
			},
			[]string{"kind"},
		),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hearth_websocket_clients",
			Help: "Connected live-update clients",
		}),
		PushSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_push_notifications_total",
				Help: "Web push deliveries by outcome",
			},
			[]string{"outcome"},
		),
		WeatherFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_weather_fetches_total",
				Help: "Weather lookups by source (cache, upstream, error)",
			},
			[]string{"source"},
		),
		registry: reg,
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimitRejections,
		m.AuthFailures,
		m.WebsocketClients,
		m.PushSent,
		m.WeatherFetches,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
