// Package telemetry exposes prometheus metrics for the HTTP surface.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	IngestTotal     *prometheus.CounterVec
	ChatTotal       *prometheus.CounterVec
	BookingAttempts *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		IngestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docassist",
			Name:      "ingest_total",
			Help:      "Ingestion requests by outcome.",
		}, []string{"outcome"}),
		ChatTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docassist",
			Name:      "chat_total",
			Help:      "Chat turns by outcome.",
		}, []string{"outcome"}),
		BookingAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docassist",
			Name:      "booking_attempts_total",
			Help:      "Interview booking attempts by outcome.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docassist",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(
		m.IngestTotal,
		m.ChatTotal,
		m.BookingAttempts,
		m.RequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the /metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
