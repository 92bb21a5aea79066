// Package metrics exposes prometheus metrics about the HTTP API and the
// requisition workflow.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "lmis"

// Collector is a prometheus.Collector of the server's metrics.
type Collector struct {
	transitions     *prometheus.CounterVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requisition_transitions_total",
				Help:      "The number of requisition status transitions.",
			}, []string{"action"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "The number of handled HTTP requests.",
			}, []string{"method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "The time taken to handle HTTP requests.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			}, []string{"method"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.requests.Describe(ch)
	c.requestDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.requests.Collect(ch)
	c.requestDuration.Collect(ch)
}

// RecordTransition counts a completed requisition status transition.
func (c *Collector) RecordTransition(action string) {
	c.transitions.WithLabelValues(action).Inc()
}

// Middleware counts every request by method and response status. It must
// be installed after the error handling middleware so the status is final.
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		status := ctx.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}

		method := ctx.Method()
		c.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
		c.requestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		return err
	}
}

// NewRegistry returns a registry holding the collector together with the
// go runtime and process collectors.
func NewRegistry(c *Collector) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	for _, collector := range []prometheus.Collector{
		c,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := registry.Register(collector); err != nil {
			return nil, errors.Annotate(err, "registering collector")
		}
	}
	return registry, nil
}

// Handler serves the registry in the prometheus exposition format.
func Handler(registry *prometheus.Registry) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
