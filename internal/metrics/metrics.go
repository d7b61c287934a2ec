// Package metrics holds the Prometheus instrumentation for the API and the
// Recorder contract services use to report domain events.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Recorder receives domain events. Implementations must not block or fail the
// caller.
type Recorder interface {
	OrderPlaced(ctx context.Context, method string)
	PaymentVerified(ctx context.Context, outcome string)
	StatusChanged(ctx context.Context, status string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) OrderPlaced(context.Context, string)     {}
func (Nop) PaymentVerified(context.Context, string) {}
func (Nop) StatusChanged(context.Context, string)   {}

// Prometheus is the API's registry plus its collectors.
type Prometheus struct {
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	inFlight        prometheus.Gauge
	ordersPlaced    *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

// NewPrometheus registers the runtime, HTTP and domain collectors on a fresh
// registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		Registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders placed, by payment method.",
		}, []string{"payment_method"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "verifications_total",
			Help:      "Gateway payment verifications, by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "status_transitions_total",
			Help:      "Order status transitions, by target status.",
		}, []string{"status"}),
	}

	p.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.requestDuration,
		p.requestTotal,
		p.inFlight,
		p.ordersPlaced,
		p.verifications,
		p.transitions,
	)
	return p
}

func (p *Prometheus) OrderPlaced(_ context.Context, method string) {
	p.ordersPlaced.WithLabelValues(method).Inc()
}

func (p *Prometheus) PaymentVerified(_ context.Context, outcome string) {
	p.verifications.WithLabelValues(outcome).Inc()
}

func (p *Prometheus) StatusChanged(_ context.Context, status string) {
	p.transitions.WithLabelValues(status).Inc()
}

// Middleware records duration, count and in-flight requests. Routes are
// labelled by their registered pattern to keep cardinality bounded.
func (p *Prometheus) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		p.inFlight.Inc()
		defer p.inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		p.requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		p.requestTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}

// Handler exposes the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
