package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "uglies"

// Metrics holds the HTTP and checkout collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	Checkouts        *prometheus.CounterVec
	CheckoutFailures *prometheus.CounterVec
	OrderValue       prometheus.Histogram
	TargetsReached   prometheus.Counter
}

// New registers all collectors on registry. Pass prometheus.NewRegistry() in
// tests to keep them isolated.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "orders_total",
			Help:      "Orders created from carts.",
		}, []string{"kind"}),
		CheckoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "failures_total",
			Help:      "Checkouts rejected or aborted, by reason.",
		}, []string{"reason"}),
		OrderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "order_value",
			Help:      "Order totals.",
			Buckets:   []float64{5, 10, 20, 50, 100, 200, 500},
		}),
		TargetsReached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "campaigns",
			Name:      "targets_reached_total",
			Help:      "Campaigns that crossed their target amount.",
		}),
	}
	registry.MustRegister(m.Requests, m.LatencyMS, m.Checkouts, m.CheckoutFailures, m.OrderValue, m.TargetsReached)
	return m
}

func (m *Metrics) CheckoutSucceeded(amount float64, grouped bool) {
	kind := "individual"
	if grouped {
		kind = "campaign"
	}
	m.Checkouts.WithLabelValues(kind).Inc()
	m.OrderValue.Observe(amount)
}

func (m *Metrics) CheckoutFailed(reason string) {
	m.CheckoutFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) CampaignTargetReached() {
	m.TargetsReached.Inc()
}

// Middleware records one request count and latency sample per request,
// labelled by the matched route pattern.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
