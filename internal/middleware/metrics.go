package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

const namespace = "scanlog"

// Metrics stores application metrics
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec // labels: method, route, status
	RequestDuration    *prometheus.HistogramVec
	RequestsInProgress prometheus.Gauge

	ScansTotal    *prometheus.CounterVec // labels: status, result
	ScansRejected *prometheus.CounterVec // labels: reason
	MeterReadTime prometheus.Histogram
	PushClients   prometheus.GaugeFunc
}

// NewMetrics registers every collector on its own registry so several
// servers (and tests) can live in one process.
func NewMetrics(pushClients func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	if pushClients == nil {
		pushClients = func() float64 { return 0 }
	}

	return &Metrics{
		registry: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsInProgress: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_progress",
			Help:      "Requests currently being served",
		}),
		ScansTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans recorded, by status and result",
		}, []string{"status", "result"}),
		ScansRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_rejected_total",
			Help:      "Scans refused before being recorded",
		}, []string{"reason"}),
		MeterReadTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "meter_read_seconds",
			Help:      "Time spent reading the RS485 meters",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5},
		}),
		PushClients: f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "push_clients",
			Help:      "Stations connected to the push feed",
		}, pushClients),
	}
}

// ObserveScan counts a recorded scan.
func (m *Metrics) ObserveScan(s *domain.Scan) {
	m.ScansTotal.WithLabelValues(string(s.Status), s.Result).Inc()
}

// ObserveRejected counts a refused scan.
func (m *Metrics) ObserveRejected(reason string) {
	m.ScansRejected.WithLabelValues(reason).Inc()
}

// ObserveMeterRead records how long a meter read took.
func (m *Metrics) ObserveMeterRead(d time.Duration) {
	m.MeterReadTime.Observe(d.Seconds())
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInProgress.Inc()
		defer m.RequestsInProgress.Dec()

		start := time.Now()
		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
