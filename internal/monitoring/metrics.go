package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RemoteRequestsTotal *prometheus.CounterVec
	RemoteRetriesTotal  prometheus.Counter
	ListPagesTotal      *prometheus.CounterVec
	DetailsTotal        *prometheus.CounterVec
	DetailDuration      prometheus.Histogram
	DetailsInFlight     prometheus.Gauge
	ErrorsTotal         *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the metric set on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RemoteRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxd_remote_requests_total",
			Help: "Requests sent to the catalog, by outcome.",
		}, []string{"outcome"}), // ok, status, transport_error
		RemoteRetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "boxd_remote_retries_total",
			Help: "Retries issued against the catalog after transient failures.",
		}),
		ListPagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxd_list_pages_total",
			Help: "Listing pages processed, by result.",
		}, []string{"result"}),
		DetailsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxd_details_total",
			Help: "Detail fetches completed, by status.",
		}, []string{"status"}), // ok, failed, cached
		DetailDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "boxd_detail_duration_seconds",
			Help:    "Duration of a single detail fetch including auxiliary endpoints.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		DetailsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "boxd_details_in_flight",
			Help: "Detail fetches currently running.",
		}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "boxd_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g., 'crawl_failed', 'store_failed'
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncRemoteRequest(outcome string) {
	if m == nil {
		return
	}
	m.RemoteRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRetry() {
	if m == nil {
		return
	}
	m.RemoteRetriesTotal.Inc()
}

func (m *Metrics) IncListPage(result string) {
	if m == nil {
		return
	}
	m.ListPagesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDetail(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.DetailsTotal.WithLabelValues(status).Inc()
	if status != "cached" {
		m.DetailDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) DetailStarted() {
	if m == nil {
		return
	}
	m.DetailsInFlight.Inc()
}

func (m *Metrics) DetailFinished() {
	if m == nil {
		return
	}
	m.DetailsInFlight.Dec()
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}
