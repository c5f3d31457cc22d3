package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invoice"

// Metrics holds the Prometheus collectors for the API. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Auth outcomes by event (login, register, refresh, logout) and result.
	AuthEvents *prometheus.CounterVec
	// Bearer tokens rejected by the verifier, by error code.
	AuthRejections *prometheus.CounterVec

	PDFRenders        *prometheus.CounterVec
	PDFRenderDuration prometheus.Histogram

	gatherer prometheus.Gatherer
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route pattern and status code",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by method and route pattern",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_events_total",
				Help:      "Authentication operations by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		AuthRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_rejections_total",
				Help:      "Requests refused by the bearer token verifier",
			},
			[]string{"code"},
		),
		PDFRenders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pdf_renders_total",
				Help:      "Invoice PDF renders by outcome",
			},
			[]string{"outcome"},
		),
		PDFRenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pdf_render_duration_seconds",
				Help:      "Time spent in the headless browser per invoice",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		gatherer: registry,
	}
}

// NewRegistry returns a fresh registry carrying the Go and process
// collectors plus the API metrics.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, NewMetrics(reg)
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) AuthEvent(event string, err error) {
	if m == nil {
		return
	}
	m.AuthEvents.WithLabelValues(event, outcome(err)).Inc()
}

func (m *Metrics) AuthRejected(code string) {
	if m == nil {
		return
	}
	m.AuthRejections.WithLabelValues(code).Inc()
}

func (m *Metrics) PDFRendered(took time.Duration, err error) {
	if m == nil {
		return
	}
	m.PDFRenders.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		m.PDFRenderDuration.Observe(took.Seconds())
	}
}

// Middleware records every request under its chi route pattern so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
