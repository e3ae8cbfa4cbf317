package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "availmgr"

// Metrics holds the Prometheus collectors for a service. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter      *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	BookingsConfirmed   prometheus.Counter
	BookingsRejected    *prometheus.CounterVec
	ConflictsDetected   prometheus.Counter
	AvailabilityLatency prometheus.Histogram
	OutboxPublished     *prometheus.CounterVec
}

func New(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem(serviceName),
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem(serviceName),
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		BookingsConfirmed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem(serviceName),
			Name:      "bookings_confirmed_total",
			Help:      "Public bookings accepted",
		}),
		BookingsRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem(serviceName),
				Name:      "bookings_rejected_total",
				Help:      "Public bookings rejected, by reason",
			},
			[]string{"reason"},
		),
		ConflictsDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem(serviceName),
			Name:      "conflicts_detected_total",
			Help:      "Conflict alerts created by full detection passes",
		}),
		AvailabilityLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem(serviceName),
			Name:      "availability_compute_seconds",
			Help:      "Time spent computing availability for a batch of dates",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		OutboxPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem(serviceName),
				Name:      "outbox_published_total",
				Help:      "Outbox rows shipped to Kafka, by result",
			},
			[]string{"result"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAvailability records the duration since start. Safe on a nil receiver.
func (m *Metrics) ObserveAvailability(start time.Time) {
	if m == nil {
		return
	}
	m.AvailabilityLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) BookingConfirmed() {
	if m == nil {
		return
	}
	m.BookingsConfirmed.Inc()
}

func (m *Metrics) BookingRejected(reason string) {
	if m == nil {
		return
	}
	m.BookingsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConflictsFound(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ConflictsDetected.Add(float64(n))
}

func (m *Metrics) OutboxResult(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.OutboxPublished.WithLabelValues(result).Inc()
}

// Middleware counts and times requests, labelled by the matched mux pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.RequestCounter.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func subsystem(serviceName string) string {
	out := make([]rune, 0, len(serviceName))
	for _, r := range serviceName {
		if r == '-' || r == '.' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}
