// Package metrics exposes Prometheus counters for the pre-order workflow.
package metrics

import (
	"context"
	"net/http"
	"time"

	"ms-preorder/internal/events"
	"ms-preorder/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for resume attempts.
const (
	ResumeOK         = "ok"
	ResumeNotFound   = "not_found"
	ResumeCloneError = "clone_error"
	ResumeSetupError = "session_error"
)

type Metrics struct {
	Registry *prometheus.Registry

	PreOrdersCreated *prometheus.CounterVec
	Resumes          *prometheus.CounterVec
	CartsSaved       prometheus.Counter
	ResumeDuration   prometheus.Histogram
	HTTPRequests     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PreOrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preorder",
			Name:      "created_total",
			Help:      "Pre-orders created, by origin.",
		}, []string{"origin"}),
		Resumes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preorder",
			Name:      "resumes_total",
			Help:      "Resume attempts, by outcome.",
		}, []string{"outcome"}),
		CartsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "preorder",
			Name:      "carts_saved_total",
			Help:      "Carts installed into a session.",
		}),
		ResumeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "preorder",
			Name:      "resume_duration_seconds",
			Help:      "Time spent resolving, cloning and installing a quote.",
			Buckets:   prometheus.DefBuckets,
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "preorder",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route and status class.",
		}, []string{"route", "status"}),
	}
	m.Registry.MustRegister(
		m.PreOrdersCreated, m.Resumes, m.CartsSaved, m.ResumeDuration, m.HTTPRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveResume records one resume attempt.
func (m *Metrics) ObserveResume(outcome string, started time.Time) {
	m.Resumes.WithLabelValues(outcome).Inc()
	m.ResumeDuration.Observe(time.Since(started).Seconds())
}

// OnEvent is subscribed to the event bus.
func (m *Metrics) OnEvent(_ context.Context, e events.Event) error {
	switch ev := e.(type) {
	case events.PreOrderCreated:
		origin := "admin"
		if ev.Admin == models.AdminGuestAPI {
			origin = "guest"
		}
		m.PreOrdersCreated.WithLabelValues(origin).Inc()
	case events.CartSaved:
		m.CartsSaved.Inc()
	}
	return nil
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(route func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.HTTPRequests.WithLabelValues(route(r), statusClass(sw.status)).Inc()
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
