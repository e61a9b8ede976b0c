package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Abdurahmanit/GroupProject/annonce-service/internal/platform/logger"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	listingsCreated  prometheus.Counter
	transitions      *prometheus.CounterVec
	uploads          *prometheus.CounterVec
	orphansCollected prometheus.Counter
	requestLatency   *prometheus.HistogramVec
	requestErrors    *prometheus.CounterVec
}

func New(serviceName string) *Metrics {
	ns := strings.ReplaceAll(serviceName, "-", "_")
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		listingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listings_created_total",
			Help:      "Total number of listings created.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "listing_transitions_total",
			Help:      "Lifecycle transitions applied, by kind.",
		}, []string{"kind"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "image_uploads_total",
			Help:      "Per-file upload outcomes.",
		}, []string{"status"}),
		orphansCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "orphan_images_collected_total",
			Help:      "Image records deleted after their last link was removed.",
		}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_errors_total",
			Help:      "HTTP error responses by route and class.",
		}, []string{"route", "class"}),
	}

	registry.MustRegister(
		m.listingsCreated,
		m.transitions,
		m.uploads,
		m.orphansCollected,
		m.requestLatency,
		m.requestErrors,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ListingCreated() {
	if m == nil {
		return
	}
	m.listingsCreated.Inc()
}

func (m *Metrics) Transition(kind string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) Upload(status string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(status).Inc()
}

func (m *Metrics) OrphanCollected() {
	if m == nil {
		return
	}
	m.orphansCollected.Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func (m *Metrics) RequestError(route, class string) {
	if m == nil {
		return
	}
	m.requestErrors.WithLabelValues(route, class).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// NewServer builds the /metrics server. It returns nil when no port is set.
func NewServer(port string, m *Metrics, log *logger.Logger) *http.Server {
	if port == "" || m == nil {
		log.Info("Prometheus metrics server port not configured, server will not start")
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	log.Info("Prometheus metrics server configured", "port", port, "path", "/metrics")
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
