// Package metrics exposes Prometheus metrics for the HTTP server and the
// note domain.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tenantnote"

// Metrics holds every collector the service reports. Each instance owns its
// registry, so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	notesCreated    *prometheus.CounterVec
	limitRejections *prometheus.CounterVec
	tenantUpgrades  *prometheus.CounterVec
	logins          *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		notesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_created_total",
			Help:      "Notes created, by tenant.",
		}, []string{"tenant"}),
		limitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "note_limit_rejections_total",
			Help:      "Note creations refused by the free-plan cap, by tenant.",
		}, []string{"tenant"}),
		tenantUpgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tenant_upgrades_total",
			Help:      "Successful plan upgrade calls, by tenant.",
		}, []string{"tenant"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.notesCreated,
		m.limitRejections,
		m.tenantUpgrades,
		m.logins,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Observe records one finished request. Its signature matches
// hlog.AccessHandler so it can be installed as router middleware, where the
// matched route template is available.
func (m *Metrics) Observe(r *http.Request, status, size int, duration time.Duration) {
	route := "unmatched"
	if cur := mux.CurrentRoute(r); cur != nil {
		if tpl, err := cur.GetPathTemplate(); err == nil {
			route = tpl
		}
	}
	m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route, r.Method).Observe(duration.Seconds())
}

func (m *Metrics) NoteCreated(tenantSlug string) {
	m.notesCreated.WithLabelValues(tenantSlug).Inc()
}

func (m *Metrics) NoteLimitRejected(tenantSlug string) {
	m.limitRejections.WithLabelValues(tenantSlug).Inc()
}

func (m *Metrics) TenantUpgraded(tenantSlug string) {
	m.tenantUpgrades.WithLabelValues(tenantSlug).Inc()
}

func (m *Metrics) LoginAttempt(result string) {
	m.logins.WithLabelValues(result).Inc()
}
