package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	serviceReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the last readiness probe succeeded.",
	})
)

// Метрики ядра аутентификации и фоновых задач
var (
	sideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "side_effects_total",
			Help: "Detached side-effect tasks by task name and outcome.",
		},
		[]string{"task", "outcome"},
	)

	sideEffectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "side_effect_duration_seconds",
			Help:    "Detached side-effect latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	cacheEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_events_total",
			Help: "Cache region hits, misses and invalidations.",
		},
		[]string{"region", "event"},
	)

	tokenFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_validation_failures_total",
			Help: "Rejected session tokens by reason.",
		},
		[]string{"reason"},
	)

	roleCreationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "role_cache_creations_total",
			Help: "Roles created by the role cache slow path.",
		},
		[]string{"role"},
	)

	auditRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_total",
			Help: "Audit records by action and persistence outcome.",
		},
		[]string{"action", "outcome"},
	)
)

var registerOnce sync.Once

// Init registers all collectors in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration, serviceReady,
			sideEffectsTotal, sideEffectDuration, cacheEventsTotal,
			tokenFailuresTotal, roleCreationsTotal, auditRecordsTotal,
		)
	})
}

// Хэндлер Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady records the outcome of the last readiness check.
func SetReady(ok bool) {
	if ok {
		serviceReady.Set(1)
		return
	}
	serviceReady.Set(0)
}

// ObserveSideEffect records a detached task outcome: ok, error, timeout, panic or dropped.
func ObserveSideEffect(task, outcome string, d time.Duration) {
	sideEffectsTotal.WithLabelValues(task, outcome).Inc()
	if d > 0 {
		sideEffectDuration.WithLabelValues(task).Observe(d.Seconds())
	}
}

// ObserveCache records a cache event for region: hit, miss, evict or purge.
func ObserveCache(region, event string) {
	cacheEventsTotal.WithLabelValues(region, event).Inc()
}

// ObserveTokenFailure counts a rejected token.
func ObserveTokenFailure(reason string) {
	tokenFailuresTotal.WithLabelValues(reason).Inc()
}

// ObserveRoleCreation counts a role created on first use.
func ObserveRoleCreation(role string) {
	roleCreationsTotal.WithLabelValues(role).Inc()
}

// ObserveAudit counts a persisted or failed audit record.
func ObserveAudit(action, outcome string) {
	auditRecordsTotal.WithLabelValues(action, outcome).Inc()
}

// Обёртка для измерения RPS/latency/в полёте.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)
		path := routeLabel(r)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// routeLabel prefers the matched chi pattern and falls back to CanonicalPath.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return CanonicalPath(r.URL.Path)
}

// CanonicalPath collapses identifier segments so label cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if looksLikeID(p) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func looksLikeID(seg string) bool {
	switch len(seg) {
	case 26: // ULID
		for _, c := range seg {
			if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z') {
				return false
			}
		}
		return true
	case 36: // UUID
		return strings.Count(seg, "-") == 4
	}
	if seg == "" {
		return false
	}
	for _, c := range seg {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// statusWriter: локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
