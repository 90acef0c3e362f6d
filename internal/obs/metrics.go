package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
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
)

// Session and company domain metrics.
var (
	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Login attempts by method (password, google) and result.",
		},
		[]string{"method", "result"},
	)

	bootstrapsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_bootstraps_total",
			Help: "Session restore attempts from a persisted token, by result.",
		},
		[]string{"result"},
	)

	userUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_user_updates_total",
			Help: "Profile field updates, by result.",
		},
		[]string{"result"},
	)

	companyOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "company_ops_total",
			Help: "Company snapshot operations, by operation and result.",
		},
		[]string{"op", "result"},
	)

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gateway_active_sessions",
		Help: "Live sessions held by the gateway registry.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		loginsTotal, bootstrapsTotal, userUpdatesTotal, companyOpsTotal,
		activeSessions,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveLogin counts one login attempt.
func ObserveLogin(method, result string) { loginsTotal.WithLabelValues(method, result).Inc() }

// ObserveBootstrap counts one session restore attempt.
func ObserveBootstrap(result string) { bootstrapsTotal.WithLabelValues(result).Inc() }

// ObserveUserUpdate counts one profile update.
func ObserveUserUpdate(result string) { userUpdatesTotal.WithLabelValues(result).Inc() }

// ObserveCompanyOp counts one snapshot cache operation.
func ObserveCompanyOp(op, result string) { companyOpsTotal.WithLabelValues(op, result).Inc() }

// SetActiveSessions reports the registry size.
func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

// CanonicalPath collapses identifier segments so metric labels stay low
// cardinality. Only paths the gateway actually routes are rewritten.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	const invitePrefix = "/v1/companies/invite/"
	if strings.HasPrefix(path, invitePrefix) && !strings.Contains(path[len(invitePrefix):], "/") {
		return invitePrefix + ":code"
	}
	return path
}

// Instrument wraps a handler with RPS, latency and in-flight accounting.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
