package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

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

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready to serve traffic.",
	})
)

// Init registers the shared metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, readyGauge)
}

// SetReady records the outcome of the most recent readiness check.
func SetReady(ready bool) {
	if ready {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// scopedCollections are resource collections whose second path segment is a
// row id; anything after the id must be a known sub-resource to be folded.
var scopedCollections = map[string][]string{
	"users":         {"role", "deactivate"},
	"leaves":        {"approve", "reject"},
	"expenses":      {"approve", "reject", "reimburse"},
	"tasks":         {"dependencies", "ready", "status"},
	"assets":        {"assign", "unassign", "retire"},
	"onboarding":    {},
	"requests":      {"advance"},
	"announcements": {},
	"meetings":      {},
	"orgs":          {},
}

// literalSegments are collection-level routes that look like ids positionally.
var literalSegments = map[string]bool{
	"balance":  true,
	"overlap":  true,
	"pending":  true,
	"bulk":     true,
	"renewals": true,
}

// CanonicalPath folds row identifiers out of a request path so the metric
// label space stays bounded.
func CanonicalPath(path string) string {
	if path == "" {
		return "/"
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.TrimPrefix(path, "/api")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	// expect v1/<collection>/<id>[/<sub>...]
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	subs, ok := scopedCollections[parts[1]]
	if !ok {
		return path
	}
	// onboarding nests two collections under one prefix
	if parts[1] == "onboarding" {
		if len(parts) < 4 || (parts[2] != "templates" && parts[2] != "runs") {
			return path
		}
		parts[3] = ":id"
		if len(parts) >= 6 && parts[4] == "steps" {
			parts[5] = ":idx"
		}
		return "/" + strings.Join(parts, "/")
	}
	if literalSegments[parts[2]] {
		return path
	}
	if len(parts) == 3 {
		parts[2] = ":id"
	} else {
		known := false
		for _, s := range subs {
			if parts[3] == s {
				known = true
				break
			}
		}
		if !known {
			return path
		}
		parts[2] = ":id"
	}
	out := "/" + strings.Join(parts, "/")
	if strings.HasPrefix(path, "/api") {
		out = "/api" + out
	}
	return out
}

// Instrument wraps a handler with in-flight, RPS and latency metrics.
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
