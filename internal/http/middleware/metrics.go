package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// unmatchedPath is the path label for requests that hit no route. Raw URLs
// never become label values.
const unmatchedPath = "unmatched"

// httpMetrics holds the HTTP collectors. Labels are method, the Gin route
// template and, for the request counter only, the status code.
type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
	resBytes *prometheus.HistogramVec
	reqBytes *prometheus.HistogramVec
	replays  *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	f := promauto.With(reg)
	route := []string{"method", "path"}
	return &httpMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		// generation requests wait on the model, hence the long tail
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, route),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served.",
		}),
		resBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, route),
		reqBytes: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "Declared HTTP request body size in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10),
		}, route),
		replays: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_idempotent_replays_total",
			Help: "Responses answered from a stored Idempotency-Key result.",
		}, []string{"path"}),
	}
}

var defaultHTTPMetrics = newHTTPMetrics(prometheus.DefaultRegisterer)

// Metrics records request count, latency, in-flight requests, body sizes and
// idempotent replays on the default Prometheus registry. Serve them with
// promhttp.Handler().
func Metrics() gin.HandlerFunc {
	return defaultHTTPMetrics.handler()
}

func (m *httpMetrics) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method

		m.requests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			m.resBytes.WithLabelValues(method, path).Observe(float64(n))
		}
		if n := c.Request.ContentLength; n > 0 {
			m.reqBytes.WithLabelValues(method, path).Observe(float64(n))
		}
		if c.Writer.Header().Get(HeaderIdempotentReplay) != "" {
			m.replays.WithLabelValues(path).Inc()
		}
	}
}
