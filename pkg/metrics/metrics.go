package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wbsimple",
		Name:      "http_requests_total",
		Help:      "HTTP requests processed, partitioned by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wbsimple",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	dbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wbsimple",
		Name:      "db_query_duration_seconds",
		Help:      "Database query latency by operation and table.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation", "table"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wbsimple",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by resource and result.",
	}, []string{"resource", "result"})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wbsimple",
		Name:      "auth_events_total",
		Help:      "Authentication outcomes by kind.",
	}, []string{"kind", "outcome"})

	videoTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wbsimple",
		Name:      "video_tokens_total",
		Help:      "Signed video URLs issued and verified.",
	}, []string{"action", "outcome"})
)

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordDBQuery observes a database query duration.
func RecordDBQuery(operation, table string, elapsed time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
}

// RecordCacheLookup counts a cache hit or miss for resource.
func RecordCacheLookup(resource string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(resource, result).Inc()
}

// RecordAuth counts an authentication outcome such as ("telegram", "success").
func RecordAuth(kind, outcome string) {
	authEvents.WithLabelValues(kind, outcome).Inc()
}

// RecordVideoToken counts a signed URL issue or verification outcome.
func RecordVideoToken(action, outcome string) {
	videoTokens.WithLabelValues(action, outcome).Inc()
}
