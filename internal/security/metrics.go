package security

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// StoreLatency can be used by store implementations to record operation latency.
	StoreLatency *prometheus.HistogramVec

	// CacheLookupsTotal counts handle cache lookups by cache and result.
	CacheLookupsTotal *prometheus.CounterVec

	// MessagesPostedTotal counts messages appended to any ledger.
	MessagesPostedTotal prometheus.Counter

	// TxRetriesTotal counts transactions re-run after a write conflict, by store.
	TxRetriesTotal *prometheus.CounterVec

	// registerer carries the constant labels; nil until InitMetrics runs.
	registerer prometheus.Registerer
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseMetricsLabels parses a comma-separated list of key=value pairs into
// Prometheus labels. Values support ${VAR} / $VAR environment variable expansion.
// Label values may not contain commas. Returns nil for an empty string.
func ParseMetricsLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initMetricsOnce sync.Once

// InitMetrics registers all Prometheus metrics with the given constant labels.
// Must be called before starting the HTTP server or any store/cache initialization
// that records metrics. Safe to call multiple times; only the first call registers.
func InitMetrics(constLabels prometheus.Labels) {
	initMetricsOnce.Do(func() {
		initMetricsInner(constLabels)
	})
}

func initMetricsInner(constLabels prometheus.Labels) {
	registerer = prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
	f := promauto.With(registerer)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Name: "askbox_" + name, Help: help})
	}
	histogram := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "askbox_" + name,
			Help:    help,
			Buckets: prometheus.DefBuckets,
		}, labels)
	}

	httpRequestsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_requests_total",
		Help: "HTTP requests by method, route and status",
	}, []string{"method", "route", "status"})
	httpRequestDuration = histogram("request_duration_seconds", "HTTP request duration in seconds", "method", "route")
	StoreLatency = histogram("store_latency_seconds", "Store operation latency in seconds", "operation")

	CacheLookupsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_cache_lookups_total",
		Help: "Handle cache lookups by cache and result (hit|miss)",
	}, []string{"cache", "result"})
	MessagesPostedTotal = counter("messages_posted_total", "Messages appended to any ledger")

	TxRetriesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "askbox_store_tx_retries_total",
		Help: "Transactions retried after a write conflict",
	}, []string{"store"})
}

// RecordCacheLookup counts one lookup against the named cache.
func RecordCacheLookup(cache string, hit bool) {
	if CacheLookupsTotal == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(cache, result).Inc()
}

// RegisterDBStats exports the connection pool statistics of db, labelled
// with dbName. Exporting the same name twice keeps the first pool.
func RegisterDBStats(db *sql.DB, dbName string) {
	if registerer == nil {
		return
	}
	err := registerer.Register(collectors.NewDBStatsCollector(db, dbName))
	var dup prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &dup) {
		log.Warn("Failed to register pool metrics", "db", dbName, "err", err)
	}
}

// MetricsMiddleware counts requests and observes their latency. Requests
// that match no route share the "unmatched" route label.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpRequestsTotal == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
