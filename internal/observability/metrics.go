// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// VotesTotal counts vote ledger outcomes by target kind and action.
	VotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_votes_total",
		Help: "Vote ledger outcomes by target kind and action",
	}, []string{"kind", "action"})

	// VoteRetries counts optimistic vote retries caused by concurrent writers.
	VoteRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_vote_retries_total",
		Help: "Vote casts retried after losing a concurrent write",
	}, []string{"kind"})

	// FeedDiscoveryPosts counts posts appended to feeds from discovery communities.
	FeedDiscoveryPosts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agora_feed_discovery_posts_total",
		Help: "Posts appended to personalized feeds from discovery communities",
	})

	// CacheLookups counts cache-aside lookups by result (hit, miss, error, bypass).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_cache_lookups_total",
		Help: "Cache-aside lookups by result",
	}, []string{"result"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

const queryStartKey = "observability:query_start"

// DatabaseMetrics records query latency through GORM callbacks.
type DatabaseMetrics struct{}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics() *DatabaseMetrics {
	return &DatabaseMetrics{}
}

// Name implements gorm.Plugin.
func (*DatabaseMetrics) Name() string {
	return "agora:query-metrics"
}

// Initialize implements gorm.Plugin by wrapping every callback chain.
func (m *DatabaseMetrics) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	chains := []struct {
		op     string
		before func(string, func(*gorm.DB)) error
		after  func(string, func(*gorm.DB)) error
	}{
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
		{"row", cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
	}

	for _, c := range chains {
		op := c.op
		if err := c.before("metrics:before_"+op, m.start); err != nil {
			return err
		}
		if err := c.after("metrics:after_"+op, func(tx *gorm.DB) { m.observe(tx, op) }); err != nil {
			return err
		}
	}
	return nil
}

func (*DatabaseMetrics) start(tx *gorm.DB) {
	tx.InstanceSet(queryStartKey, time.Now())
}

func (*DatabaseMetrics) observe(tx *gorm.DB, operation string) {
	v, ok := tx.InstanceGet(queryStartKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}
	table := tx.Statement.Table
	if table == "" {
		table = "unknown"
	}
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
