package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolSnapshot is the subset of pgxpool.Stat the collector exports.
type poolSnapshot struct {
	acquired, idle, total, max, constructing int32
	acquireCount, canceled, empty, newConns  int64
	lifetimeDestroyed, idleDestroyed         int64
	acquireSeconds                           float64
}

func snapshotOf(pool *pgxpool.Pool) func() (poolSnapshot, bool) {
	return func() (poolSnapshot, bool) {
		if pool == nil {
			return poolSnapshot{}, false
		}
		s := pool.Stat()
		return poolSnapshot{
			acquired:          s.AcquiredConns(),
			idle:              s.IdleConns(),
			total:             s.TotalConns(),
			max:               s.MaxConns(),
			constructing:      s.ConstructingConns(),
			acquireCount:      s.AcquireCount(),
			canceled:          s.CanceledAcquireCount(),
			empty:             s.EmptyAcquireCount(),
			newConns:          s.NewConnsCount(),
			lifetimeDestroyed: s.MaxLifetimeDestroyCount(),
			idleDestroyed:     s.MaxIdleDestroyCount(),
			acquireSeconds:    s.AcquireDuration().Seconds(),
		}, true
	}
}

type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(poolSnapshot) float64
}

// PoolStatsCollector implements prometheus.Collector for pgxpool connection
// metrics. Every series carries a constant service label.
type PoolStatsCollector struct {
	service  string
	snapshot func() (poolSnapshot, bool)
	metrics  []poolMetric
}

// NewPoolStatsCollector creates a collector for pool. A nil pool yields a
// collector that describes its metrics but collects nothing.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	return newPoolStatsCollector(snapshotOf(pool), service)
}

func newPoolStatsCollector(snapshot func() (poolSnapshot, bool), service string) *PoolStatsCollector {
	labels := prometheus.Labels{"service": service}
	gauge := func(name, help string, v func(poolSnapshot) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, nil, labels), prometheus.GaugeValue, v}
	}
	counter := func(name, help string, v func(poolSnapshot) float64) poolMetric {
		return poolMetric{prometheus.NewDesc(name, help, nil, labels), prometheus.CounterValue, v}
	}

	return &PoolStatsCollector{
		service:  service,
		snapshot: snapshot,
		metrics: []poolMetric{
			gauge("db_pool_acquired_connections", "Number of currently acquired connections",
				func(s poolSnapshot) float64 { return float64(s.acquired) }),
			gauge("db_pool_idle_connections", "Number of currently idle connections",
				func(s poolSnapshot) float64 { return float64(s.idle) }),
			gauge("db_pool_total_connections", "Total number of connections in the pool",
				func(s poolSnapshot) float64 { return float64(s.total) }),
			gauge("db_pool_max_connections", "Maximum number of connections allowed",
				func(s poolSnapshot) float64 { return float64(s.max) }),
			gauge("db_pool_constructing_connections", "Number of connections currently being constructed",
				func(s poolSnapshot) float64 { return float64(s.constructing) }),
			counter("db_pool_acquire_count_total", "Total number of connection acquires",
				func(s poolSnapshot) float64 { return float64(s.acquireCount) }),
			counter("db_pool_acquire_duration_seconds_total", "Total time spent acquiring connections in seconds",
				func(s poolSnapshot) float64 { return s.acquireSeconds }),
			counter("db_pool_canceled_acquire_count_total", "Total number of canceled connection acquires",
				func(s poolSnapshot) float64 { return float64(s.canceled) }),
			counter("db_pool_empty_acquire_count_total", "Total number of acquires that had to wait for a connection",
				func(s poolSnapshot) float64 { return float64(s.empty) }),
			counter("db_pool_new_connections_total", "Total number of new connections created",
				func(s poolSnapshot) float64 { return float64(s.newConns) }),
			counter("db_pool_max_lifetime_destroy_total", "Total connections destroyed due to max lifetime",
				func(s poolSnapshot) float64 { return float64(s.lifetimeDestroyed) }),
			counter("db_pool_max_idle_destroy_total", "Total connections destroyed due to max idle time",
				func(s poolSnapshot) float64 { return float64(s.idleDestroyed) }),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	snap, ok := c.snapshot()
	if !ok {
		return
	}
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(snap))
	}
}

// RegisterPoolMetrics registers a collector for pool with reg. Registering
// the same service twice is not an error.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	err := reg.Register(NewPoolStatsCollector(pool, service))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
