package db

import (
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is a snapshot of a store's connection pool, common to both drivers.
type PoolStats struct {
	Open         int64         `json:"open"`
	Idle         int64         `json:"idle"`
	InUse        int64         `json:"in_use"`
	Max          int64         `json:"max"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration_ns"`
}

// StatsFunc reads the current pool statistics.
type StatsFunc func() PoolStats

// PGXStats reads statistics from a pgx pool. Acquires that had to wait for a
// connection count as waits.
func PGXStats(pool *pgxpool.Pool) StatsFunc {
	return func() PoolStats {
		s := pool.Stat()
		return PoolStats{
			Open:         int64(s.TotalConns()),
			Idle:         int64(s.IdleConns()),
			InUse:        int64(s.AcquiredConns()),
			Max:          int64(s.MaxConns()),
			WaitCount:    s.EmptyAcquireCount(),
			WaitDuration: s.AcquireDuration(),
		}
	}
}

// SQLStats reads statistics from a database/sql handle such as the sqlite store's.
func SQLStats(conn *sql.DB) StatsFunc {
	return func() PoolStats {
		s := conn.Stats()
		return PoolStats{
			Open:         int64(s.OpenConnections),
			Idle:         int64(s.Idle),
			InUse:        int64(s.InUse),
			Max:          int64(s.MaxOpenConnections),
			WaitCount:    s.WaitCount,
			WaitDuration: s.WaitDuration,
		}
	}
}

// PoolStatsCollector exports pool statistics, read on each scrape.
type PoolStatsCollector struct {
	stats StatsFunc

	open         *prometheus.Desc
	idle         *prometheus.Desc
	inUse        *prometheus.Desc
	max          *prometheus.Desc
	waits        *prometheus.Desc
	waitDuration *prometheus.Desc
}

// NewPoolStatsCollector creates a collector under namespace with a constant
// driver label. A nil stats func collects nothing.
func NewPoolStatsCollector(stats StatsFunc, namespace, driver string) *PoolStatsCollector {
	labels := prometheus.Labels{"driver": driver}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "db_pool", name), help, nil, labels)
	}
	return &PoolStatsCollector{
		stats:        stats,
		open:         desc("open_conns", "Connections currently open in the store pool."),
		idle:         desc("idle_conns", "Idle connections in the store pool."),
		inUse:        desc("in_use_conns", "Connections currently in use."),
		max:          desc("max_conns", "Maximum connections the pool allows."),
		waits:        desc("waits_total", "Connection requests that had to wait."),
		waitDuration: desc("wait_seconds_total", "Time spent waiting for a connection."),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.open
	ch <- c.idle
	ch <- c.inUse
	ch <- c.max
	ch <- c.waits
	ch <- c.waitDuration
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stats == nil {
		return
	}
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.open, prometheus.GaugeValue, float64(s.Open))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(s.Idle))
	ch <- prometheus.MustNewConstMetric(c.inUse, prometheus.GaugeValue, float64(s.InUse))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(s.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitDuration, prometheus.CounterValue, s.WaitDuration.Seconds())
}

// RegisterPoolStatsCollector registers a pool collector with reg.
// An already-registered collector is not an error.
func RegisterPoolStatsCollector(reg prometheus.Registerer, stats StatsFunc, namespace, driver string) (*PoolStatsCollector, error) {
	collector := NewPoolStatsCollector(stats, namespace, driver)
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return nil, err
		}
	}
	return collector, nil
}
