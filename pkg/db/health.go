package db

import (
	"context"
	"time"
)

// Pinger is anything that can prove the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// statsSource is implemented by stores that expose their pool.
type statsSource interface {
	PoolStats() StatsFunc
}

// Health is the /healthz payload.
type Health struct {
	Healthy   bool       `json:"healthy"`
	LatencyMS int64      `json:"latency_ms"`
	Pool      *PoolStats `json:"pool,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Check pings p once. When p also reports pool statistics they are attached
// to a healthy result.
func Check(ctx context.Context, p Pinger) Health {
	if p == nil {
		return Health{Error: "no store configured"}
	}

	start := time.Now()
	err := p.Ping(ctx)
	h := Health{LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		h.Error = "ping: " + err.Error()
		return h
	}

	h.Healthy = true
	if src, ok := p.(statsSource); ok {
		if stats := src.PoolStats(); stats != nil {
			s := stats()
			h.Pool = &s
		}
	}
	return h
}
