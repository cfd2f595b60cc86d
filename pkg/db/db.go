// Package db provides PostgreSQL and SQLite connection utilities for notetaker stores.
package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	// DSN, when set, is used verbatim and the discrete fields are ignored.
	DSN             string
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "notetaker",
		User:            "notetaker",
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ApplyEnv overlays NOTETAKER_DB_* environment variables onto c.
func (c *Config) ApplyEnv() {
	if dsn := os.Getenv("NOTETAKER_DATABASE_URL"); dsn != "" {
		c.DSN = dsn
	}
	if host := os.Getenv("NOTETAKER_DB_HOST"); host != "" {
		c.Host = host
	}
	if port := os.Getenv("NOTETAKER_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}
	if database := os.Getenv("NOTETAKER_DB_NAME"); database != "" {
		c.Database = database
	}
	if user := os.Getenv("NOTETAKER_DB_USER"); user != "" {
		c.User = user
	}
	if password := os.Getenv("NOTETAKER_DB_PASSWORD"); password != "" {
		c.Password = password
	}
	if sslmode := os.Getenv("NOTETAKER_DB_SSLMODE"); sslmode != "" {
		c.SSLMode = sslmode
	}
	if maxConns := os.Getenv("NOTETAKER_DB_MAX_CONNS"); maxConns != "" {
		if mc, err := strconv.ParseInt(maxConns, 10, 32); err == nil {
			c.MaxConns = int32(mc)
		}
	}
}

// ConnectionString builds a PostgreSQL connection string from the config.
func (c *Config) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

// Validate checks if the config has required fields set.
func (c *Config) Validate() error {
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("max connections (%d) must be >= min connections (%d)", c.MaxConns, c.MinConns)
	}
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.User == "" {
		return fmt.Errorf("database user is required")
	}
	return nil
}

// Connect opens a pgx pool sized from cfg and pings it once. The caller owns
// the pool and releases it with Close.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	pc.MaxConns, pc.MinConns = cfg.MaxConns, cfg.MinConns
	pc.MaxConnLifetime, pc.MaxConnIdleTime = cfg.MaxConnLifetime, cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Retry controls ConnectWithRetry. OnRetry, when set, is told about each
// failed attempt that will be retried.
type Retry struct {
	Attempts int
	Delay    time.Duration
	OnRetry  func(attempt int, err error)
}

// ConnectWithRetry calls Connect until it succeeds, r.Attempts is used up,
// or ctx ends. A server started next to its database usually needs this.
func ConnectWithRetry(ctx context.Context, cfg *Config, r Retry) (*pgxpool.Pool, error) {
	attempts := max(r.Attempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		var pool *pgxpool.Pool
		if pool, err = Connect(ctx, cfg); err == nil {
			return pool, nil
		}
		if attempt == attempts {
			break
		}
		if r.OnRetry != nil {
			r.OnRetry(attempt, err)
		}
		timer := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("connecting after %d attempts: %w", attempts, err)
}

// Close releases pool; nil is allowed.
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
