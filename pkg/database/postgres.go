package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/retry"
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Option tunes the pool built by NewConnection.
type Option func(*pgxpool.Config)

// WithMaxConnections caps the pool size. Zero keeps the default of 25.
func WithMaxConnections(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// WithApplicationName sets application_name, which shows up in pg_stat_activity.
func WithApplicationName(name string) Option {
	return func(c *pgxpool.Config) {
		c.ConnConfig.RuntimeParams["application_name"] = name
	}
}

// NewConnection opens a pool for url and waits until the server answers.
// The first ping is retried so that a database still starting up (compose,
// test containers) does not fail the process.
func NewConnection(ctx context.Context, url string, opts ...Option) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "drugovery"
	for _, opt := range opts {
		opt(poolConfig)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	err = retry.DoIfRetryable(ctx, startupRetry(), func() error {
		if err := pool.Ping(ctx); err != nil {
			return apperrors.Transient(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// startupRetry waits up to roughly ten seconds for the server.
func startupRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:   8,
		InitialDelay: 250 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   1.5,
	}
}
