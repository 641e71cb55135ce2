// Package postgres opens the lib/pq connection pool used by the analytics
// snapshot store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/resilience"
	_ "github.com/lib/pq"
)

type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

// New opens the pool and pings it, retrying with backoff while the database
// comes up.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
		MaxAttempts:    5,
		InitialDelay:   500 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}, func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

func (c *Client) Close() error {
	return c.DB.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
