// Package store persists periodic snapshots of aggregated analytics stats
// to PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/prf-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/prf-search/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id          BIGSERIAL PRIMARY KEY,
    data        JSONB NOT NULL,
    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const schemaIndex = `
CREATE INDEX IF NOT EXISTS analytics_snapshots_captured_at_idx
    ON analytics_snapshots (captured_at DESC)`

// Store reads and writes the analytics_snapshots table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// EnsureSchema creates the snapshot table and its index if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("creating analytics_snapshots: %w", err)
		}
		if _, err := tx.ExecContext(ctx, schemaIndex); err != nil {
			return fmt.Errorf("creating analytics_snapshots index: %w", err)
		}
		return nil
	})
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
		data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_docs_indexed", stats.TotalDocIndexed,
	)
	return nil
}

// LatestSnapshot returns nil, nil when no snapshot has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// ListSnapshots returns up to limit snapshots, newest first.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.AggregatedStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]analytics.AggregatedStats, 0, limit)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var stats analytics.AggregatedStats
		if err := json.Unmarshal(data, &stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stats)
	}
	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
