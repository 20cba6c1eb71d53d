package analytics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/talfrim/searchengine/pkg/postgres"
	"github.com/talfrim/searchengine/pkg/resilience"
)

// Store persists raw search events and periodic aggregate snapshots in
// PostgreSQL.
//
// It requires two tables:
//
//	CREATE TABLE search_events (
//	    id          BIGSERIAL PRIMARY KEY,
//	    query_id    TEXT,
//	    query       TEXT NOT NULL,
//	    semantic    BOOLEAN NOT NULL,
//	    candidates  INT NOT NULL,
//	    returned    INT NOT NULL,
//	    latency_ms  BIGINT NOT NULL,
//	    cache_hit   BOOLEAN NOT NULL,
//	    request_id  TEXT,
//	    occurred_at TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE analytics_snapshots (
//	    id          BIGSERIAL PRIMARY KEY,
//	    data        JSONB NOT NULL,
//	    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	db     *postgres.Client
	retry  resilience.RetryConfig
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// SaveEventBatch inserts a batch of events inside one transaction,
// retrying transient failures.
func (s *Store) SaveEventBatch(ctx context.Context, events []SearchEvent) error {
	if len(events) == 0 {
		return nil
	}
	return resilience.Retry(ctx, "save-search-event-batch", s.retry, func() error {
		return s.db.InTx(ctx, func(tx *sql.Tx) error {
			stmt, err := tx.PrepareContext(ctx,
				`INSERT INTO search_events
				 (query_id, query, semantic, candidates, returned, latency_ms, cache_hit, request_id, occurred_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			)
			if err != nil {
				return fmt.Errorf("preparing event insert: %w", err)
			}
			defer stmt.Close()
			for _, event := range events {
				if _, err := stmt.ExecContext(ctx,
					event.QueryID, event.Query, event.Semantic, event.Candidates,
					event.Returned, event.LatencyMs, event.CacheHit, event.RequestID,
					event.Timestamp.UTC(),
				); err != nil {
					return fmt.Errorf("inserting search event: %w", err)
				}
			}
			return nil
		})
	})
}

// SaveSnapshot persists one aggregate snapshot as JSONB.
func (s *Store) SaveSnapshot(ctx context.Context, stats AggregatedStats) error {
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
		"total_index_flushes", stats.TotalIndexFlushes,
	)
	return nil
}

// LatestSnapshot loads the most recent snapshot, or nil when none exists.
func (s *Store) LatestSnapshot(ctx context.Context) (*AggregatedStats, error) {
	var data []byte
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

// StartPeriodicSave snapshots the aggregator's stats on a fixed interval
// until ctx is cancelled.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *Aggregator, interval time.Duration) {
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
				saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := s.SaveSnapshot(saveCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				cancel()
				return
			}
		}
	}()
}
