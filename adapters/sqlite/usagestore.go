package sqlite

import (
	"context"
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/provider"
	"github.com/Terry-Mathew/youtube-filter-sub001/domain/usage"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// UsageStore implements ports.UsageStore using SQLite.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Append stores one ledger record. Timestamps are stored in UTC for
// consistent querying.
func (s *UsageStore) Append(ctx context.Context, rec usage.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_records (
			id, operation, estimated_cost, cost_charged, outcome, latency_ms, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, string(rec.Operation), rec.EstimatedCost, rec.CostCharged,
		string(rec.Outcome), rec.LatencyMs, rec.Timestamp.UTC(),
	)
	return err
}

// SumCharged returns the total cost charged in [start, end].
func (s *UsageStore) SumCharged(ctx context.Context, start, end time.Time) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(cost_charged), 0)
		FROM usage_records
		WHERE timestamp >= ? AND timestamp <= ?
	`, start.UTC(), end.UTC())

	var total int64
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Recent returns the most recent records, newest first.
func (s *UsageStore) Recent(ctx context.Context, limit int) ([]usage.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation, estimated_cost, cost_charged, outcome, latency_ms, timestamp
		FROM usage_records
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usage.Record
	for rows.Next() {
		var r usage.Record
		var op, outcome string
		if err := rows.Scan(&r.ID, &op, &r.EstimatedCost, &r.CostCharged, &outcome, &r.LatencyMs, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Operation = provider.OperationKind(op)
		r.Outcome = usage.Outcome(outcome)
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ ports.UsageStore = (*UsageStore)(nil)
