package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

// DefaultHistoryRetention is how many entries are kept after each append.
const DefaultHistoryRetention = 50

type HistoryRepository struct {
	db        *sql.DB
	retention int
}

func NewHistoryRepository(db *sql.DB, retention int) *HistoryRepository {
	if retention <= 0 {
		retention = DefaultHistoryRetention
	}
	return &HistoryRepository{db: db, retention: retention}
}

// Append stores the entry once per request id and prunes beyond retention.
func (r *HistoryRepository) Append(ctx context.Context, entry domain.HistoryEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	recordedAt := entry.Timestamp
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO analysis_history (request_id, recorded_at, status, duration_ms, entry)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (request_id) DO NOTHING
`, entry.RequestID, recordedAt, entry.Status, entry.DurationMS, raw); err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM analysis_history
WHERE request_id NOT IN (
	SELECT request_id FROM analysis_history
	ORDER BY recorded_at DESC, request_id DESC
	LIMIT $1
)
`, r.retention); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 || limit > r.retention {
		limit = r.retention
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT entry
FROM analysis_history
ORDER BY recorded_at DESC, request_id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoryEntry, 0, limit)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		var entry domain.HistoryEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			return nil, fmt.Errorf("unmarshal history entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
