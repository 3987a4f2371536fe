package store

import (
	"context"
	"fmt"
	"time"
)

// LogIngestion appends one pipeline attempt outcome. Callers on a best-effort
// path may drop the returned error; the log is observability, not state.
func (s *Store) LogIngestion(ctx context.Context, e *IngestionLogEntry) error {
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO ingestion_log (id, event_id, document_id, channel, status,
		error_code, error_detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.EventID, e.DocumentID, e.Channel, e.Status,
		e.ErrorCode, e.ErrorDetail, e.CreatedAt)
	return err
}

// ListIngestionByEvent returns all log rows for an event, oldest first.
func (s *Store) ListIngestionByEvent(ctx context.Context, eventID string) ([]*IngestionLogEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, event_id, document_id, channel, status, error_code, error_detail, created_at
		FROM ingestion_log WHERE event_id = ? ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*IngestionLogEntry
	for rows.Next() {
		var e IngestionLogEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.DocumentID, &e.Channel, &e.Status,
			&e.ErrorCode, &e.ErrorDetail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ingestion log: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
