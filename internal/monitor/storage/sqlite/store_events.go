package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rmoraes/coldtrace/internal/monitor/storage"
)

// AppendIngestEvent persists one pipeline processing outcome.
func (s *Store) AppendIngestEvent(ctx context.Context, event storage.IngestEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	event.Kind = strings.TrimSpace(event.Kind)
	event.Outcome = strings.TrimSpace(event.Outcome)
	if event.Kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if event.Outcome == "" {
		return fmt.Errorf("event outcome is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO ingest_events (kind, shipment_id, outcome, detail, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		event.Kind,
		event.ShipmentID,
		event.Outcome,
		event.Detail,
		toMillis(event.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append ingest event: %w", err)
	}
	return nil
}

// ListIngestEvents lists newest-first pipeline outcome records.
func (s *Store) ListIngestEvents(ctx context.Context, limit int) ([]storage.IngestEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, kind, shipment_id, outcome, detail, created_at
  FROM ingest_events
 ORDER BY created_at DESC, id DESC
 LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingest events: %w", err)
	}
	defer rows.Close()

	var events []storage.IngestEvent
	for rows.Next() {
		var event storage.IngestEvent
		var createdAt int64
		if err := rows.Scan(
			&event.ID,
			&event.Kind,
			&event.ShipmentID,
			&event.Outcome,
			&event.Detail,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("list ingest events: %w", err)
		}
		event.CreatedAt = fromMillis(createdAt)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ingest events: %w", err)
	}
	return events, nil
}
