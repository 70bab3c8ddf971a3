package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rmoraes/coldtrace/internal/monitor/storage"
)

// UpsertLatestReading writes the shipment's latest-value slot in one
// statement. The unique index on shipment_id makes the exists-check and
// write atomic, so concurrent writers for the same shipment cannot
// double-insert or lose an update.
func (s *Store) UpsertLatestReading(ctx context.Context, shipmentID int64, temperature, humidity float64, ts time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if shipmentID <= 0 {
		return fmt.Errorf("shipment id is required")
	}
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO temperature_logs (shipment_id, temperature, humidity, timestamp)
VALUES (?, ?, ?, ?)
ON CONFLICT(shipment_id) DO UPDATE SET
	temperature = excluded.temperature,
	humidity = excluded.humidity,
	timestamp = excluded.timestamp
`,
		shipmentID,
		temperature,
		humidity,
		toMillis(ts),
	)
	if err != nil {
		return fmt.Errorf("upsert latest reading: %w", err)
	}
	return nil
}

// LatestReading returns the persisted slot for one shipment joined with its
// public shipment code.
func (s *Store) LatestReading(ctx context.Context, shipmentID int64) (storage.ReadingRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ReadingRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ReadingRecord{}, fmt.Errorf("storage is not configured")
	}
	if shipmentID <= 0 {
		return storage.ReadingRecord{}, fmt.Errorf("shipment id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT tl.id, tl.shipment_id, s.shipment_code, tl.temperature, tl.humidity, tl.timestamp
  FROM temperature_logs tl
  JOIN shipments s ON tl.shipment_id = s.id
 WHERE tl.shipment_id = ?
 ORDER BY tl.timestamp DESC
 LIMIT 1
`, shipmentID)

	record, err := scanReading(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ReadingRecord{}, storage.ErrNoReadings
		}
		return storage.ReadingRecord{}, fmt.Errorf("latest reading: %w", err)
	}
	return record, nil
}

// LatestReadings returns the most recent persisted reading per shipment,
// tie-broken by highest timestamp.
func (s *Store) LatestReadings(ctx context.Context) ([]storage.ReadingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT tl.id, tl.shipment_id, s.shipment_code, tl.temperature, tl.humidity, tl.timestamp
  FROM temperature_logs tl
  JOIN (
        SELECT shipment_id, MAX(timestamp) AS max_ts
          FROM temperature_logs
         GROUP BY shipment_id
       ) latest
    ON tl.shipment_id = latest.shipment_id AND tl.timestamp = latest.max_ts
  JOIN shipments s ON tl.shipment_id = s.id
 ORDER BY tl.shipment_id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}
	defer rows.Close()

	var records []storage.ReadingRecord
	for rows.Next() {
		record, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("latest readings: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("latest readings: %w", err)
	}
	if len(records) == 0 {
		return nil, storage.ErrNoReadings
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (storage.ReadingRecord, error) {
	var record storage.ReadingRecord
	var ts int64
	if err := row.Scan(
		&record.ID,
		&record.ShipmentID,
		&record.ShipmentCode,
		&record.Temperature,
		&record.Humidity,
		&ts,
	); err != nil {
		return storage.ReadingRecord{}, err
	}
	record.Timestamp = fromMillis(ts)
	return record, nil
}
