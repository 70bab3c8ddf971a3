package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rmoraes/coldtrace/internal/monitor/domain"
)

// ItemThresholds returns the product bounds of every line item on a shipment.
// Shipments without items, and bounds left NULL by the manufacturer, impose
// no constraints.
func (s *Store) ItemThresholds(ctx context.Context, shipmentID int64) ([]domain.ItemThreshold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if shipmentID <= 0 {
		return nil, fmt.Errorf("shipment id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT p.id, p.max_temperature, p.min_temperature, p.max_humidity, p.min_humidity
  FROM shipment_items si
  JOIN products p ON si.product_id = p.id
 WHERE si.shipment_id = ?
`, shipmentID)
	if err != nil {
		return nil, fmt.Errorf("item thresholds: %w", err)
	}
	defer rows.Close()

	var items []domain.ItemThreshold
	for rows.Next() {
		var item domain.ItemThreshold
		var maxT, minT, maxH, minH sql.NullFloat64
		if err := rows.Scan(&item.ProductID, &maxT, &minT, &maxH, &minH); err != nil {
			return nil, fmt.Errorf("item thresholds: %w", err)
		}
		item.MaxTemperature = nullableFloat(maxT)
		item.MinTemperature = nullableFloat(minT)
		item.MaxHumidity = nullableFloat(maxH)
		item.MinHumidity = nullableFloat(minH)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("item thresholds: %w", err)
	}
	return items, nil
}

// FlagShipmentViolated latches the shipment's violation flag. The write is
// idempotent; nothing in this service ever clears the flag.
func (s *Store) FlagShipmentViolated(ctx context.Context, shipmentID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if shipmentID <= 0 {
		return fmt.Errorf("shipment id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE shipments SET constraints_violated = 1 WHERE id = ?`,
		shipmentID,
	)
	if err != nil {
		return fmt.Errorf("flag shipment violated: %w", err)
	}
	return nil
}

// ShipmentViolated reports the current violation flag for a shipment.
func (s *Store) ShipmentViolated(ctx context.Context, shipmentID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if shipmentID <= 0 {
		return false, fmt.Errorf("shipment id is required")
	}

	var violated int
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT constraints_violated FROM shipments WHERE id = ?`,
		shipmentID,
	)
	if err := row.Scan(&violated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("shipment %d not found", shipmentID)
		}
		return false, fmt.Errorf("shipment violated: %w", err)
	}
	return violated != 0, nil
}

func nullableFloat(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}
