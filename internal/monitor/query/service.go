// Package query answers latest-reading lookups over the dual-state store.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rmoraes/coldtrace/internal/monitor/cache"
	"github.com/rmoraes/coldtrace/internal/monitor/storage"
)

// NoDataMessage is the marker returned when no telemetry has arrived yet.
// Absence of telemetry is an expected steady state, not a failure.
const NoDataMessage = "No temperature data received yet"

// Result is one latest-reading answer. When NoData is set the remaining
// fields are zero and Message carries the marker text.
type Result struct {
	NoData       bool      `json:"-"`
	Message      string    `json:"message,omitempty"`
	ShipmentID   int64     `json:"shipment_id,omitempty"`
	ShipmentCode string    `json:"shipment_code,omitempty"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	Timestamp    time.Time `json:"timestamp"`
	// FromCache marks answers served from the in-memory cache before any
	// row was persisted for the shipment.
	FromCache bool `json:"from_cache,omitempty"`
}

// Service wraps the dual-state store's query side: persisted rows first, the
// in-memory cache as fallback, and a typed no-data marker when neither holds
// anything. It is safe to call concurrently with ongoing ingestion.
type Service struct {
	store storage.ReadingStore
	cache *cache.Latest
}

// NewService creates a query service over the given store and cache.
func NewService(store storage.ReadingStore, latest *cache.Latest) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if latest == nil {
		return nil, fmt.Errorf("cache is required")
	}
	return &Service{store: store, cache: latest}, nil
}

func noData() Result {
	return Result{NoData: true, Message: NoDataMessage}
}

func fromRecord(record storage.ReadingRecord) Result {
	return Result{
		ShipmentID:   record.ShipmentID,
		ShipmentCode: record.ShipmentCode,
		Temperature:  record.Temperature,
		Humidity:     record.Humidity,
		Timestamp:    record.Timestamp,
	}
}

// Latest returns the most recent reading for one shipment. The empty case is
// a Result with NoData set, never an error.
func (s *Service) Latest(ctx context.Context, shipmentID int64) (Result, error) {
	record, err := s.store.LatestReading(ctx, shipmentID)
	if err == nil {
		return fromRecord(record), nil
	}
	if !errors.Is(err, storage.ErrNoReadings) {
		return Result{}, fmt.Errorf("latest reading for shipment %d: %w", shipmentID, err)
	}

	if reading, ok := s.cache.Get(shipmentID); ok {
		return Result{
			ShipmentID:  shipmentID,
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			Timestamp:   reading.Timestamp,
			FromCache:   true,
		}, nil
	}
	return noData(), nil
}

// LatestAll returns the most recent reading per shipment across all
// shipments, falling back to the cache when nothing is persisted yet.
func (s *Service) LatestAll(ctx context.Context) ([]Result, error) {
	records, err := s.store.LatestReadings(ctx)
	if err == nil {
		results := make([]Result, 0, len(records))
		for _, record := range records {
			results = append(results, fromRecord(record))
		}
		return results, nil
	}
	if !errors.Is(err, storage.ErrNoReadings) {
		return nil, fmt.Errorf("latest readings: %w", err)
	}

	snapshot := s.cache.Snapshot()
	results := make([]Result, 0, len(snapshot))
	for shipmentID, reading := range snapshot {
		results = append(results, Result{
			ShipmentID:  shipmentID,
			Temperature: reading.Temperature,
			Humidity:    reading.Humidity,
			Timestamp:   reading.Timestamp,
			FromCache:   true,
		})
	}
	return results, nil
}
