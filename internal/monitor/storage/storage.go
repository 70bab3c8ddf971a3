// Package storage defines persistence contracts for the telemetry monitor.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rmoraes/coldtrace/internal/monitor/domain"
)

// ErrNoReadings indicates that no persisted reading matched the query.
var ErrNoReadings = errors.New("no readings recorded")

// ReadingRecord is the persisted latest-value slot for one shipment.
type ReadingRecord struct {
	ID           int64
	ShipmentID   int64
	ShipmentCode string
	Temperature  float64
	Humidity     float64
	Timestamp    time.Time
}

// IngestEvent is one durable record of a pipeline processing outcome.
type IngestEvent struct {
	ID         int64
	Kind       string
	ShipmentID int64
	Outcome    string
	Detail     string
	CreatedAt  time.Time
}

// Ingest event kinds and outcomes recorded by the pipeline.
const (
	EventKindReading  = "reading"
	EventKindDecode   = "decode"
	EventKindOverflow = "overflow"

	OutcomeStored    = "stored"
	OutcomeViolation = "violation"
	OutcomeDropped   = "dropped"
)

// ReadingStore persists telemetry readings and answers latest-value queries.
type ReadingStore interface {
	// UpsertLatestReading writes the shipment's latest-value slot atomically:
	// it inserts the first reading for a shipment and overwrites it afterwards.
	UpsertLatestReading(ctx context.Context, shipmentID int64, temperature, humidity float64, ts time.Time) error
	// LatestReading returns the persisted slot for one shipment, joined with
	// its shipment code. Returns ErrNoReadings when the slot is empty.
	LatestReading(ctx context.Context, shipmentID int64) (ReadingRecord, error)
	// LatestReadings returns the most recent persisted reading per shipment.
	LatestReadings(ctx context.Context) ([]ReadingRecord, error)
}

// ThresholdStore reads product safe-storage bounds per shipment line item.
type ThresholdStore interface {
	ItemThresholds(ctx context.Context, shipmentID int64) ([]domain.ItemThreshold, error)
}

// ViolationStore latches the shipment violation flag.
type ViolationStore interface {
	// FlagShipmentViolated sets constraints_violated on the shipment. The
	// write is idempotent and one-way: nothing in this service clears it.
	FlagShipmentViolated(ctx context.Context, shipmentID int64) error
	// ShipmentViolated reports the current flag value.
	ShipmentViolated(ctx context.Context, shipmentID int64) (bool, error)
}

// EventStore appends pipeline outcome records.
type EventStore interface {
	AppendIngestEvent(ctx context.Context, event IngestEvent) error
	ListIngestEvents(ctx context.Context, limit int) ([]IngestEvent, error)
}

// Store is the full persistence surface the monitor runtime wires together.
type Store interface {
	ReadingStore
	ThresholdStore
	ViolationStore
	EventStore
}
