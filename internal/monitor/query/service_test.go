package query

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rmoraes/coldtrace/internal/monitor/cache"
	"github.com/rmoraes/coldtrace/internal/monitor/domain"
	"github.com/rmoraes/coldtrace/internal/monitor/storage"
)

type stubReadingStore struct {
	records map[int64]storage.ReadingRecord
	err     error
}

func (s *stubReadingStore) UpsertLatestReading(context.Context, int64, float64, float64, time.Time) error {
	return errors.New("not implemented")
}

func (s *stubReadingStore) LatestReading(_ context.Context, shipmentID int64) (storage.ReadingRecord, error) {
	if s.err != nil {
		return storage.ReadingRecord{}, s.err
	}
	record, ok := s.records[shipmentID]
	if !ok {
		return storage.ReadingRecord{}, storage.ErrNoReadings
	}
	return record, nil
}

func (s *stubReadingStore) LatestReadings(context.Context) ([]storage.ReadingRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.records) == 0 {
		return nil, storage.ErrNoReadings
	}
	records := make([]storage.ReadingRecord, 0, len(s.records))
	for _, record := range s.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ShipmentID < records[j].ShipmentID })
	return records, nil
}

func TestLatestFromStore(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	store := &stubReadingStore{records: map[int64]storage.ReadingRecord{
		5: {ID: 1, ShipmentID: 5, ShipmentCode: "SHP-005", Temperature: 21, Humidity: 40, Timestamp: now},
	}}
	svc, err := NewService(store, cache.NewLatest())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Latest(context.Background(), 5)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if result.NoData {
		t.Fatal("expected data")
	}
	if result.ShipmentCode != "SHP-005" || result.Temperature != 21 {
		t.Fatalf("result = %+v, want SHP-005 at 21", result)
	}
}

func TestLatestFallsBackToCache(t *testing.T) {
	latest := cache.NewLatest()
	latest.Put(domain.Reading{ShipmentID: 7, HasShipment: true, Temperature: 9, Humidity: 70})
	svc, err := NewService(&stubReadingStore{}, latest)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Latest(context.Background(), 7)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if result.NoData {
		t.Fatal("expected cached data")
	}
	if !result.FromCache {
		t.Fatal("expected answer marked as cache-served")
	}
	if result.Temperature != 9 {
		t.Fatalf("temperature = %v, want 9", result.Temperature)
	}
}

func TestLatestNoDataMarker(t *testing.T) {
	svc, err := NewService(&stubReadingStore{}, cache.NewLatest())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Latest(context.Background(), 99)
	if err != nil {
		t.Fatalf("latest must not error on no data: %v", err)
	}
	if !result.NoData {
		t.Fatal("expected no-data marker")
	}
	if result.Message != NoDataMessage {
		t.Fatalf("message = %q, want %q", result.Message, NoDataMessage)
	}
}

func TestLatestPropagatesStorageFailure(t *testing.T) {
	svc, err := NewService(&stubReadingStore{err: errors.New("disk broke")}, cache.NewLatest())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Latest(context.Background(), 1); err == nil {
		t.Fatal("expected storage failure to propagate")
	}
}

func TestLatestAllFromStore(t *testing.T) {
	store := &stubReadingStore{records: map[int64]storage.ReadingRecord{
		1: {ShipmentID: 1, ShipmentCode: "SHP-001", Temperature: 4},
		2: {ShipmentID: 2, ShipmentCode: "SHP-002", Temperature: 22},
	}}
	svc, err := NewService(store, cache.NewLatest())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	results, err := svc.LatestAll(context.Background())
	if err != nil {
		t.Fatalf("latest all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results len = %d, want 2", len(results))
	}
	if results[0].ShipmentID != 1 || results[1].ShipmentID != 2 {
		t.Fatalf("results = %+v, want shipments 1 and 2", results)
	}
}

func TestLatestAllFallsBackToCacheSnapshot(t *testing.T) {
	latest := cache.NewLatest()
	latest.Put(domain.Reading{ShipmentID: 3, HasShipment: true, Temperature: 12})
	latest.Put(domain.Reading{Temperature: 99}) // sentinel, excluded
	svc, err := NewService(&stubReadingStore{}, latest)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	results, err := svc.LatestAll(context.Background())
	if err != nil {
		t.Fatalf("latest all: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results len = %d, want 1 (sentinel excluded)", len(results))
	}
	if !results[0].FromCache || results[0].ShipmentID != 3 {
		t.Fatalf("results[0] = %+v, want cache-served shipment 3", results[0])
	}
}

func TestLatestAllEmptyEverywhere(t *testing.T) {
	svc, err := NewService(&stubReadingStore{}, cache.NewLatest())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	results, err := svc.LatestAll(context.Background())
	if err != nil {
		t.Fatalf("latest all must not error when empty: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("results len = %d, want 0", len(results))
	}
}
