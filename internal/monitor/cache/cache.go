// Package cache holds the in-memory latest-reading state for the monitor.
package cache

import (
	"sync"

	"github.com/rmoraes/coldtrace/internal/monitor/domain"
)

// GeneralKey is the sentinel slot for readings without a shipment id.
const GeneralKey int64 = 0

// Latest is a process-wide latest-reading-per-shipment cache. It is rebuilt
// empty on restart; persisted rows backfill query responses until fresh
// telemetry arrives. All access goes through its methods; the underlying map
// is never exposed.
type Latest struct {
	mu       sync.RWMutex
	readings map[int64]domain.Reading
}

// NewLatest creates an empty cache.
func NewLatest() *Latest {
	return &Latest{readings: make(map[int64]domain.Reading)}
}

func keyFor(reading domain.Reading) int64 {
	if !reading.HasShipment {
		return GeneralKey
	}
	return reading.ShipmentID
}

// Put overwrites the slot for the reading's shipment, or the sentinel slot
// when the reading carries no shipment id.
func (c *Latest) Put(reading domain.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readings[keyFor(reading)] = reading
}

// Get returns the cached reading for a shipment.
func (c *Latest) Get(shipmentID int64) (domain.Reading, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reading, ok := c.readings[shipmentID]
	return reading, ok
}

// General returns the sentinel slot for readings without a shipment id.
func (c *Latest) General() (domain.Reading, bool) {
	return c.Get(GeneralKey)
}

// Snapshot returns a copy of every per-shipment slot, excluding the sentinel.
func (c *Latest) Snapshot() map[int64]domain.Reading {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]domain.Reading, len(c.readings))
	for key, reading := range c.readings {
		if key == GeneralKey {
			continue
		}
		out[key] = reading
	}
	return out
}

// Len returns the number of occupied slots, sentinel included.
func (c *Latest) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.readings)
}
