// Package domain holds the telemetry reading model and constraint rules.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Quality marks which channels of a reading carried a measured value.
// A channel absent from the payload defaults to zero and is marked as
// defaulted so downstream consumers can tell it apart from a real zero.
type Quality uint8

const (
	// QualityTemperatureDefaulted is set when the payload carried no usable
	// temperature value.
	QualityTemperatureDefaulted Quality = 1 << iota
	// QualityHumidityDefaulted is set when the payload carried no usable
	// humidity value.
	QualityHumidityDefaulted
)

// TemperatureMeasured reports whether the temperature came from the sensor.
func (q Quality) TemperatureMeasured() bool {
	return q&QualityTemperatureDefaulted == 0
}

// HumidityMeasured reports whether the humidity came from the sensor.
func (q Quality) HumidityMeasured() bool {
	return q&QualityHumidityDefaulted == 0
}

// Reading is one decoded telemetry sample.
type Reading struct {
	ShipmentID  int64
	HasShipment bool
	Temperature float64
	Humidity    float64
	Timestamp   time.Time
	Quality     Quality
}

// ParseReading decodes a raw bus payload into a Reading.
//
// Payload handling is deliberately lenient: missing or non-numeric
// temperature and humidity values default to 0 (with the matching Quality
// bit set) rather than rejecting the sample, and a missing shipment_id
// routes the reading to the sentinel cache slot instead of failing. Only a
// body that does not decode as a JSON object is an error.
func ParseReading(payload []byte, now time.Time) (Reading, error) {
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return Reading{}, fmt.Errorf("decode reading payload: %w", err)
	}

	reading := Reading{Timestamp: now.UTC()}

	if raw, ok := body["shipment_id"]; ok {
		if id, ok := asInt64(raw); ok {
			reading.ShipmentID = id
			reading.HasShipment = true
		}
	}
	if value, ok := asFloat64(body["temperature"]); ok {
		reading.Temperature = value
	} else {
		reading.Quality |= QualityTemperatureDefaulted
	}
	if value, ok := asFloat64(body["humidity"]); ok {
		reading.Humidity = value
	} else {
		reading.Quality |= QualityHumidityDefaulted
	}

	return reading, nil
}

func asFloat64(raw any) (float64, bool) {
	value, ok := raw.(float64)
	return value, ok
}

func asInt64(raw any) (int64, bool) {
	value, ok := raw.(float64)
	if !ok {
		return 0, false
	}
	return int64(value), true
}
