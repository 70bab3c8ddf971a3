package domain

// ItemThreshold carries the safe-storage bounds of one shipment line item's
// product. A nil bound imposes no constraint.
type ItemThreshold struct {
	ProductID      int64
	MaxTemperature *float64
	MinTemperature *float64
	MaxHumidity    *float64
	MinHumidity    *float64
}

// Violates reports whether the reading falls outside the bounds of any item.
//
// Comparisons are strict: a reading exactly equal to a bound is compliant.
func Violates(reading Reading, items []ItemThreshold) bool {
	for _, item := range items {
		if exceeds(reading.Temperature, item.MaxTemperature) ||
			fallsBelow(reading.Temperature, item.MinTemperature) ||
			exceeds(reading.Humidity, item.MaxHumidity) ||
			fallsBelow(reading.Humidity, item.MinHumidity) {
			return true
		}
	}
	return false
}

func exceeds(value float64, max *float64) bool {
	return max != nil && value > *max
}

func fallsBelow(value float64, min *float64) bool {
	return min != nil && value < *min
}
