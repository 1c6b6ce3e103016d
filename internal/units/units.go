// Package units converts simulator speeds, which are km/h internally, into
// the units clients ask for.
package units

import "strings"

// Unit constants
const (
	KMPH = "kmph"
	KPH  = "kph"
	MPH  = "mph"
	MPS  = "mps"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{KMPH, KPH, MPH, MPS}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertSpeed converts a speed from km/h to the target units. Unknown units
// leave the value in km/h.
func ConvertSpeed(speedKMPH float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedKMPH / 1.609344
	case MPS:
		return speedKMPH / 3.6
	default:
		return speedKMPH
	}
}
