package units

import (
	"math"
	"testing"
)

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name      string
		speedKMPH float64
		units     string
		expected  float64
	}{
		{"36 km/h to mps", 36, MPS, 10},
		{"100 km/h to mph", 100, MPH, 62.1371},
		{"50 km/h to kmph", 50, KMPH, 50},
		{"50 km/h to kph", 50, KPH, 50},
		{"unknown units stay in km/h", 50, "furlongs", 50},
		{"empty units stay in km/h", 42, "", 42},
		{"stopped", 0, MPH, 0},
		{"truck crawl 8 km/h to mps", 8, MPS, 2.2222},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedKMPH, tt.units)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("ConvertSpeed(%f, %s) = %f, want %f", tt.speedKMPH, tt.units, result, tt.expected)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "invalid", false},
		{"empty string", "", false},
		{"case sensitive", "MPH", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.unit); got != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, got, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "kmph, kph, mph, mps"
	if result := GetValidUnitsString(); result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}
