package mathutil

import (
	"math"
	"testing"
)

func TestRoundTo(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		places   int
		expected float64
	}{
		{"One decimal round up", 12.36, 1, 12.4},
		{"One decimal round down", 12.34, 1, 12.3},
		{"Five decimals", 8.333333333, 5, 8.33333},
		{"Zero places", 12.5, 0, 13},
		{"Negative value", -1.25, 1, -1.3},
		{"Zero", 0, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundTo(tt.input, tt.places)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("RoundTo(%v, %d) = %v, expected %v", tt.input, tt.places, result, tt.expected)
			}
		})
	}
}

func TestRoundDisplayAndInternal(t *testing.T) {
	if got := RoundDisplay(4.96); got != 5.0 {
		t.Errorf("RoundDisplay(4.96) = %v, expected 5", got)
	}
	if got := RoundInternal(1.0 / 3.0); got != 0.33333 {
		t.Errorf("RoundInternal(1/3) = %v, expected 0.33333", got)
	}
}

func TestFloorTo(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		places   int
		expected float64
	}{
		{"Truncates", 12.39, 1, 12.3},
		{"Representation error", 12.3, 1, 12.3},
		{"Two places", 99.999, 2, 99.99},
		{"Whole", 100, 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FloorTo(tt.input, tt.places)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("FloorTo(%v, %d) = %v, expected %v", tt.input, tt.places, result, tt.expected)
			}
		})
	}
}

func TestSaturate(t *testing.T) {
	if got := Saturate(100.4, 100); got != 100 {
		t.Errorf("Saturate(100.4, 100) = %v, expected 100", got)
	}
	if got := Saturate(42, 100); got != 42 {
		t.Errorf("Saturate(42, 100) = %v, expected 42", got)
	}
}

func TestPercentageHelpers(t *testing.T) {
	if got := Max(5, 7.5); got != 7.5 {
		t.Errorf("Max(5, 7.5) = %v, expected 7.5", got)
	}
	if got := ToFraction(12.5); got != 0.125 {
		t.Errorf("ToFraction(12.5) = %v, expected 0.125", got)
	}
	if got := ToPercentage(0.125); got != 12.5 {
		t.Errorf("ToPercentage(0.125) = %v, expected 12.5", got)
	}
}
