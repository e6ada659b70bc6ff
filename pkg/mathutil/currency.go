// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/top-planner/pkg/constants"
)

// RoundTo rounds a value to the given number of decimals.
func RoundTo(val float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(val*pow) / pow
}

// RoundDisplay rounds a percentage to the precision shown to users.
func RoundDisplay(val float64) float64 {
	return RoundTo(val, constants.DisplayPrecision)
}

// RoundInternal rounds a percentage to the precision used for running sums,
// which keeps repeated float accumulation from drifting visibly.
func RoundInternal(val float64) float64 {
	return RoundTo(val, constants.InternalPrecision)
}

// FloorTo truncates a value to the given number of decimals. A tiny epsilon
// absorbs representation error such as 12.3 being stored as 12.29999.
func FloorTo(val float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Floor(val*pow+0.00001) / pow
}

// Saturate caps a value at ceiling.
func Saturate(val, ceiling float64) float64 {
	if val > ceiling {
		return ceiling
	}
	return val
}

// Max returns the maximum of two float64 values
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ToFraction converts a percentage such as 12.5 into 0.125.
func ToFraction(percentage float64) float64 {
	return percentage / constants.PercentageMultiplier
}

// ToPercentage converts a fraction such as 0.125 into 12.5.
func ToPercentage(fraction float64) float64 {
	return fraction * constants.PercentageMultiplier
}
