package format

import (
	"fmt"
	"math"

	"github.com/iwvelando/top-planner/pkg/mathutil"
)

// Percentage truncates a percentage to one decimal (e.g., 12.39 -> "12.3%").
// A displayed floor never exceeds the computed value.
func Percentage(value float64) string {
	return fmt.Sprintf("%.1f%%", mathutil.FloorTo(value, 1))
}

// RoundedPercentage rounds a percentage to one decimal (e.g., 4.96 -> "5.0%").
func RoundedPercentage(value float64) string {
	return fmt.Sprintf("%.1f%%", mathutil.RoundDisplay(value))
}

// PercentageChange renders a signed change with negatives in parentheses
// (e.g., -3.25 -> "(3.3%)"), matching accounting notation.
func PercentageChange(value float64) string {
	abs := fmt.Sprintf("%.1f", math.Abs(value))
	if value < 0 {
		return "(" + abs + "%)"
	}
	return abs + "%"
}

// PercentageChangeOrDash is PercentageChange but renders a zero change as "-".
func PercentageChangeOrDash(value float64) string {
	if mathutil.RoundDisplay(math.Abs(value)) == 0 {
		return "-"
	}
	return PercentageChange(value)
}
