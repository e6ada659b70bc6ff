// Package format renders numbers, currencies and percentages the way the
// planner views display them.
package format

import (
	"fmt"
	"math"

	"github.com/iwvelando/top-planner/pkg/mathutil"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Thousands returns a whole number with thousands separators (e.g., "1,234,568").
func Thousands(amount float64) string {
	return printer.Sprintf("%d", int64(math.Round(amount)))
}

// Decimal returns a number with thousands separators and up to two decimals,
// trailing zeros removed (e.g., "1,234.5").
func Decimal(amount float64) string {
	rounded := mathutil.RoundTo(amount, 2)
	if rounded == math.Trunc(rounded) {
		return Thousands(rounded)
	}
	if mathutil.RoundTo(rounded, 1) == rounded {
		return printer.Sprintf("%.1f", rounded)
	}
	return printer.Sprintf("%.2f", rounded)
}

// Currency returns an amount with thousands separators followed by the
// currency code (e.g., "900,000 EGP").
func Currency(amount float64, code string) string {
	if code == "" {
		return Thousands(amount)
	}
	return Thousands(amount) + " " + code
}

// Abbreviate shortens large numbers: millions as "1.2M", thousands as "12K",
// anything smaller with separators.
func Abbreviate(value float64) string {
	switch {
	case value >= 1000000:
		return fmt.Sprintf("%.1fM", value/1000000)
	case value >= 1000:
		return fmt.Sprintf("%.0fK", value/1000)
	default:
		return Decimal(value)
	}
}

// AbbreviatedCurrency abbreviates a value and appends the currency code.
func AbbreviatedCurrency(value float64, code string) string {
	return Abbreviate(value) + " " + code
}

// Millions renders a value in millions behind a currency symbol (e.g., "$12.3M").
func Millions(value float64, symbol string) string {
	return fmt.Sprintf("%s%.1fM", symbol, value/1000000)
}
