package installment

import (
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/mathutil"
)

// Floors are the plan minimum down payment percentages.
type Floors struct {
	First  float64
	Second float64
}

// DefaultFloors are the floors assumed before the backend reports any: the
// base down payment, split evenly across two down payments in dual mode.
func DefaultFloors(baseDP float64, dual bool) Floors {
	if dual {
		return Floors{First: baseDP / 2, Second: baseDP / 2}
	}
	return Floors{First: baseDP}
}

// Needed are the down payment percentages actually due.
type Needed struct {
	First  float64
	Second float64
}

// Total is the combined needed percentage.
func (n Needed) Total() float64 {
	return n.First + n.Second
}

// NeededDownPayments computes max(entered, floor) for each down payment. In
// dual mode the second floor only covers what the first down payment leaves
// of the combined plan minimum; when the plan has no first down payment the
// second floor applies unchanged.
func NeededDownPayments(dp1, dp2 float64, floors Floors, dual bool) Needed {
	first := mathutil.Max(dp1, floors.First)
	if !dual {
		return Needed{First: first}
	}

	secondFloor := floors.Second
	if floors.First != 0 {
		secondFloor = mathutil.Max(0, floors.First+floors.Second-first)
	}
	return Needed{First: first, Second: mathutil.Max(dp2, secondFloor)}
}

// DownPaymentFraction is the down payment sent for recalculation, as a
// fraction. A single down payment is raised to the base. Two down payments
// are summed and raised to the base; when the first falls short of half the
// base while the second covers its half, the first is counted at half the
// base.
func DownPaymentFraction(dp1, dp2, baseDP float64, dual bool) float64 {
	if !dual {
		return mathutil.ToFraction(mathutil.Max(dp1, baseDP))
	}

	half := baseDP / 2
	total := dp1 + dp2
	if total < baseDP {
		total = baseDP
	}
	if dp1 < half && dp2 >= half {
		total = dp2 + half
	}
	return mathutil.ToFraction(total)
}

// CumulativeStart is the cumulative percentage before the first installment:
// the needed down payments, never less than the base in dual mode.
func CumulativeStart(needed Needed, baseDP float64, dual bool) float64 {
	if !dual {
		return mathutil.RoundDisplay(needed.First)
	}
	start := needed.Total()
	if start < baseDP {
		start = baseDP
	}
	return mathutil.Saturate(mathutil.RoundInternal(start), constants.FullPercentage)
}

// Cumulative computes the running cumulative percentage for each installment
// percentage, starting from start and saturating at 100. The second result
// is the number of leading rows that stay visible: every row after the first
// one reaching 100% (rounded to one decimal) is hidden. ok marks which
// percentages are known; unknown rows carry the running sum without advancing it.
func Cumulative(start float64, percentages []float64, ok []bool) ([]float64, int) {
	out := make([]float64, len(percentages))
	visible := len(percentages)
	running := start
	for i, pct := range percentages {
		if i < len(ok) && !ok[i] {
			out[i] = running
			continue
		}
		running = mathutil.Saturate(mathutil.RoundInternal(running+mathutil.RoundInternal(pct)), constants.FullPercentage)
		out[i] = running
		if visible == len(percentages) && mathutil.RoundDisplay(running) >= constants.FullPercentage {
			visible = i + 1
		}
	}
	return out, visible
}
