package installment

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/top-planner/pkg/datetime"
)

// Frequency is a payment frequency.
type Frequency string

// Supported payment frequencies.
const (
	Monthly      Frequency = "monthly"
	Quarterly    Frequency = "quarterly"
	SemiAnnually Frequency = "semi-annually"
	Annually     Frequency = "annually"
)

// FrequencyConfig is the month step between installments and the number of
// installments per year.
type FrequencyConfig struct {
	MonthsToAdd int
	PerYear     int
}

var frequencyConfigs = map[Frequency]FrequencyConfig{
	Monthly:      {MonthsToAdd: 1, PerYear: 12},
	Quarterly:    {MonthsToAdd: 3, PerYear: 4},
	SemiAnnually: {MonthsToAdd: 6, PerYear: 2},
	Annually:     {MonthsToAdd: 12, PerYear: 1},
}

// ParseFrequency normalizes a frequency label such as "Quarterly".
func ParseFrequency(label string) Frequency {
	return Frequency(strings.ToLower(strings.TrimSpace(label)))
}

// Config returns the schedule parameters of f. Unknown frequencies step zero
// months with one installment per year.
func (f Frequency) Config() FrequencyConfig {
	if cfg, ok := frequencyConfigs[f]; ok {
		return cfg
	}
	return FrequencyConfig{MonthsToAdd: 0, PerYear: 1}
}

// Known reports whether f is a supported frequency.
func (f Frequency) Known() bool {
	_, ok := frequencyConfigs[f]
	return ok
}

var offerYearsPattern = regexp.MustCompile(`(?i)(\d+)\s*years`)

// OfferYears extracts the tenor carried by a special offer label such as
// "8 Years Flat". The second result is false when the label has none.
func OfferYears(offer string) (int, bool) {
	match := offerYearsPattern.FindStringSubmatch(offer)
	if match == nil {
		return 0, false
	}
	years, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return years, true
}

// InstallmentCount is the number of schedule rows for a tenor. A special
// offer's own tenor takes precedence over tenorYears.
func InstallmentCount(tenorYears float64, offer string, freq Frequency) int {
	if tenorYears <= 0 {
		return 0
	}
	years := tenorYears
	if offerYears, ok := OfferYears(offer); ok && offerYears != 0 {
		years = float64(offerYears)
	}
	return int(years * float64(freq.Config().PerYear))
}

// Periods are the month gaps between down payments and the first installment.
type Periods struct {
	BetweenDPs              int
	BetweenDPAndInstallment int
}

// FirstDueDate is the due date of PMT 1. Without planned down payments it is
// the contract date; a single down payment shifts it by the DP gap; a second
// down payment shifts it by the gap between down payments as well.
func FirstDueDate(contract time.Time, floors Floors, periods Periods) time.Time {
	switch {
	case floors.First == 0 && floors.Second == 0:
		return contract
	case floors.Second == 0:
		return datetime.AddMonths(contract, periods.BetweenDPAndInstallment)
	default:
		return datetime.AddMonths(contract, periods.BetweenDPs+periods.BetweenDPAndInstallment)
	}
}

// DueDates generates count due dates starting at first, freq apart.
func DueDates(first time.Time, freq Frequency, count int) []time.Time {
	if count <= 0 {
		return nil
	}
	step := freq.Config().MonthsToAdd
	dates := make([]time.Time, count)
	for i := range dates {
		dates[i] = datetime.AddMonths(first, i*step)
	}
	return dates
}
