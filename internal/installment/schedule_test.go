package installment

import (
	"testing"
	"time"

	"github.com/iwvelando/top-planner/pkg/datetime"
)

func TestInstallmentCount(t *testing.T) {
	tests := []struct {
		name  string
		tenor float64
		offer string
		freq  Frequency
		want  int
	}{
		{"five years monthly", 5, "", Monthly, 60},
		{"ten years monthly", 10, "", Monthly, 120},
		{"ten years quarterly", 10, "", Quarterly, 40},
		{"semi-annual", 4, "", SemiAnnually, 8},
		{"annual", 7, "", Annually, 7},
		{"fractional tenor truncates", 2.5, "", Quarterly, 10},
		{"zero tenor", 0, "", Monthly, 0},
		{"negative tenor", -3, "", Monthly, 0},
		{"offer years take precedence", 5, "8 Years Flat", Quarterly, 32},
		{"offer without years", 5, "Summer promo", Quarterly, 20},
		{"unknown frequency is one per year", 3, "", Frequency("weekly"), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InstallmentCount(tt.tenor, tt.offer, tt.freq); got != tt.want {
				t.Errorf("InstallmentCount(%g, %q, %s) = %d, want %d", tt.tenor, tt.offer, tt.freq, got, tt.want)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	if got := ParseFrequency(" Quarterly "); got != Quarterly {
		t.Errorf("ParseFrequency = %q, want %q", got, Quarterly)
	}
	if !ParseFrequency("Semi-Annually").Known() {
		t.Error("expected semi-annually to be known")
	}
	if Frequency("weekly").Known() {
		t.Error("expected weekly to be unknown")
	}
	if cfg := Frequency("weekly").Config(); cfg.MonthsToAdd != 0 || cfg.PerYear != 1 {
		t.Errorf("unknown frequency config = %+v", cfg)
	}
}

func TestOfferYears(t *testing.T) {
	tests := []struct {
		offer  string
		years  int
		wantOK bool
	}{
		{"8 Years Flat", 8, true},
		{"10years", 10, true},
		{"Pay over 6 years", 6, true},
		{"Summer promo", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		years, ok := OfferYears(tt.offer)
		if years != tt.years || ok != tt.wantOK {
			t.Errorf("OfferYears(%q) = (%d, %v), want (%d, %v)", tt.offer, years, ok, tt.years, tt.wantOK)
		}
	}
}

func TestFirstDueDate(t *testing.T) {
	contract := datetime.MustParseTime(datetime.DateLayout, "2029-01-01")
	periods := Periods{BetweenDPs: 1, BetweenDPAndInstallment: 1}

	tests := []struct {
		name   string
		floors Floors
		want   string
	}{
		{"no down payments", Floors{}, "2029-01-01"},
		{"single down payment", Floors{First: 10}, "2029-02-01"},
		{"two down payments", Floors{First: 5, Second: 5}, "2029-03-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := datetime.FormatDate(FirstDueDate(contract, tt.floors, periods))
			if got != tt.want {
				t.Errorf("FirstDueDate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDueDates(t *testing.T) {
	first := datetime.MustParseTime(datetime.DateLayout, "2029-01-31")

	got := DueDates(first, Monthly, 3)
	want := []string{"2029-01-31", "2029-03-03", "2029-03-31"}
	if len(got) != len(want) {
		t.Fatalf("expected %d dates, got %d", len(want), len(got))
	}
	for i := range want {
		if datetime.FormatDate(got[i]) != want[i] {
			t.Errorf("date %d = %s, want %s", i, datetime.FormatDate(got[i]), want[i])
		}
	}

	quarterly := DueDates(time.Date(2029, 2, 1, 0, 0, 0, 0, time.UTC), Quarterly, 2)
	if datetime.FormatDate(quarterly[1]) != "2029-05-01" {
		t.Errorf("second quarterly date = %s", datetime.FormatDate(quarterly[1]))
	}

	if DueDates(first, Monthly, 0) != nil {
		t.Error("expected no dates for a zero count")
	}
}
