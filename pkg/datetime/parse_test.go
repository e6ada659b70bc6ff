package datetime

import (
	"testing"
	"time"
)

func TestMustParseTime(t *testing.T) {
	got := MustParseTime(DateLayout, "2026-03-05")
	if got.Year() != 2026 || got.Month() != time.March || got.Day() != 5 {
		t.Errorf("MustParseTime returned %v", got)
	}

	defer func() {
		if r := recover(); r == nil {
			t.Errorf("MustParseTime should panic on invalid input")
		}
	}()
	MustParseTime(DateLayout, "not-a-date")
}

func TestParseDate(t *testing.T) {
	fallback := time.Date(2026, time.October, 14, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		input     string
		expected  string
		wantError bool
	}{
		{"Plain date", "2026-01-31", "2026-01-31", false},
		{"Timestamp", "2026-01-31T10:00:00Z", "2026-01-31", false},
		{"Empty uses fallback", "", "2026-10-14", false},
		{"Whitespace uses fallback", "   ", "2026-10-14", false},
		{"Invalid", "31/01/2026", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input, fallback)
			if tt.wantError {
				if err == nil {
					t.Errorf("ParseDate(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", tt.input, err)
			}
			if FormatDate(got) != tt.expected {
				t.Errorf("ParseDate(%q) = %s, expected %s", tt.input, FormatDate(got), tt.expected)
			}
		})
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		months   int
		expected string
	}{
		{"One month", "2026-01-15", 1, "2026-02-15"},
		{"Quarter", "2026-01-15", 3, "2026-04-15"},
		{"Year boundary", "2026-11-15", 2, "2027-01-15"},
		{"Day overflow normalizes", "2026-01-31", 1, "2026-03-03"},
		{"Zero months", "2026-05-01", 0, "2026-05-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddMonths(MustParseTime(DateLayout, tt.start), tt.months)
			if FormatDate(got) != tt.expected {
				t.Errorf("AddMonths(%s, %d) = %s, expected %s", tt.start, tt.months, FormatDate(got), tt.expected)
			}
		})
	}
}

func TestFormatters(t *testing.T) {
	d := MustParseTime(DateLayout, "2026-03-05")
	if got := FormatDisplay(d); got != "Mar 05, 2026" {
		t.Errorf("FormatDisplay = %q", got)
	}
	if got := MonthKey(d); got != "2026-03" {
		t.Errorf("MonthKey = %q", got)
	}
}
