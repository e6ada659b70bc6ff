// Package export writes installment reports and inventory data as CSV, PDF
// and Excel files.
package export

import (
	"strings"
	"time"

	"github.com/iwvelando/top-planner/internal/installment"
	"github.com/iwvelando/top-planner/pkg/format"
)

// ReportHeaders are the column headers of an installment report.
var ReportHeaders = []string{"", "DATE", "INSTALLMENT", "AMOUNT"}

// Metadata identifies who exported a report and for which company.
type Metadata struct {
	ExportedBy  string
	CompanyName string
	Time        time.Time
}

// ReportRow is one line of an installment report.
type ReportRow struct {
	Label       string
	Date        string
	Installment string
	Amount      string
}

// Report is a printable installment schedule: the visible down payments and
// installments of a plan view followed by the total price.
type Report struct {
	Metadata
	UnitCode string
	Currency string
	Rows     []ReportRow
	Total    float64
}

// NewReport builds a report from a rendered plan.
func NewReport(view installment.View, meta Metadata) Report {
	if meta.Time.IsZero() {
		meta.Time = time.Now()
	}
	report := Report{
		Metadata: meta,
		UnitCode: view.UnitCode,
		Currency: view.Currency,
	}

	for _, dp := range view.DownPayments {
		if !dp.Visible {
			continue
		}
		report.Rows = append(report.Rows, ReportRow{
			Label:       dp.Label,
			Date:        dp.DueDate,
			Installment: dp.NeededDisplay,
			Amount:      format.Currency(dp.Amount, view.Currency),
		})
		report.Total += dp.Amount
	}
	for _, row := range view.VisibleRows() {
		report.Rows = append(report.Rows, ReportRow{
			Label:       row.Label,
			Date:        row.DueDate,
			Installment: row.CalculatedDisplay,
			Amount:      format.Currency(row.Amount, view.Currency),
		})
		report.Total += row.Amount
	}
	return report
}

// TotalRow is the closing "Total Price" line.
func (r Report) TotalRow() []string {
	return []string{"", "Total Price", "", format.Currency(r.Total, r.Currency)}
}

// HeaderLines are the metadata lines printed above the table.
func (r Report) HeaderLines() []string {
	return []string{
		"Exported By: " + orNA(r.ExportedBy),
		"Date & Time: " + r.Time.Format("02 Jan 2006, 15:04"),
		"Company Name: " + orNA(r.CompanyName),
		"Unit Code: " + orNA(r.UnitCode),
	}
}

// Cells returns a row as table cells.
func (row ReportRow) Cells() []string {
	return []string{row.Label, row.Date, row.Installment, row.Amount}
}

// FileName is the report file name for the given extension, such as
// Installment_Report_A-101.pdf.
func (r Report) FileName(ext string) string {
	return "Installment_Report_" + sanitize(orNA(r.UnitCode)) + "." + ext
}

// UnitsFileName is the inventory export file name for a date.
func UnitsFileName(date time.Time) string {
	return "Units_Export_" + date.Format("2006-01-02") + ".xlsx"
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, s)
}
