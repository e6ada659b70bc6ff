package export

import (
	"fmt"
	"io"

	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	ReportSheet = "Installment Report"
	UnitsSheet  = "Units Data"
)

// UnitHeaders are the columns of the inventory export.
var UnitHeaders = []string{"project", "unit_type", "status", "area_range", "gross_area", "sales_value", "psm", "reservation_date"}

// ReportXLSX writes an installment report as an Excel workbook.
func ReportXLSX(w io.Writer, report Report) error {
	rows := make([][]interface{}, 0, len(report.Rows)+2)
	rows = append(rows, toCells(ReportHeaders))
	for _, row := range report.Rows {
		rows = append(rows, toCells(row.Cells()))
	}
	rows = append(rows, toCells(report.TotalRow()))
	return writeWorkbook(w, ReportSheet, rows, true)
}

// UnitsXLSX writes inventory units as an Excel workbook.
func UnitsXLSX(w io.Writer, units []topapi.InventoryUnit) error {
	rows := make([][]interface{}, 0, len(units)+1)
	rows = append(rows, toCells(UnitHeaders))
	for _, u := range units {
		rows = append(rows, []interface{}{
			u.Project,
			u.UnitType,
			u.Status,
			u.AreaRange,
			numberCell(u.GrossArea),
			numberCell(u.SalesValue),
			numberCell(u.PSM),
			u.ReservationDate,
		})
	}
	return writeWorkbook(w, UnitsSheet, rows, false)
}

func writeWorkbook(w io.Writer, sheet string, rows [][]interface{}, boldLast bool) (err error) {
	f := excelize.NewFile()
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close workbook: %w", closeErr)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return fmt.Errorf("failed to style header: %w", err)
		}
	}
	if boldLast && len(rows) > 1 {
		first, _ := excelize.CoordinatesToCellName(1, len(rows))
		last, _ := excelize.CoordinatesToCellName(len(rows[len(rows)-1]), len(rows))
		if err := f.SetCellStyle(sheet, first, last, bold); err != nil {
			return fmt.Errorf("failed to style total row: %w", err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func numberCell(n topapi.Number) interface{} {
	if !n.Valid {
		return "-"
	}
	return n.Value
}
