package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

var reportColumnWidths = []float64{35, 45, 45, 45}

// ReportPDF writes an installment report as a landscape A4 PDF.
func ReportPDF(w io.Writer, report Report) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(report.FileName("pdf"), true)
	pdf.AddPage()
	pdf.SetFont("Times", "", 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	y := 15.0
	for _, line := range report.HeaderLines() {
		pdf.Text(14, y, tr(line))
		y += 7
	}
	pdf.Line(14, y-4, 280, y-4)

	pdf.SetXY(14, y)
	pdf.SetFont("Times", "B", 10)
	writeRow(pdf, tr, ReportHeaders)

	pdf.SetFont("Times", "", 10)
	for _, row := range report.Rows {
		writeRow(pdf, tr, row.Cells())
	}

	pdf.SetFont("Times", "B", 10)
	writeRow(pdf, tr, report.TotalRow())

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func writeRow(pdf *fpdf.Fpdf, tr func(string) string, cells []string) {
	pdf.SetX(14)
	for i, width := range reportColumnWidths {
		text := ""
		if i < len(cells) {
			text = cells[i]
		}
		pdf.CellFormat(width, 10, tr(text), "1", 0, "CM", false, 0, "")
	}
	pdf.Ln(-1)
}
