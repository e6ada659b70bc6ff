package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/iwvelando/top-planner/internal/topapi"
)

// ReportCSV writes an installment report as CSV.
func ReportCSV(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ReportHeaders); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}
	for _, row := range report.Rows {
		if err := cw.Write(row.Cells()); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}
	if err := cw.Write(report.TotalRow()); err != nil {
		return fmt.Errorf("failed to write report total: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// RecordsCSV writes market records as CSV. Headers come from the first
// record's keys in order; every value is quoted.
func RecordsCSV(w io.Writer, records []topapi.ExportRecord) error {
	if len(records) == 0 || records[0] == nil {
		return nil
	}

	headers := make([]string, 0, records[0].Len())
	for pair := records[0].Oldest(); pair != nil; pair = pair.Next() {
		headers = append(headers, pair.Key)
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, ","))
	for _, record := range records {
		b.WriteByte('\n')
		for i, header := range headers {
			if i > 0 {
				b.WriteByte(',')
			}
			var value interface{}
			if record != nil {
				value, _ = record.Get(header)
			}
			b.WriteString(quote(cellText(value)))
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

func cellText(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// quote wraps every value in double quotes, which the market export format
// requires; encoding/csv quotes only fields that need it.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
