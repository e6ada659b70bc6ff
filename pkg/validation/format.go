// Package validation provides common validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/top-planner/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	if format != constants.OutputFormatPretty && format != constants.OutputFormatCSV {
		return fmt.Errorf("expected output format of %s or %s, got %s",
			constants.OutputFormatPretty, constants.OutputFormatCSV, format)
	}
	return nil
}

// ValidateExportFormat checks if the export format is csv, pdf or xlsx.
func ValidateExportFormat(format string) error {
	switch format {
	case constants.ExportFormatCSV, constants.ExportFormatPDF, constants.ExportFormatXLSX:
		return nil
	}
	return fmt.Errorf("expected export format of %s, %s or %s, got %s",
		constants.ExportFormatCSV, constants.ExportFormatPDF, constants.ExportFormatXLSX, format)
}

// ValidatePercentage checks that a user-entered percentage lies in [0, 100].
func ValidatePercentage(name string, value float64) error {
	if value < 0 || value > constants.FullPercentage {
		return fmt.Errorf("%s must be between 0 and %.0f, got %g", name, constants.FullPercentage, value)
	}
	return nil
}
