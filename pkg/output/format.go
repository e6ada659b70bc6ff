// Package output provides utilities for formatting and displaying plans,
// dashboards and inventories on a terminal.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/iwvelando/top-planner/internal/dashboard"
	"github.com/iwvelando/top-planner/internal/installment"
	"github.com/iwvelando/top-planner/internal/inventory"
	"github.com/iwvelando/top-planner/pkg/format"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#D1D5DB")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func field(label, value string) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(value)
}

// PrettyPlan writes a human-readable installment plan.
func PrettyPlan(w io.Writer, v installment.View) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("--- Installment plan for unit %s ---", v.UnitCode)))
	b.WriteString("\n")

	tenor := fmt.Sprintf("%g years", v.Tenor)
	if v.CashMode {
		tenor = "cash"
	}
	if v.SpecialOffer != "" {
		tenor = v.SpecialOffer
	}
	b.WriteString(field("Tenor", tenor) + "  " + field("Frequency", v.Frequency) + "  " + field("Scheme", v.Scheme) + "\n")
	b.WriteString(field("Contract date", v.ContractDate))
	if v.DeliveryDate != "" {
		b.WriteString("  " + field("Delivery", v.DeliveryDate))
	}
	b.WriteString("\n")

	t := newTable("", "DATE", "INSTALLMENT", "AMOUNT", "CUMULATIVE")
	for _, dp := range v.DownPayments {
		if dp.Visible {
			t.Row(dp.Label, dp.DueDate, dp.NeededDisplay, format.Currency(dp.Amount, v.Currency), "")
		}
	}
	for _, row := range v.VisibleRows() {
		label := row.Label
		if row.Delivery {
			label += " (delivery)"
		}
		t.Row(label, row.DueDate, row.CalculatedDisplay, format.Currency(row.Amount, v.Currency), row.CumulativeDisplay)
	}
	b.WriteString(t.String())
	b.WriteString("\n")

	b.WriteString(field("Total", format.Decimal(v.Total)+"%"))
	if v.TotalExceeded {
		b.WriteString("  " + errorStyle.Render("the total cannot exceed 100"))
	}
	b.WriteString("\n")
	b.WriteString(field("Final price", format.Currency(v.FinalPrice, v.Currency)) + "  " + field("Change", v.PercentageChange) + "\n")
	if v.NewNPV != "" {
		b.WriteString(field("NPV", v.NewNPV) + "\n")
	}
	if v.MaintenanceFees != "" && v.MaintenanceFees != "-" {
		b.WriteString(field("Maintenance", v.MaintenanceFees) + "\n")
	}
	if v.GasFees != "" && v.GasFees != "-" {
		b.WriteString(field("Gas", v.GasFees) + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvPlan writes an installment plan in comma-separated value format.
func CsvPlan(w io.Writer, v installment.View) error {
	var b strings.Builder
	b.WriteString(`"label","date","installment","amount","cumulative"` + "\n")
	for _, dp := range v.DownPayments {
		if dp.Visible {
			fmt.Fprintf(&b, `"%s","%s","%s","%.2f",""`+"\n", dp.Label, dp.DueDate, dp.NeededDisplay, dp.Amount)
		}
	}
	for _, row := range v.VisibleRows() {
		fmt.Fprintf(&b, `"%s","%s","%s","%.2f","%s"`+"\n", row.Label, row.DueDate, row.CalculatedDisplay, row.Amount, row.CumulativeDisplay)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// PrettyDashboard writes the dashboard KPI cards and a summary of each chart.
func PrettyDashboard(w io.Writer, v *dashboard.View) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("--- Market dashboard ---"))
	b.WriteString("\n")
	writeCards(&b, v.KPIs)

	for _, c := range v.Charts {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render(c.Title))
		b.WriteString("\n")
		b.WriteString(chartTable(c).String())
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvDashboard writes the dashboard KPI cards in comma-separated value format.
func CsvDashboard(w io.Writer, v *dashboard.View) error {
	var b strings.Builder
	b.WriteString(`"kpi","value"` + "\n")
	for _, card := range v.KPIs {
		fmt.Fprintf(&b, `"%s","%s"`+"\n", card.Title, card.Value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// PrettyInventory writes the inventory KPI cards and the units table.
func PrettyInventory(w io.Writer, v *inventory.View) error {
	var b strings.Builder
	company := v.CompanyID
	if company == "" {
		company = "none"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("--- Inventory for company %s ---", company)))
	b.WriteString("\n")
	writeCards(&b, v.KPIs)

	t := newTable("Project", "Unit Type", "Area", "Status", "Sales Value", "PSM", "Reservation")
	for _, row := range v.Table {
		t.Row(row.Project, row.UnitType, row.GrossArea, row.Status, row.SalesValue, row.PSM, row.ReservationDate)
	}
	b.WriteString(t.String())
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// CsvInventory writes the inventory units table in comma-separated value format.
func CsvInventory(w io.Writer, v *inventory.View) error {
	var b strings.Builder
	b.WriteString(`"project","unit_type","gross_area","status","sales_value","psm","reservation_date"` + "\n")
	for _, row := range v.Table {
		fmt.Fprintf(&b, `"%s","%s","%s","%s","%s","%s","%s"`+"\n",
			row.Project, row.UnitType, row.GrossArea, row.Status, row.SalesValue, row.PSM, row.ReservationDate)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeCards(b *strings.Builder, cards []dashboard.KPICard) {
	parts := make([]string, len(cards))
	for i, card := range cards {
		parts[i] = field(card.Title, card.Value)
	}
	b.WriteString(strings.Join(parts, "\n"))
	b.WriteString("\n")
}

func chartTable(c dashboard.Chart) *table.Table {
	if c.Type == dashboard.ChartScatter {
		t := newTable("Series", "X", "Y")
		for _, ds := range c.Datasets {
			for _, p := range ds.Points {
				t.Row(ds.Label, format.Decimal(p.X), format.Decimal(p.Y))
			}
		}
		return t
	}

	headers := []string{""}
	for i, ds := range c.Datasets {
		label := ds.Label
		if label == "" {
			label = fmt.Sprintf("Series %d", i+1)
		}
		headers = append(headers, label)
	}
	t := newTable(headers...)
	for i, label := range c.Labels {
		row := []string{label}
		for _, ds := range c.Datasets {
			cell := ""
			if i < len(ds.Data) {
				cell = format.Decimal(ds.Data[i])
			}
			if i < len(ds.Percentages) {
				cell += " (" + ds.Percentages[i] + "%)"
			}
			row = append(row, cell)
		}
		t.Row(row...)
	}
	return t
}
