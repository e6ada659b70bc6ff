package inventory

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/iwvelando/top-planner/internal/dashboard"
	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/datetime"
	"github.com/iwvelando/top-planner/pkg/format"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Chart identifiers.
const (
	ChartSalesTrend = "salesTrendChart"
	ChartInventory  = "inventoryChart"
	ChartUnitType   = "unitTypeChart"
	ChartScatter    = "scatterChart"
)

// UnknownLabel groups units with no status or unit type.
const UnknownLabel = "Unknown"

const (
	seriesColor = "#4472C4"
	seriesFill  = "rgba(68, 114, 196, 0.1)"
)

var statusColors = []string{"#5B9BD5", "#ED7D31", "#A5A5A5", "#FFC000", "#70AD47"}

// KPIs is the inventory summary of a unit set.
type KPIs struct {
	TotalUnits  int     `json:"total_units"`
	SoldUnits   int     `json:"sold_units"`
	SoldPercent float64 `json:"sold_percent"`
	TotalValue  float64 `json:"total_value"`
	AvgPSM      float64 `json:"avg_psm"`
}

// Cards renders the KPIs as display cards.
func (k KPIs) Cards() []dashboard.KPICard {
	sold := "0%"
	if k.TotalUnits > 0 {
		sold = fmt.Sprintf("%.1f%%", k.SoldPercent)
	}
	return []dashboard.KPICard{
		{Title: "Total Units", Value: format.Thousands(float64(k.TotalUnits))},
		{Title: "Sold Units", Value: format.Thousands(float64(k.SoldUnits))},
		{Title: "Sold", Value: sold},
		{Title: "Inventory Value", Value: format.Millions(k.TotalValue, "$")},
		{Title: "Average PSM", Value: fmt.Sprintf("$%.0f", k.AvgPSM)},
	}
}

// Summarize computes the KPIs of units. Invalid sales values and PSMs count
// as zero; the PSM average is taken over every unit.
func Summarize(units []topapi.InventoryUnit) KPIs {
	k := KPIs{TotalUnits: len(units)}
	psm := 0.0
	for _, u := range units {
		if u.Status == constants.SoldStatus {
			k.SoldUnits++
		}
		k.TotalValue += u.SalesValue.Float()
		psm += u.PSM.Float()
	}
	if k.TotalUnits > 0 {
		k.SoldPercent = float64(k.SoldUnits) * 100 / float64(k.TotalUnits)
		k.AvgPSM = psm / float64(k.TotalUnits)
	}
	return k
}

// Charts builds the four inventory charts.
func Charts(units []topapi.InventoryUnit) []dashboard.Chart {
	return []dashboard.Chart{
		salesTrend(units),
		statusChart(units),
		unitTypeChart(units),
		scatterChart(units),
	}
}

// reservationMonth returns the YYYY-MM bucket of a unit's reservation, or
// false when the unit has no readable reservation date.
func reservationMonth(u topapi.InventoryUnit) (string, bool) {
	if strings.TrimSpace(u.ReservationDate) == "" {
		return "", false
	}
	t, err := datetime.ParseDate(u.ReservationDate, time.Time{})
	if err != nil {
		return "", false
	}
	return datetime.MonthKey(t), true
}

func salesTrend(units []topapi.InventoryUnit) dashboard.Chart {
	sales := make(map[string]float64)
	for _, u := range units {
		month, ok := reservationMonth(u)
		if !ok {
			continue
		}
		sales[month] += u.SalesValue.Float()
	}

	months := make([]string, 0, len(sales))
	for m := range sales {
		months = append(months, m)
	}
	slices.Sort(months)
	data := make([]float64, len(months))
	for i, m := range months {
		data[i] = sales[m]
	}
	return dashboard.Chart{
		Key:    ChartSalesTrend,
		Type:   dashboard.ChartLine,
		Title:  "Sales Trend",
		Labels: months,
		Datasets: []dashboard.Dataset{{
			Label:           "Sales Value",
			Data:            data,
			BorderColor:     []string{seriesColor},
			BackgroundColor: []string{seriesFill},
			Fill:            true,
			Tension:         0.3,
		}},
	}
}

func countBy(units []topapi.InventoryUnit, field func(topapi.InventoryUnit) string) ([]string, []float64) {
	counts := orderedmap.New[string, float64]()
	for _, u := range units {
		key := field(u)
		if key == "" {
			key = UnknownLabel
		}
		n, _ := counts.Get(key)
		counts.Set(key, n+1)
	}

	labels := make([]string, 0, counts.Len())
	data := make([]float64, 0, counts.Len())
	for pair := counts.Oldest(); pair != nil; pair = pair.Next() {
		labels = append(labels, pair.Key)
		data = append(data, pair.Value)
	}
	return labels, data
}

func statusChart(units []topapi.InventoryUnit) dashboard.Chart {
	labels, data := countBy(units, func(u topapi.InventoryUnit) string { return u.Status })
	return dashboard.Chart{
		Key:    ChartInventory,
		Type:   dashboard.ChartDoughnut,
		Title:  "Inventory Status",
		Labels: labels,
		Datasets: []dashboard.Dataset{{
			Data:            data,
			BackgroundColor: statusColors,
		}},
	}
}

func unitTypeChart(units []topapi.InventoryUnit) dashboard.Chart {
	labels, data := countBy(units, func(u topapi.InventoryUnit) string { return u.UnitType })
	return dashboard.Chart{
		Key:    ChartUnitType,
		Type:   dashboard.ChartBar,
		Title:  "Unit Type Distribution",
		Labels: labels,
		Datasets: []dashboard.Dataset{{
			Label:           "Units",
			Data:            data,
			BackgroundColor: []string{seriesColor},
		}},
	}
}

func scatterChart(units []topapi.InventoryUnit) dashboard.Chart {
	points := make([]dashboard.Point, len(units))
	for i, u := range units {
		points[i] = dashboard.Point{X: u.GrossArea.Float(), Y: u.SalesValue.Float()}
	}
	return dashboard.Chart{
		Key:   ChartScatter,
		Type:  dashboard.ChartScatter,
		Title: "Price vs Area",
		Datasets: []dashboard.Dataset{{
			Label:           "Price vs Area",
			Points:          points,
			BackgroundColor: []string{seriesColor},
		}},
	}
}

// TableRow is one line of the units table. Missing values render as "-".
type TableRow struct {
	Project         string `json:"project"`
	UnitType        string `json:"unit_type"`
	GrossArea       string `json:"gross_area"`
	Status          string `json:"status"`
	SalesValue      string `json:"sales_value"`
	PSM             string `json:"psm"`
	ReservationDate string `json:"reservation_date"`
}

// Table renders units as table rows.
func Table(units []topapi.InventoryUnit) []TableRow {
	rows := make([]TableRow, len(units))
	for i, u := range units {
		rows[i] = TableRow{
			Project:         orDash(u.Project),
			UnitType:        orDash(u.UnitType),
			GrossArea:       numberText(u.GrossArea),
			Status:          orDash(u.Status),
			SalesValue:      dollars(u.SalesValue),
			PSM:             dollars(u.PSM),
			ReservationDate: dateText(u.ReservationDate),
		}
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func numberText(n topapi.Number) string {
	if !n.Valid {
		return "-"
	}
	return format.Decimal(n.Value)
}

func dollars(n topapi.Number) string {
	if !n.Valid {
		return "-"
	}
	return "$" + format.Thousands(n.Value)
}

func dateText(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return "-"
	}
	t, err := datetime.ParseDate(raw, time.Time{})
	if err != nil {
		return "-"
	}
	return t.Format("1/2/2006")
}
