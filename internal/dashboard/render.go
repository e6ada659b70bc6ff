package dashboard

import (
	"fmt"
	"strconv"

	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/format"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ChartType is the kind of chart a Chart is drawn as.
type ChartType string

// Chart kinds.
const (
	ChartBar           ChartType = "bar"
	ChartHorizontalBar ChartType = "horizontalBar"
	ChartDoughnut      ChartType = "doughnut"
	ChartPie           ChartType = "pie"
	ChartScatter       ChartType = "scatter"
	ChartLine          ChartType = "line"
)

// Chart keys.
const (
	KeyPriceByAsset         = "price_by_asset"
	KeyUnitsByDeveloper     = "units_by_developer"
	KeyPriceVsBUA           = "price_vs_bua"
	KeyUnitsByLocation      = "units_by_location"
	KeyUnitTypeDistribution = "unit_type_distribution"
	KeyMonthlyTrends        = "monthly_trends"
)

// Default palette alphas.
const (
	FillAlpha   = 0.7
	BorderAlpha = 0.8
)

var palette = [][3]int{
	{37, 99, 235},   // blue
	{16, 185, 129},  // green
	{245, 158, 11},  // yellow
	{239, 68, 68},   // red
	{139, 92, 246},  // purple
	{6, 182, 212},   // cyan
	{132, 204, 22},  // lime
	{249, 115, 22},  // orange
	{236, 72, 153},  // pink
	{107, 114, 128}, // gray
}

// GenerateColors returns count palette colors with the given alpha, cycling
// through the palette.
func GenerateColors(count int, alpha float64) []string {
	colors := make([]string, count)
	a := strconv.FormatFloat(alpha, 'f', -1, 64)
	for i := range colors {
		c := palette[i%len(palette)]
		colors[i] = fmt.Sprintf("rgba(%d, %d, %d, %s)", c[0], c[1], c[2], a)
	}
	return colors
}

// KPICard is one rendered KPI.
type KPICard struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Color string `json:"color"`
}

// Point is one scatter point.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dataset is one series of a chart.
type Dataset struct {
	Label           string    `json:"label,omitempty"`
	Data            []float64 `json:"data,omitempty"`
	Points          []Point   `json:"points,omitempty"`
	Percentages     []string  `json:"percentages,omitempty"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	BorderColor     []string  `json:"borderColor,omitempty"`
	YAxisID         string    `json:"yAxisID,omitempty"`
	Fill            bool      `json:"fill,omitempty"`
	Tension         float64   `json:"tension,omitempty"`
}

// Axis is a titled chart axis.
type Axis struct {
	ID       string `json:"id"`
	Position string `json:"position"`
	Title    string `json:"title"`
}

// Chart is a rendered chart configuration.
type Chart struct {
	Key       string    `json:"key"`
	Type      ChartType `json:"type"`
	Title     string    `json:"title"`
	Labels    []string  `json:"labels,omitempty"`
	Datasets  []Dataset `json:"datasets"`
	Axes      []Axis    `json:"axes,omitempty"`
	IndexAxis string    `json:"indexAxis,omitempty"`
	Legend    string    `json:"legend,omitempty"`
}

// View is the rendered dashboard.
type View struct {
	Filters Filters   `json:"filters"`
	KPIs    []KPICard `json:"kpis"`
	Charts  []Chart   `json:"charts"`
}

// Chart returns the chart with the given key.
func (v *View) Chart(key string) (Chart, bool) {
	for _, c := range v.Charts {
		if c.Key == key {
			return c, true
		}
	}
	return Chart{}, false
}

// FormatNumber abbreviates a KPI value; a missing value renders as "0".
func FormatNumber(n topapi.Number) string {
	if !n.Valid {
		return "0"
	}
	return format.Abbreviate(n.Value)
}

// FormatCurrency is FormatNumber followed by the canonical currency code.
func FormatCurrency(n topapi.Number) string {
	if !n.Valid {
		return "0 " + constants.CanonicalCurrency
	}
	return format.AbbreviatedCurrency(n.Value, constants.CanonicalCurrency)
}

func rawValue(n topapi.Number) string {
	if !n.Valid {
		return "0"
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

// RenderKPIs renders the eight KPI cards.
func RenderKPIs(k *topapi.KPIs) []KPICard {
	if k == nil {
		k = &topapi.KPIs{}
	}
	return []KPICard{
		{Title: "Total Units", Value: FormatNumber(k.TotalUnits), Color: "#2563eb"},
		{Title: "Total Projects", Value: FormatNumber(k.TotalProjects), Color: "#10b981"},
		{Title: "Average Price", Value: FormatCurrency(k.AvgPrice), Color: "#f59e0b"},
		{Title: "Average PSM", Value: FormatCurrency(k.AvgPSM), Color: "#ef4444"},
		{Title: "Average BUA", Value: rawValue(k.AvgBUA) + " m²", Color: "#8b5cf6"},
		{Title: "Avg Down Payment", Value: rawValue(k.AvgDownPayment) + "%", Color: "#06b6d4"},
		{Title: "Developers", Value: FormatNumber(k.TotalDevelopers), Color: "#84cc16"},
		{Title: "Locations", Value: FormatNumber(k.TotalLocations), Color: "#f97316"},
	}
}

// RenderCharts renders the six chart configurations.
func RenderCharts(c *topapi.Charts) []Chart {
	if c == nil {
		c = &topapi.Charts{}
	}
	return []Chart{
		priceByAsset(c.PriceByAsset),
		unitsByDeveloper(c.UnitsByDeveloper),
		priceVsBUA(c.PriceVsBUA),
		unitsByLocation(c.UnitsByLocation),
		unitTypeDistribution(c.UnitTypeDistribution),
		monthlyTrends(c.MonthlyTrends),
	}
}

// Render renders KPI cards and charts for filters.
func Render(filters Filters, k *topapi.KPIs, c *topapi.Charts) *View {
	return &View{Filters: filters, KPIs: RenderKPIs(k), Charts: RenderCharts(c)}
}

func priceByAsset(rows []topapi.AssetPrice) Chart {
	labels := make([]string, len(rows))
	data := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = r.AssetType
		data[i] = r.AvgPrice.Float()
	}
	return Chart{
		Key:    KeyPriceByAsset,
		Type:   ChartBar,
		Title:  "Average Price by Asset Type",
		Labels: labels,
		Datasets: []Dataset{{
			Label:           "Average Price (EGP)",
			Data:            data,
			BackgroundColor: GenerateColors(len(rows), FillAlpha),
			BorderColor:     GenerateColors(len(rows), BorderAlpha),
		}},
	}
}

func unitsByDeveloper(rows []topapi.DeveloperCount) Chart {
	labels := make([]string, len(rows))
	data := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = r.DeveloperName
		data[i] = r.Count.Float()
	}
	return Chart{
		Key:    KeyUnitsByDeveloper,
		Type:   ChartDoughnut,
		Title:  "Units by Developer",
		Labels: labels,
		Legend: "bottom",
		Datasets: []Dataset{{
			Data:            data,
			Percentages:     SharePercentages(data),
			BackgroundColor: GenerateColors(len(rows), FillAlpha),
			BorderColor:     []string{"#ffffff"},
		}},
	}
}

func priceVsBUA(rows []topapi.PricePoint) Chart {
	groups := orderedmap.New[string, []Point]()
	for _, r := range rows {
		points, _ := groups.Get(r.AssetType)
		groups.Set(r.AssetType, append(points, Point{X: r.BUA.Float(), Y: r.UnitPrice.Float()}))
	}

	fills := GenerateColors(groups.Len(), FillAlpha)
	borders := GenerateColors(groups.Len(), BorderAlpha)
	datasets := make([]Dataset, 0, groups.Len())
	i := 0
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		datasets = append(datasets, Dataset{
			Label:           pair.Key,
			Points:          pair.Value,
			BackgroundColor: []string{fills[i]},
			BorderColor:     []string{borders[i]},
		})
		i++
	}
	return Chart{
		Key:      KeyPriceVsBUA,
		Type:     ChartScatter,
		Title:    "Price vs BUA",
		Legend:   "bottom",
		Datasets: datasets,
		Axes: []Axis{
			{ID: "x", Position: "bottom", Title: "BUA (m²)"},
			{ID: "y", Position: "left", Title: "Price (EGP)"},
		},
	}
}

func unitsByLocation(rows []topapi.LocationCount) Chart {
	labels := make([]string, len(rows))
	data := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = r.Location
		data[i] = r.Count.Float()
	}
	return Chart{
		Key:       KeyUnitsByLocation,
		Type:      ChartHorizontalBar,
		Title:     "Units by Location",
		Labels:    labels,
		IndexAxis: "y",
		Datasets: []Dataset{{
			Label:           "Number of Units",
			Data:            data,
			BackgroundColor: GenerateColors(len(rows), FillAlpha),
			BorderColor:     GenerateColors(len(rows), BorderAlpha),
		}},
	}
}

func unitTypeDistribution(rows []topapi.UnitTypeCount) Chart {
	labels := make([]string, len(rows))
	data := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = r.UnitType
		data[i] = r.Count.Float()
	}
	return Chart{
		Key:    KeyUnitTypeDistribution,
		Type:   ChartPie,
		Title:  "Unit Type Distribution",
		Labels: labels,
		Legend: "bottom",
		Datasets: []Dataset{{
			Data:            data,
			Percentages:     SharePercentages(data),
			BackgroundColor: GenerateColors(len(rows), FillAlpha),
			BorderColor:     []string{"#ffffff"},
		}},
	}
}

func monthlyTrends(rows []topapi.MonthlyTrend) Chart {
	labels := make([]string, len(rows))
	counts := make([]float64, len(rows))
	prices := make([]float64, len(rows))
	for i, r := range rows {
		labels[i] = r.Month
		counts[i] = r.Count.Float()
		prices[i] = r.AvgPrice.Float()
	}
	return Chart{
		Key:    KeyMonthlyTrends,
		Type:   ChartLine,
		Title:  "Monthly Trends",
		Labels: labels,
		Datasets: []Dataset{
			{
				Label:           "Units Count",
				Data:            counts,
				BorderColor:     []string{"#2563eb"},
				BackgroundColor: []string{"rgba(37, 99, 235, 0.1)"},
				Fill:            true,
				Tension:         0.4,
				YAxisID:         "y",
			},
			{
				Label:           "Average Price",
				Data:            prices,
				BorderColor:     []string{"#10b981"},
				BackgroundColor: []string{"rgba(16, 185, 129, 0.1)"},
				Tension:         0.4,
				YAxisID:         "y1",
			},
		},
		Axes: []Axis{
			{ID: "y", Position: "left", Title: "Units Count"},
			{ID: "y1", Position: "right", Title: "Average Price (EGP)"},
		},
	}
}

// SharePercentages renders each value's share of the total with one decimal.
func SharePercentages(data []float64) []string {
	total := 0.0
	for _, v := range data {
		total += v
	}
	out := make([]string, len(data))
	for i, v := range data {
		share := 0.0
		if total != 0 {
			share = v * 100 / total
		}
		out[i] = fmt.Sprintf("%.1f", share)
	}
	return out
}
