package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/iwvelando/top-planner/internal/cache"
	"github.com/iwvelando/top-planner/internal/export"
	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const otherUnits = `{"units": [
  {"project": "Lagoon", "unit_type": "Chalet", "status": "Available", "area_range": "80-100", "gross_area": 90, "sales_value": 1500000, "psm": 16000, "reservation_date": ""}
]}`

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchCompanyUnits(ctx context.Context, companyID string) ([]topapi.InventoryUnit, error) {
	args := m.Called(ctx, companyID)
	units, _ := args.Get(0).([]topapi.InventoryUnit)
	return units, args.Error(1)
}

func sampleUnits(t *testing.T) []topapi.InventoryUnit {
	t.Helper()
	var payload struct {
		Units []topapi.InventoryUnit `json:"units"`
	}
	require.NoError(t, json.Unmarshal([]byte(testutil.SampleUnits), &payload))
	return payload.Units
}

func newBackendInventory(t *testing.T, c cache.Cache) (*Inventory, *testutil.Backend) {
	t.Helper()
	backend := testutil.NewBackend(t)
	backend.SetUnits("1", testutil.SampleUnits)
	backend.SetUnits("2", otherUnits)
	client, err := topapi.NewClient(topapi.Options{BaseURL: backend.URL()}, nil)
	require.NoError(t, err)
	return New(client, c, nil), backend
}

func TestOptionsAndFilter(t *testing.T) {
	units := sampleUnits(t)

	options := Options(units)
	assert.Equal(t, []string{"Palm", "Oasis"}, options.Projects)
	assert.Equal(t, []string{"Apartment", "Villa"}, options.UnitTypes)
	assert.Equal(t, []string{"Contracted", "Available"}, options.Statuses)
	assert.Equal(t, []string{"100-150", "200-250"}, options.Areas)

	tests := []struct {
		name      string
		selection Selection
		want      int
	}{
		{"empty selection matches everything", Selection{}, 4},
		{"all options selected drops units with blank facets", options, 3},
		{"single project", Selection{Projects: []string{"Palm"}}, 2},
		{"conjunctive facets", Selection{Projects: []string{"Oasis"}, Statuses: []string{"Contracted"}}, 1},
		{"no match", Selection{UnitTypes: []string{"Villa"}, Areas: []string{"100-150"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Filter(units, tt.selection), tt.want)
		})
	}
}

func TestSummarize(t *testing.T) {
	k := Summarize(sampleUnits(t))
	assert.Equal(t, 4, k.TotalUnits)
	assert.Equal(t, 2, k.SoldUnits)
	assert.InDelta(t, 50.0, k.SoldPercent, 1e-9)
	assert.InDelta(t, 11300000.0, k.TotalValue, 1e-6)
	assert.InDelta(t, 17500.0, k.AvgPSM, 1e-9)

	cards := k.Cards()
	require.Len(t, cards, 5)
	assert.Equal(t, "4", cards[0].Value)
	assert.Equal(t, "2", cards[1].Value)
	assert.Equal(t, "50.0%", cards[2].Value)
	assert.Equal(t, "$11.3M", cards[3].Value)
	assert.Equal(t, "$17500", cards[4].Value)

	empty := Summarize(nil).Cards()
	assert.Equal(t, "0%", empty[2].Value)
	assert.Equal(t, "$0.0M", empty[3].Value)
	assert.Equal(t, "$0", empty[4].Value)
}

func TestCharts(t *testing.T) {
	charts := Charts(sampleUnits(t))
	require.Len(t, charts, 4)

	trend := charts[0]
	assert.Equal(t, ChartSalesTrend, trend.Key)
	assert.Equal(t, []string{"2026-01", "2026-02"}, trend.Labels)
	assert.Equal(t, []float64{2800000, 3000000}, trend.Datasets[0].Data)

	status := charts[1]
	assert.Equal(t, []string{"Contracted", "Available", UnknownLabel}, status.Labels)
	assert.Equal(t, []float64{2, 1, 1}, status.Datasets[0].Data)

	types := charts[2]
	assert.Equal(t, []string{"Apartment", "Villa"}, types.Labels)
	assert.Equal(t, []float64{3, 1}, types.Datasets[0].Data)

	scatter := charts[3]
	require.Len(t, scatter.Datasets[0].Points, 4)
	assert.Equal(t, 220.0, scatter.Datasets[0].Points[1].X)
	assert.Equal(t, 5500000.0, scatter.Datasets[0].Points[1].Y)
	assert.Zero(t, scatter.Datasets[0].Points[3].X)
	assert.Zero(t, scatter.Datasets[0].Points[3].Y)
}

func TestTable(t *testing.T) {
	rows := Table(sampleUnits(t))
	require.Len(t, rows, 4)
	assert.Equal(t, TableRow{
		Project:         "Palm",
		UnitType:        "Apartment",
		GrossArea:       "120",
		Status:          "Contracted",
		SalesValue:      "$3,000,000",
		PSM:             "$25,000",
		ReservationDate: "2/10/2026",
	}, rows[0])
	assert.Equal(t, "-", rows[1].ReservationDate)
	assert.Equal(t, "1/20/2026", rows[2].ReservationDate)
	assert.Equal(t, "-", rows[3].GrossArea)
	assert.Equal(t, "-", rows[3].Status)
	assert.Equal(t, "-", rows[3].SalesValue)
	assert.Equal(t, "$0", rows[3].PSM)
}

func TestLoadResetsFacetsOnCompanySwitch(t *testing.T) {
	inv, _ := newBackendInventory(t, nil)
	ctx := context.Background()

	view, err := inv.Load(ctx, "1", false)
	require.NoError(t, err)
	assert.Equal(t, "1", view.CompanyID)
	assert.Equal(t, Selection{}, view.Selected)
	assert.Len(t, view.Table, 4)

	view = inv.Select(FacetProject, []string{"Palm"})
	assert.Len(t, view.Units, 2)

	view, err = inv.Load(ctx, "2", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Lagoon"}, view.Options.Projects)
	assert.Equal(t, Selection{}, view.Selected)
	assert.Len(t, view.Units, 1)

	view, err = inv.Load(ctx, "", false)
	require.NoError(t, err)
	assert.Empty(t, view.CompanyID)
	assert.Empty(t, view.Units)
	assert.Equal(t, "0", view.KPIs[0].Value)
}

func TestLoadUsesCache(t *testing.T) {
	c := cache.NewMemoryCache(0)
	inv, backend := newBackendInventory(t, c)
	ctx := context.Background()

	_, err := inv.Load(ctx, "1", false)
	require.NoError(t, err)

	other, err := topapi.NewClient(topapi.Options{BaseURL: backend.URL()}, nil)
	require.NoError(t, err)
	second := New(other, c, nil)
	view, err := second.Load(ctx, "1", false)
	require.NoError(t, err)
	assert.Len(t, view.Units, 4)
	assert.Equal(t, 1, backend.Calls(constants.CompanyUnitsPath))

	_, err = second.Load(ctx, "1", true)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(constants.CompanyUnitsPath))

	raw, ok := c.Get(ctx, cache.UnitsKey("1"))
	require.True(t, ok)
	var cached []topapi.InventoryUnit
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Len(t, cached, 4)
	assert.False(t, cached[3].SalesValue.Valid)
}

func TestLoadFailure(t *testing.T) {
	fetcher := &mockFetcher{}
	inv := New(fetcher, nil, nil)
	boom := errors.New("boom")
	fetcher.On("FetchCompanyUnits", mock.Anything, "7").Return(nil, boom)

	_, err := inv.Load(context.Background(), "7", false)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, inv.CompanyID())
	fetcher.AssertExpectations(t)
}

func TestChartClicks(t *testing.T) {
	fetcher := &mockFetcher{}
	inv := New(fetcher, nil, nil)
	fetcher.On("FetchCompanyUnits", mock.Anything, "1").Return(sampleUnits(t), nil).Once()
	_, err := inv.Load(context.Background(), "1", false)
	require.NoError(t, err)

	view, err := inv.Click(ChartInventory, "Contracted")
	require.NoError(t, err)
	assert.Equal(t, []string{"Contracted"}, view.Selected.Statuses)
	assert.Len(t, view.Units, 2)
	assert.Equal(t, "100.0%", view.KPIs[2].Value)

	view, err = inv.Click(ChartUnitType, "Villa")
	require.NoError(t, err)
	assert.Equal(t, []string{"Villa"}, view.Selected.UnitTypes)
	assert.Empty(t, view.Units)

	// A label the facet does not offer leaves the facet unconstrained.
	view, err = inv.Click(ChartInventory, UnknownLabel)
	require.NoError(t, err)
	assert.Empty(t, view.Selected.Statuses)
	assert.Len(t, view.Units, 1)

	_, err = inv.Click(ChartScatter, "x")
	assert.ErrorIs(t, err, ErrUnknownChart)

	inv.SetSelection(Selection{})
	view, err = inv.ClickLegend(ChartInventory, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Available"}, view.Selected.Statuses)

	view, err = inv.ClickLegend(ChartSalesTrend, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Selected.Projects)

	view, err = inv.ClickLegend(ChartScatter, 0)
	require.NoError(t, err)
	assert.Empty(t, view.Selected.Areas)
}

func TestFacetMapping(t *testing.T) {
	tests := []struct {
		chart  string
		legend Facet
		click  Facet
		ok     bool
	}{
		{ChartInventory, FacetStatus, FacetStatus, true},
		{ChartUnitType, FacetUnitType, FacetUnitType, true},
		{ChartSalesTrend, FacetProject, "", false},
		{ChartScatter, FacetArea, "", false},
		{"other", FacetProject, "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.legend, LegendFacet(tt.chart), tt.chart)
		f, ok := ClickFacet(tt.chart)
		assert.Equal(t, tt.click, f, tt.chart)
		assert.Equal(t, tt.ok, ok, tt.chart)
	}
}

func TestExport(t *testing.T) {
	inv, _ := newBackendInventory(t, nil)

	var buf bytes.Buffer
	_, err := inv.Export(&buf)
	assert.ErrorIs(t, err, ErrNoCompany)

	_, err = inv.Load(context.Background(), "1", false)
	require.NoError(t, err)
	inv.Select(FacetProject, []string{"Palm"})

	n, err := inv.Export(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(export.UnitsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
