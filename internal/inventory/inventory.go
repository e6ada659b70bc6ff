// Package inventory is the company inventory dashboard: a company's units
// are loaded once, filtered on four facets and summarized as KPIs, charts and
// a data table.
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/iwvelando/top-planner/internal/cache"
	"github.com/iwvelando/top-planner/internal/dashboard"
	"github.com/iwvelando/top-planner/internal/export"
	"github.com/iwvelando/top-planner/internal/topapi"
	"go.uber.org/zap"
)

var (
	// ErrNoCompany is returned when an operation needs a loaded company.
	ErrNoCompany = errors.New("no company selected")

	// ErrUnknownChart is returned for clicks on a chart the inventory does not draw.
	ErrUnknownChart = errors.New("unknown chart")
)

// Fetcher loads a company's units from the backend.
type Fetcher interface {
	FetchCompanyUnits(ctx context.Context, companyID string) ([]topapi.InventoryUnit, error)
}

// View is the rendered inventory dashboard.
type View struct {
	CompanyID string                 `json:"company_id"`
	Options   Selection              `json:"options"`
	Selected  Selection              `json:"selected"`
	KPIs      []dashboard.KPICard    `json:"kpis"`
	Charts    []dashboard.Chart      `json:"charts"`
	Table     []TableRow             `json:"table"`
	Units     []topapi.InventoryUnit `json:"-"`
}

// Chart returns the chart with the given key.
func (v *View) Chart(key string) (dashboard.Chart, bool) {
	for _, c := range v.Charts {
		if c.Key == key {
			return c, true
		}
	}
	return dashboard.Chart{}, false
}

// Inventory holds the loaded units of one company and the facet selection.
// It is safe for concurrent use.
type Inventory struct {
	client Fetcher
	cache  cache.Cache
	logger *zap.Logger

	mu        sync.Mutex
	companyID string
	units     []topapi.InventoryUnit
	options   Selection
	selected  Selection
}

// New creates an inventory dashboard. c may be nil to always fetch.
func New(client Fetcher, c cache.Cache, logger *zap.Logger) *Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inventory{client: client, cache: c, logger: logger}
}

// CompanyID returns the loaded company, empty when none is.
func (inv *Inventory) CompanyID() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.companyID
}

// Load selects a company and loads its units. Loading a different company
// replaces the units and resets every facet to all values selected, which is
// an empty selection. An empty id clears the dashboard. With refresh set the
// cache is bypassed.
func (inv *Inventory) Load(ctx context.Context, companyID string, refresh bool) (*View, error) {
	if companyID == "" {
		inv.Clear()
		return inv.View(), nil
	}

	inv.mu.Lock()
	cached := inv.companyID == companyID && inv.units != nil && !refresh
	inv.mu.Unlock()
	if cached {
		return inv.View(), nil
	}

	units, err := inv.fetch(ctx, companyID, refresh)
	if err != nil {
		inv.logger.Error("error loading company data",
			zap.String("op", "inventory.Load"),
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to load company data: %w", err)
	}

	inv.mu.Lock()
	inv.companyID = companyID
	inv.units = units
	inv.options = Options(units)
	inv.selected = Selection{}
	inv.mu.Unlock()

	inv.logger.Debug("company units loaded",
		zap.String("op", "inventory.Load"),
		zap.String("company_id", companyID),
		zap.Int("units", len(units)),
	)
	return inv.View(), nil
}

func (inv *Inventory) fetch(ctx context.Context, companyID string, refresh bool) ([]topapi.InventoryUnit, error) {
	key := cache.UnitsKey(companyID)
	if inv.cache != nil && !refresh {
		if raw, ok := inv.cache.Get(ctx, key); ok {
			var units []topapi.InventoryUnit
			if err := json.Unmarshal([]byte(raw), &units); err == nil {
				return units, nil
			}
			inv.logger.Warn("discarding unreadable cache entry",
				zap.String("op", "inventory.fetch"),
				zap.String("key", key),
			)
		}
	}

	units, err := inv.client.FetchCompanyUnits(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if units == nil {
		units = []topapi.InventoryUnit{}
	}

	if inv.cache != nil {
		raw, err := json.Marshal(units)
		if err == nil {
			err = inv.cache.Set(ctx, key, string(raw))
		}
		if err != nil {
			inv.logger.Warn("failed to cache company units",
				zap.String("op", "inventory.fetch"),
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return units, nil
}

// Clear drops the loaded company.
func (inv *Inventory) Clear() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.companyID = ""
	inv.units = nil
	inv.options = Selection{}
	inv.selected = Selection{}
}

// Select replaces the selected values of one facet.
func (inv *Inventory) Select(f Facet, values []string) *View {
	inv.mu.Lock()
	inv.selected = inv.selected.With(f, values)
	inv.mu.Unlock()
	return inv.View()
}

// SetSelection replaces the whole selection.
func (inv *Inventory) SetSelection(s Selection) *View {
	inv.mu.Lock()
	inv.selected = s.Clone()
	inv.mu.Unlock()
	return inv.View()
}

// ApplyFilter makes value the only selected value of a facet. A value the
// facet does not offer leaves nothing selected, which matches every unit.
func (inv *Inventory) ApplyFilter(f Facet, value string) *View {
	inv.mu.Lock()
	var values []string
	for _, option := range inv.options.Get(f) {
		if option == value {
			values = []string{value}
			break
		}
	}
	inv.selected = inv.selected.With(f, values)
	inv.mu.Unlock()
	return inv.View()
}

// ClickFacet returns the facet a click on a chart segment filters. Only the
// status and unit type charts respond to segment clicks.
func ClickFacet(chart string) (Facet, bool) {
	switch chart {
	case ChartInventory:
		return FacetStatus, true
	case ChartUnitType:
		return FacetUnitType, true
	}
	return "", false
}

// LegendFacet returns the facet a legend click on chart filters.
func LegendFacet(chart string) Facet {
	switch chart {
	case ChartInventory:
		return FacetStatus
	case ChartUnitType:
		return FacetUnitType
	case ChartScatter:
		return FacetArea
	}
	return FacetProject
}

// Click applies the label of a clicked chart segment to the chart's facet.
func (inv *Inventory) Click(chart, label string) (*View, error) {
	f, ok := ClickFacet(chart)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChart, chart)
	}
	return inv.ApplyFilter(f, label), nil
}

// ClickLegend applies the chart label at the legend item's dataset index to
// the facet the chart's legend maps to.
func (inv *Inventory) ClickLegend(chart string, datasetIndex int) (*View, error) {
	view := inv.View()
	c, ok := view.Chart(chart)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChart, chart)
	}
	label := ""
	if datasetIndex >= 0 && datasetIndex < len(c.Labels) {
		label = c.Labels[datasetIndex]
	}
	return inv.ApplyFilter(LegendFacet(chart), label), nil
}

// Filtered returns the units matching the current selection.
func (inv *Inventory) Filtered() []topapi.InventoryUnit {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return Filter(inv.units, inv.selected)
}

// View renders the dashboard for the current selection.
func (inv *Inventory) View() *View {
	inv.mu.Lock()
	companyID := inv.companyID
	options := inv.options.Clone()
	selected := inv.selected.Clone()
	units := Filter(inv.units, inv.selected)
	inv.mu.Unlock()

	return &View{
		CompanyID: companyID,
		Options:   options,
		Selected:  selected,
		KPIs:      Summarize(units).Cards(),
		Charts:    Charts(units),
		Table:     Table(units),
		Units:     units,
	}
}

// Export writes the filtered units as an Excel workbook and returns how many
// were written.
func (inv *Inventory) Export(w io.Writer) (int, error) {
	if inv.CompanyID() == "" {
		return 0, ErrNoCompany
	}
	units := inv.Filtered()
	if err := export.UnitsXLSX(w, units); err != nil {
		inv.logger.Error("export failed",
			zap.String("op", "inventory.Export"),
			zap.Error(err),
		)
		return 0, fmt.Errorf("export failed: %w", err)
	}
	return len(units), nil
}
