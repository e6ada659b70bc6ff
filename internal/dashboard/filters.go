package dashboard

import (
	"net/url"
	"strconv"

	"github.com/iwvelando/top-planner/pkg/constants"
)

// Filters is the market dashboard filter state. Empty facets and nil bounds
// are left out of the query.
type Filters struct {
	Developers     []string `json:"developers,omitempty"`
	Locations      []string `json:"locations,omitempty"`
	AssetTypes     []string `json:"asset_types,omitempty"`
	UnitTypes      []string `json:"unit_types,omitempty"`
	FinishingSpecs []string `json:"finishing_specs,omitempty"`
	MinPrice       *float64 `json:"min_price,omitempty"`
	MaxPrice       *float64 `json:"max_price,omitempty"`
	MinBUA         *float64 `json:"min_bua,omitempty"`
	MaxBUA         *float64 `json:"max_bua,omitempty"`
}

// DefaultFilters is the filter state read from untouched controls: no facet
// selected and the sliders at their full range.
func DefaultFilters() Filters {
	minPrice, maxPrice := 0.0, constants.DefaultMaxPrice
	minBUA, maxBUA := 0.0, constants.DefaultMaxBUA
	return Filters{
		MinPrice: &minPrice,
		MaxPrice: &maxPrice,
		MinBUA:   &minBUA,
		MaxBUA:   &maxBUA,
	}
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return len(f.Developers) == 0 && len(f.Locations) == 0 && len(f.AssetTypes) == 0 &&
		len(f.UnitTypes) == 0 && len(f.FinishingSpecs) == 0 &&
		f.MinPrice == nil && f.MaxPrice == nil && f.MinBUA == nil && f.MaxBUA == nil
}

// Values encodes the filters as a query: facets as repeated key[] values,
// bounds as plain keys.
func (f Filters) Values() url.Values {
	values := url.Values{}
	addAll := func(key string, items []string) {
		for _, item := range items {
			values.Add(key+"[]", item)
		}
	}
	addBound := func(key string, v *float64) {
		if v != nil {
			values.Set(key, strconv.FormatFloat(*v, 'f', -1, 64))
		}
	}

	addAll("developers", f.Developers)
	addAll("locations", f.Locations)
	addAll("asset_types", f.AssetTypes)
	addAll("unit_types", f.UnitTypes)
	addAll("finishing_specs", f.FinishingSpecs)
	addBound("min_price", f.MinPrice)
	addBound("max_price", f.MaxPrice)
	addBound("min_bua", f.MinBUA)
	addBound("max_bua", f.MaxBUA)
	return values
}

// ParseFilters reads filters from a query in the format Values produces.
// Facets are also accepted without the [] suffix.
func ParseFilters(query url.Values) Filters {
	facet := func(key string) []string {
		items := append([]string(nil), query[key+"[]"]...)
		return append(items, query[key]...)
	}
	bound := func(key string) *float64 {
		raw := query.Get(key)
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil
		}
		return &v
	}

	return Filters{
		Developers:     facet("developers"),
		Locations:      facet("locations"),
		AssetTypes:     facet("asset_types"),
		UnitTypes:      facet("unit_types"),
		FinishingSpecs: facet("finishing_specs"),
		MinPrice:       bound("min_price"),
		MaxPrice:       bound("max_price"),
		MinBUA:         bound("min_bua"),
		MaxBUA:         bound("max_bua"),
	}
}
