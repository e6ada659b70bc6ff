package inventory

import (
	"slices"

	"github.com/iwvelando/top-planner/internal/topapi"
)

// Facet names a unit attribute the inventory can be filtered on.
type Facet string

// Facets.
const (
	FacetProject  Facet = "project"
	FacetUnitType Facet = "unitType"
	FacetStatus   Facet = "status"
	FacetArea     Facet = "area"
)

// AllFacets lists every facet in display order.
var AllFacets = []Facet{FacetProject, FacetUnitType, FacetStatus, FacetArea}

// Selection holds the chosen values of each facet. An empty facet places no
// constraint on the units.
type Selection struct {
	Projects  []string `json:"projects"`
	UnitTypes []string `json:"unit_types"`
	Statuses  []string `json:"statuses"`
	Areas     []string `json:"areas"`
}

// Get returns the values selected for a facet.
func (s Selection) Get(f Facet) []string {
	switch f {
	case FacetProject:
		return s.Projects
	case FacetUnitType:
		return s.UnitTypes
	case FacetStatus:
		return s.Statuses
	case FacetArea:
		return s.Areas
	}
	return nil
}

// With returns a copy of s with the values of one facet replaced.
func (s Selection) With(f Facet, values []string) Selection {
	values = slices.Clone(values)
	switch f {
	case FacetProject:
		s.Projects = values
	case FacetUnitType:
		s.UnitTypes = values
	case FacetStatus:
		s.Statuses = values
	case FacetArea:
		s.Areas = values
	}
	return s
}

// Clone returns a deep copy of s.
func (s Selection) Clone() Selection {
	return Selection{
		Projects:  slices.Clone(s.Projects),
		UnitTypes: slices.Clone(s.UnitTypes),
		Statuses:  slices.Clone(s.Statuses),
		Areas:     slices.Clone(s.Areas),
	}
}

// Matches reports whether a unit satisfies every facet of the selection.
func (s Selection) Matches(u topapi.InventoryUnit) bool {
	return allows(s.Projects, u.Project) &&
		allows(s.UnitTypes, u.UnitType) &&
		allows(s.Statuses, u.Status) &&
		allows(s.Areas, u.AreaRange)
}

func allows(selected []string, value string) bool {
	return len(selected) == 0 || slices.Contains(selected, value)
}

// Filter returns the units matching the selection, in input order.
func Filter(units []topapi.InventoryUnit, s Selection) []topapi.InventoryUnit {
	out := make([]topapi.InventoryUnit, 0, len(units))
	for _, u := range units {
		if s.Matches(u) {
			out = append(out, u)
		}
	}
	return out
}

// Options collects the distinct non-empty values of every facet in the
// order they first appear.
func Options(units []topapi.InventoryUnit) Selection {
	return Selection{
		Projects:  unique(units, func(u topapi.InventoryUnit) string { return u.Project }),
		UnitTypes: unique(units, func(u topapi.InventoryUnit) string { return u.UnitType }),
		Statuses:  unique(units, func(u topapi.InventoryUnit) string { return u.Status }),
		Areas:     unique(units, func(u topapi.InventoryUnit) string { return u.AreaRange }),
	}
}

func unique(units []topapi.InventoryUnit, field func(topapi.InventoryUnit) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range units {
		v := field(u)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
