package topapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

var nullLiteral = []byte("null")

// Number is a backend numeric field that may arrive as a JSON number, a
// numeric string, an empty string or null. Valid is false when no number
// could be read.
type Number struct {
	Value float64
	Valid bool
}

// NewNumber returns a valid Number holding v.
func NewNumber(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Float returns the value, or zero when the number is not valid.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*n = Number{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		*n = NewNumber(parsed)
		return nil
	}

	var f float64
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return fmt.Errorf("invalid number %s: %w", string(trimmed), err)
	}
	*n = NewNumber(f)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return nullLiteral, nil
	}
	return json.Marshal(n.Value)
}

// Flag is a field the backend sets to true or to a message string when a
// condition applies.
type Flag struct {
	Set     bool
	Message string
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*f = Flag{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return nil
	}

	var raw interface{}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		f.Set = v
	case string:
		f.Message = strings.TrimSpace(v)
		f.Set = f.Message != ""
	case float64:
		f.Set = v != 0
	default:
		f.Set = true
		f.Message = string(trimmed)
	}
	return nil
}

// IndexedValues maps 1-based installment indexes to values. The backend
// sends either an object keyed by index or a positional array whose first
// element belongs to installment 1.
type IndexedValues map[int]float64

// UnmarshalJSON implements json.Unmarshaler.
func (iv *IndexedValues) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	values := make(IndexedValues)
	*iv = values
	if len(trimmed) == 0 || bytes.Equal(trimmed, nullLiteral) {
		return nil
	}

	if trimmed[0] == '[' {
		var list []Number
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		for i, n := range list {
			if n.Valid {
				values[i+1] = n.Value
			}
		}
		return nil
	}

	var keyed map[string]Number
	if err := json.Unmarshal(trimmed, &keyed); err != nil {
		return err
	}
	for key, n := range keyed {
		idx, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return fmt.Errorf("invalid installment index %q: %w", key, err)
		}
		if n.Valid {
			values[idx] = n.Value
		}
	}
	return nil
}

// CalculationResponse is the recalculation result for a submitted schedule.
// Percentages in CalculatedPercentages are fractions; DP1 and DP2 are
// percentages.
type CalculationResponse struct {
	PriceWithInterest     *float64      `json:"price_with_interest"`
	NewNPV                float64       `json:"new_npv"`
	PercentageChange      float64       `json:"percentage_change"`
	CalculatedPercentages IndexedValues `json:"calculated_pmt_percentages"`
	DeliveryPaymentIndex  int           `json:"delivery_payment_index"`
	MaintenancePayments   IndexedValues `json:"maintenance_payments"`
	GasPayments           IndexedValues `json:"gas_payments"`
	Maintenance           float64       `json:"maintenance"`
	GasFees               Number        `json:"gas_fees"`
	DP1                   *float64      `json:"dp1"`
	DP2                   *float64      `json:"dp2"`
	NewBaseDP             *float64      `json:"new_base_dp"`
	ContractDate          string        `json:"contract_date"`
	AdditionalDiscount    float64       `json:"additional_discount_var"`
	TenorYearsError       Flag          `json:"tenor_years_error"`
	ForceLogout           Flag          `json:"force_logout"`
}

// KPIs is the aggregate returned by the market dashboard KPI endpoint.
type KPIs struct {
	TotalUnits      Number `json:"total_units"`
	TotalProjects   Number `json:"total_projects"`
	AvgPrice        Number `json:"avg_price"`
	AvgPSM          Number `json:"avg_psm"`
	AvgBUA          Number `json:"avg_bua"`
	AvgDownPayment  Number `json:"avg_down_payment"`
	TotalDevelopers Number `json:"total_developers"`
	TotalLocations  Number `json:"total_locations"`
}

// AssetPrice is one bar of the price by asset type chart.
type AssetPrice struct {
	AssetType string `json:"asset_type"`
	AvgPrice  Number `json:"avg_price"`
}

// DeveloperCount is one slice of the units by developer chart.
type DeveloperCount struct {
	DeveloperName string `json:"developer_name"`
	Count         Number `json:"count"`
}

// PricePoint is one point of the price vs BUA scatter.
type PricePoint struct {
	AssetType string `json:"asset_type"`
	BUA       Number `json:"bua"`
	UnitPrice Number `json:"unit_price"`
}

// LocationCount is one bar of the units by location chart.
type LocationCount struct {
	Location string `json:"location"`
	Count    Number `json:"count"`
}

// UnitTypeCount is one slice of the unit type distribution.
type UnitTypeCount struct {
	UnitType string `json:"unit_type"`
	Count    Number `json:"count"`
}

// MonthlyTrend is one month of the monthly trends chart.
type MonthlyTrend struct {
	Month    string `json:"month"`
	Count    Number `json:"count"`
	AvgPrice Number `json:"avg_price"`
}

// Charts holds every series returned by the market dashboard chart endpoint.
type Charts struct {
	PriceByAsset         []AssetPrice     `json:"price_by_asset"`
	UnitsByDeveloper     []DeveloperCount `json:"units_by_developer"`
	PriceVsBUA           []PricePoint     `json:"price_vs_bua"`
	UnitsByLocation      []LocationCount  `json:"units_by_location"`
	UnitTypeDistribution []UnitTypeCount  `json:"unit_type_distribution"`
	MonthlyTrends        []MonthlyTrend   `json:"monthly_trends"`
}

// ExportRecord is one exported market record. Key order follows the backend
// payload so the first record can supply CSV headers.
type ExportRecord = *orderedmap.OrderedMap[string, interface{}]

type exportResponse struct {
	Data []ExportRecord `json:"data"`
}

// InventoryUnit is one unit of a company's inventory.
type InventoryUnit struct {
	Project         string `json:"project"`
	UnitType        string `json:"unit_type"`
	Status          string `json:"status"`
	AreaRange       string `json:"area_range"`
	GrossArea       Number `json:"gross_area"`
	SalesValue      Number `json:"sales_value"`
	PSM             Number `json:"psm"`
	ReservationDate string `json:"reservation_date"`
}

type companyUnitsResponse struct {
	Units []InventoryUnit `json:"units"`
}
