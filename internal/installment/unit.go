package installment

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingUnitCode is returned when a unit definition has no code.
var ErrMissingUnitCode = errors.New("unit code is required")

// ProjectConfig is the financial configuration of the project a unit belongs to.
type ProjectConfig struct {
	ID                    string   `yaml:"id" json:"id"`
	StaticNPV             float64  `yaml:"staticNPV" json:"staticNPV"`
	InterestRate          float64  `yaml:"interestRate" json:"interestRate"`
	BaseDP                float64  `yaml:"baseDP" json:"baseDP"`
	BaseTenor             float64  `yaml:"baseTenor" json:"baseTenor"`
	MaxTenor              float64  `yaml:"maxTenor" json:"maxTenor"`
	PaymentFrequency      string   `yaml:"paymentFrequency" json:"paymentFrequency"`
	DefaultScheme         string   `yaml:"defaultScheme" json:"defaultScheme"`
	SpecialOffers         []string `yaml:"specialOffers,omitempty" json:"specialOffers,omitempty"`
	MaxDiscount           float64  `yaml:"maxDiscount" json:"maxDiscount"` // fraction
	AnnualMin             float64  `yaml:"annualMin" json:"annualMin"`
	FirstYearMin          float64  `yaml:"firstYearMin" json:"firstYearMin"`
	MultipleDP            bool     `yaml:"multipleDP" json:"multipleDP"`
	HasMaintenance        bool     `yaml:"hasMaintenance" json:"hasMaintenance"`
	HasGas                bool     `yaml:"hasGas" json:"hasGas"`
	HasAdditionalDiscount bool     `yaml:"hasAdditionalDiscount" json:"hasAdditionalDiscount"`
}

// Unit is the unit an installment plan is built for. BasePrice is the
// interest-free price in the canonical currency.
type Unit struct {
	Code               string        `yaml:"code" json:"code"`
	BasePrice          float64       `yaml:"basePrice" json:"basePrice"`
	MaintenancePercent float64       `yaml:"maintenancePercent" json:"maintenancePercent"`
	ContractDate       string        `yaml:"contractDate,omitempty" json:"contractDate,omitempty"`
	DeliveryDate       string        `yaml:"deliveryDate,omitempty" json:"deliveryDate,omitempty"`
	Project            ProjectConfig `yaml:"project" json:"project"`
}

// Validate checks the fields a plan cannot be built without.
func (u Unit) Validate() error {
	if strings.TrimSpace(u.Code) == "" {
		return ErrMissingUnitCode
	}
	if u.BasePrice <= 0 {
		return fmt.Errorf("unit %s: base price must be positive, got %g", u.Code, u.BasePrice)
	}
	if u.Project.BaseDP < 0 || u.Project.BaseDP > 100 {
		return fmt.Errorf("unit %s: base down payment must be between 0 and 100, got %g", u.Code, u.Project.BaseDP)
	}
	return nil
}

// HasSpecialOffer reports whether offer is one of the project's offers.
func (u Unit) HasSpecialOffer(offer string) bool {
	for _, candidate := range u.Project.SpecialOffers {
		if candidate == offer {
			return true
		}
	}
	return false
}

// LoadUnit reads a YAML unit definition.
func LoadUnit(path string) (Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Unit{}, fmt.Errorf("failed to read unit file: %w", err)
	}

	var unit Unit
	if err := yaml.Unmarshal(data, &unit); err != nil {
		return Unit{}, fmt.Errorf("failed to parse unit file: %w", err)
	}
	if err := unit.Validate(); err != nil {
		return Unit{}, err
	}
	return unit, nil
}
