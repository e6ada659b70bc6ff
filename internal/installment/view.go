package installment

import (
	"fmt"

	"github.com/iwvelando/top-planner/internal/pricing"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/datetime"
	"github.com/iwvelando/top-planner/pkg/format"
	"github.com/iwvelando/top-planner/pkg/mathutil"
)

// DownPaymentView is one down payment as displayed.
type DownPaymentView struct {
	Label         string   `json:"label"`
	DueDate       string   `json:"dueDate"`
	Entered       *float64 `json:"entered,omitempty"`
	Floor         float64  `json:"floor"`
	Needed        float64  `json:"needed"`
	NeededDisplay string   `json:"neededDisplay"`
	Amount        float64  `json:"amount"`
	Visible       bool     `json:"visible"`
	Locked        bool     `json:"locked"`
	BelowFloor    bool     `json:"belowFloor"`
}

// RowView is one installment row as displayed.
type RowView struct {
	Index             int      `json:"index"`
	Label             string   `json:"label"`
	DueDate           string   `json:"dueDate"`
	Entered           *float64 `json:"entered,omitempty"`
	Calculated        *float64 `json:"calculated,omitempty"`
	CalculatedDisplay string   `json:"calculatedDisplay"`
	Amount            float64  `json:"amount"`
	Cumulative        float64  `json:"cumulative"`
	CumulativeDisplay string   `json:"cumulativeDisplay"`
	Maintenance       float64  `json:"maintenance,omitempty"`
	Gas               float64  `json:"gas,omitempty"`
	Hidden            bool     `json:"hidden"`
	Locked            bool     `json:"locked"`
	Delivery          bool     `json:"delivery"`
	BelowMinimum      bool     `json:"belowMinimum"`
}

// View is the rendered plan. Renderers read it and never the Plan.
type View struct {
	UnitCode        string  `json:"unitCode"`
	State           string  `json:"state"`
	Currency        string  `json:"currency"`
	Tenor           float64 `json:"tenor"`
	Frequency       string  `json:"frequency"`
	Scheme          string  `json:"scheme"`
	SpecialOffer    string  `json:"specialOffer,omitempty"`
	ContractDate    string  `json:"contractDate"`
	DeliveryDate    string  `json:"deliveryDate,omitempty"`
	CashMode        bool    `json:"cashMode"`
	DualDownPayment bool    `json:"dualDownPayment"`
	InputsHidden    bool    `json:"inputsHidden"`
	CanEdit         bool    `json:"canEdit"`

	DownPayments   []DownPaymentView `json:"downPayments"`
	Rows           []RowView         `json:"rows"`
	InstallmentSum float64           `json:"installmentSum"`
	Total          float64           `json:"total"`
	TotalExceeded  bool              `json:"totalExceeded"`

	BasePrice          float64 `json:"basePrice"`
	Discount           float64 `json:"discount"`
	DiscountedPrice    float64 `json:"discountedPrice"`
	FinalPrice         float64 `json:"finalPrice"`
	NewNPV             string  `json:"newNPV"`
	PercentageChange   string  `json:"percentageChange"`
	AdditionalDiscount string  `json:"additionalDiscount,omitempty"`
	MaintenanceFees    string  `json:"maintenanceFees,omitempty"`
	GasFees            string  `json:"gasFees,omitempty"`
}

// VisibleRows returns the rows that are not hidden.
func (v View) VisibleRows() []RowView {
	rows := make([]RowView, 0, len(v.Rows))
	for _, row := range v.Rows {
		if !row.Hidden {
			rows = append(rows, row)
		}
	}
	return rows
}

// View renders the current plan.
func (p *Plan) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	project := p.unit.Project
	total := p.total()
	v := View{
		UnitCode:        p.unit.Code,
		State:           p.state.String(),
		Currency:        p.opts.Currency,
		Tenor:           p.tenor,
		Frequency:       string(p.frequency),
		Scheme:          p.scheme,
		SpecialOffer:    p.offer,
		ContractDate:    datetime.FormatDate(p.contractDate),
		DeliveryDate:    p.unit.DeliveryDate,
		CashMode:        p.tenor == 0,
		DualDownPayment: project.MultipleDP,
		InputsHidden:    p.inputsHidden(),
		CanEdit:         p.opts.CanEdit && !p.inputsHidden(),
		InstallmentSum:  mathutil.RoundInternal(p.installmentSum()),
		Total:           mathutil.RoundInternal(total),
		TotalExceeded:   total > constants.FullPercentage,
		BasePrice:       p.pricing.DisplayBasePrice(),
		Discount:        p.pricing.Discount(),
		DiscountedPrice: p.pricing.DisplayDiscountedPrice(),
		NewNPV:          "-",
	}

	v.FinalPrice, v.PercentageChange = p.priceSummary()
	if p.last != nil && !v.CashMode {
		v.NewNPV = format.RoundedPercentage(mathutil.ToPercentage(p.last.NewNPV))
	}
	if project.HasAdditionalDiscount {
		v.AdditionalDiscount = "-"
		if p.last != nil && p.last.AdditionalDiscount != 0 {
			v.AdditionalDiscount = fmt.Sprintf("(%.1f%%)", p.last.AdditionalDiscount)
		}
	}
	if project.HasMaintenance {
		v.MaintenanceFees = p.feeDisplay(p.lastMaintenance())
	}
	if project.HasGas {
		v.GasFees = p.feeDisplay(p.lastGasFees())
	}

	v.DownPayments = p.downPaymentViews(v.FinalPrice)

	v.Rows = make([]RowView, len(p.rows))
	for i, row := range p.rows {
		rv := RowView{
			Index:        row.Index,
			Label:        fmt.Sprintf("PMT %d", row.Index),
			DueDate:      datetime.FormatDisplay(row.DueDate),
			Entered:      copyValue(row.Entered),
			Amount:       row.Amount,
			Cumulative:   row.Cumulative,
			Maintenance:  row.Maintenance,
			Gas:          row.Gas,
			Hidden:       row.Hidden,
			Locked:       row.Locked,
			Delivery:     row.Delivery,
			BelowMinimum: row.BelowMinimum,
		}
		if row.Known {
			calculated := row.Calculated
			rv.Calculated = &calculated
			rv.CalculatedDisplay = format.Percentage(calculated)
			rv.CumulativeDisplay = format.RoundedPercentage(row.Cumulative)
		}
		v.Rows[i] = rv
	}
	return v
}

// priceSummary is the displayed final price and NPV change. A cash purchase
// shows the maximum discount as the change.
func (p *Plan) priceSummary() (float64, string) {
	if p.tenor == 0 {
		change := format.PercentageChangeOrDash(-mathutil.ToPercentage(p.pricing.MaxDiscount()))
		return p.pricing.CashPrice(), change
	}
	if p.last == nil {
		if p.pricing.HasDiscount() {
			return p.pricing.DisplayDiscountedPrice(), "-"
		}
		return p.pricing.DisplayBasePrice(), "-"
	}
	final := pricing.CeilToStepFloat(p.finalPrice)
	return final, format.PercentageChangeOrDash(mathutil.ToPercentage(p.last.PercentageChange))
}

func (p *Plan) downPaymentViews(finalPrice float64) []DownPaymentView {
	floors := p.effectiveFloors()
	needed := p.needed()
	visibleFirst := floors.First != 0 || floors.Second != 0
	visibleSecond := floors.Second != 0

	first := DownPaymentView{
		Label:         "DP 1",
		DueDate:       datetime.FormatDisplay(p.contractDate),
		Entered:       copyValue(p.dp1),
		Floor:         floors.First,
		Needed:        needed.First,
		NeededDisplay: format.RoundedPercentage(needed.First),
		Amount:        pricing.Amount(needed.First, finalPrice),
		Visible:       visibleFirst,
		Locked:        p.downPaymentsLocked[0],
		BelowFloor:    value(p.dp1) < floors.First,
	}
	if !p.unit.Project.MultipleDP {
		return []DownPaymentView{first}
	}

	second := DownPaymentView{
		Label:         "DP 2",
		DueDate:       datetime.FormatDisplay(datetime.AddMonths(p.contractDate, p.opts.Periods.BetweenDPs)),
		Entered:       copyValue(p.dp2),
		Floor:         floors.Second,
		Needed:        needed.Second,
		NeededDisplay: format.RoundedPercentage(needed.Second),
		Amount:        pricing.Amount(needed.Second, finalPrice),
		Visible:       visibleSecond,
		Locked:        p.downPaymentsLocked[1],
		BelowFloor:    value(p.dp2) < needed.Second && needed.Second > 0,
	}
	return []DownPaymentView{first, second}
}

func (p *Plan) lastMaintenance() float64 {
	if p.last == nil {
		return 0
	}
	return p.last.Maintenance * p.pricing.Rate()
}

func (p *Plan) lastGasFees() float64 {
	if p.last == nil {
		return 0
	}
	return p.last.GasFees.Float() * p.pricing.Rate()
}

func (p *Plan) feeDisplay(amount float64) string {
	if amount == 0 {
		return "-"
	}
	return format.Currency(amount, p.opts.Currency)
}
