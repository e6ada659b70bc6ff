// Package installment reconciles a unit's installment plan with the
// recalculation backend. A Plan holds the schedule, the down payments and the
// pricing state; a Session drives submissions and stabilization runs against
// a Submitter.
package installment

import (
	"fmt"
	"sync"
	"time"

	"github.com/iwvelando/top-planner/internal/pricing"
	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/datetime"
	"github.com/iwvelando/top-planner/pkg/mathutil"
	"go.uber.org/zap"
)

// State is the reconciliation state of a plan.
type State int

// Plan states.
const (
	StateEmpty State = iota
	StateGenerated
	StateReconciled
	StateStabilizing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateGenerated:
		return "generated"
	case StateReconciled:
		return "reconciled"
	case StateStabilizing:
		return "stabilizing"
	default:
		return "unknown"
	}
}

// Options configure a plan.
type Options struct {
	Rate     float64
	Currency string
	CanEdit  bool
	Periods  Periods
	Now      func() time.Time
}

// Row is one schedule row. Entered is the user's percentage, nil when empty.
type Row struct {
	Index        int
	DueDate      time.Time
	Entered      *float64
	Known        bool
	Calculated   float64
	Amount       float64
	Cumulative   float64
	Maintenance  float64
	Gas          float64
	Hidden       bool
	Locked       bool
	Delivery     bool
	BelowMinimum bool
}

// Plan is the installment plan of one unit. It is safe for concurrent use.
type Plan struct {
	mu     sync.Mutex
	logger *zap.Logger

	unit    Unit
	opts    Options
	pricing *pricing.State
	seq     Sequencer

	tenor        float64
	frequency    Frequency
	scheme       string
	offer        string
	contractDate time.Time

	dp1, dp2 *float64
	baseDP   float64
	floors   Floors

	rows               []Row
	downPaymentsLocked [2]bool
	state              State
	last               *topapi.CalculationResponse
	appliedSeq         uint64
	finalPrice         float64
}

// NewPlan builds the initial schedule for unit from its project defaults.
func NewPlan(unit Unit, opts Options, logger *zap.Logger) (*Plan, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := unit.Validate(); err != nil {
		return nil, err
	}
	if opts.Rate == 0 {
		opts.Rate = 1
	}
	if opts.Currency == "" {
		opts.Currency = constants.CanonicalCurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	prices, err := pricing.NewState(unit.BasePrice, opts.Rate, unit.Project.MaxDiscount)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pricing for unit %s: %w", unit.Code, err)
	}

	contract, err := datetime.ParseDate(unit.ContractDate, opts.Now())
	if err != nil {
		return nil, fmt.Errorf("unit %s: invalid contract date %q: %w", unit.Code, unit.ContractDate, err)
	}

	p := &Plan{
		logger:       logger,
		unit:         unit,
		opts:         opts,
		pricing:      prices,
		tenor:        unit.Project.BaseTenor,
		frequency:    ParseFrequency(unit.Project.PaymentFrequency),
		scheme:       unit.Project.DefaultScheme,
		contractDate: contract,
		baseDP:       unit.Project.BaseDP,
		floors:       DefaultFloors(unit.Project.BaseDP, unit.Project.MultipleDP),
	}
	p.regenerate()
	p.recomputeLocks()
	p.settleState()

	logger.Debug("plan created",
		zap.String("op", "installment.NewPlan"),
		zap.String("unit", unit.Code),
		zap.Int("rows", len(p.rows)),
	)
	return p, nil
}

// Unit returns the unit the plan was built for.
func (p *Plan) Unit() Unit {
	return p.unit
}

// Currency returns the display currency code.
func (p *Plan) Currency() string {
	return p.opts.Currency
}

// State returns the reconciliation state.
func (p *Plan) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Rows returns a copy of the schedule rows.
func (p *Plan) Rows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := make([]Row, len(p.rows))
	copy(rows, p.rows)
	return rows
}

// InstallmentSum is the sum of the entered installment percentages.
func (p *Plan) InstallmentSum() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.installmentSum()
}

// Total is the installment sum plus the entered down payments.
func (p *Plan) Total() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total()
}

// Needed returns the down payments currently due.
func (p *Plan) Needed() Needed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needed()
}

// Floors returns the effective plan minimum down payments.
func (p *Plan) Floors() Floors {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.effectiveFloors()
}

// SetTenor changes the tenor in years. A zero tenor switches to a cash
// purchase with an empty schedule.
func (p *Plan) SetTenor(years float64) error {
	if years < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidTenor, years)
	}
	if maxTenor := p.unit.Project.MaxTenor; maxTenor > 0 && years > maxTenor {
		return fmt.Errorf("%w: %g exceeds the project maximum of %g", ErrInvalidTenor, years, maxTenor)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenor = years
	p.changed()
	return nil
}

// Tenor returns the tenor in years.
func (p *Plan) Tenor() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tenor
}

// CashMode reports whether the plan is a cash purchase.
func (p *Plan) CashMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tenor == 0
}

// SetFrequency changes the payment frequency.
func (p *Plan) SetFrequency(label string) error {
	freq := ParseFrequency(label)
	if !freq.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, label)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.frequency = freq
	p.changed()
	return nil
}

// SetScheme changes the payment scheme.
func (p *Plan) SetScheme(scheme string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheme = scheme
	p.changed()
}

// SetSpecialOffer selects a special offer, or clears it when offer is empty.
// Any change clears every entered percentage.
func (p *Plan) SetSpecialOffer(offer string) error {
	if offer != "" && !p.unit.HasSpecialOffer(offer) {
		return fmt.Errorf("%w: %q", ErrUnknownOffer, offer)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.offer = offer
	p.dp1, p.dp2 = nil, nil
	p.rows = nil
	p.changed()
	return nil
}

// SetContractDate changes the contract date; due dates follow it.
func (p *Plan) SetContractDate(date time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.contractDate = datetime.StartOfDay(date)
	p.changed()
}

// SetInstallment enters a percentage for the 1-based row index. A nil pct
// clears the row.
func (p *Plan) SetInstallment(index int, pct *float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkEditable(); err != nil {
		return err
	}
	if index < 1 || index > len(p.rows) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(p.rows))
	}
	if pct != nil && (*pct < 0 || *pct > constants.FullPercentage) {
		return fmt.Errorf("%w: installment %d got %g", ErrInvalidPercentage, index, *pct)
	}
	row := &p.rows[index-1]
	if row.Locked {
		return fmt.Errorf("%w: PMT %d", ErrInputLocked, index)
	}

	row.Entered = copyValue(pct)
	p.changed()
	return nil
}

// SetDownPayment enters the first (which == 1) or second (which == 2) down
// payment percentage. A nil pct clears it.
func (p *Plan) SetDownPayment(which int, pct *float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.checkEditable(); err != nil {
		return err
	}
	if which != 1 && (which != 2 || !p.unit.Project.MultipleDP) {
		return fmt.Errorf("%w: down payment %d", ErrInvalidIndex, which)
	}
	if pct != nil && (*pct < 0 || *pct > constants.FullPercentage) {
		return fmt.Errorf("%w: down payment %d got %g", ErrInvalidPercentage, which, *pct)
	}
	if p.downPaymentsLocked[which-1] {
		return fmt.Errorf("%w: down payment %d", ErrInputLocked, which)
	}

	if which == 1 {
		p.dp1 = copyValue(pct)
	} else {
		p.dp2 = copyValue(pct)
	}
	p.changed()
	return nil
}

// SetDiscount applies a manual discount percentage.
func (p *Plan) SetDiscount(percentage float64) error {
	if err := p.pricing.SetDiscount(percentage); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed()
	return nil
}

// SetRate changes the display exchange rate.
func (p *Plan) SetRate(rate float64) error {
	if err := p.pricing.SetRate(rate); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != nil {
		p.applyDerived()
	}
	return nil
}

// Pricing exposes the pricing state.
func (p *Plan) Pricing() *pricing.State {
	return p.pricing
}

// inputsHidden reports whether entry inputs are hidden by a special offer.
func (p *Plan) inputsHidden() bool {
	return p.offer != ""
}

func (p *Plan) checkEditable() error {
	if !p.opts.CanEdit || p.inputsHidden() {
		return ErrReadOnly
	}
	return nil
}

// changed runs after any input change. Derived fields are refreshed from the
// last response unless the rows were rebuilt; a reconciled plan drops back
// to generated.
func (p *Plan) changed() {
	if rebuilt := p.regenerate(); !rebuilt && p.last != nil {
		p.applyDerived()
	}
	p.recomputeLocks()
	if p.state != StateStabilizing {
		p.settleState()
		if p.state == StateReconciled {
			p.state = StateGenerated
		}
	}
}

// settleState derives the state outside a stabilization run.
func (p *Plan) settleState() {
	switch {
	case len(p.rows) == 0:
		p.state = StateEmpty
	case p.last != nil && p.appliedSeq != 0 && p.appliedSeq == p.seq.Latest():
		p.state = StateReconciled
	default:
		p.state = StateGenerated
	}
}

// regenerate recomputes the schedule rows and reports whether they were
// rebuilt. Entered percentages survive when the row count is unchanged.
func (p *Plan) regenerate() bool {
	count := InstallmentCount(p.tenor, p.offer, p.frequency)
	if count == 0 {
		rebuilt := len(p.rows) > 0
		p.rows = nil
		return rebuilt
	}

	first := FirstDueDate(p.contractDate, p.effectiveFloors(), p.opts.Periods)
	dates := DueDates(first, p.frequency, count)

	if len(p.rows) == count {
		for i := range p.rows {
			p.rows[i].DueDate = dates[i]
		}
		return false
	}

	rows := make([]Row, count)
	for i := range rows {
		rows[i] = Row{Index: i + 1, DueDate: dates[i]}
	}
	p.rows = rows
	return true
}

func (p *Plan) effectiveFloors() Floors {
	if !p.unit.Project.MultipleDP {
		return Floors{First: p.floors.First}
	}
	return p.floors
}

func (p *Plan) installmentSum() float64 {
	sum := 0.0
	for _, row := range p.rows {
		sum += value(row.Entered)
	}
	return sum
}

func (p *Plan) total() float64 {
	return p.installmentSum() + value(p.dp1) + value(p.dp2)
}

func (p *Plan) needed() Needed {
	return NeededDownPayments(value(p.dp1), value(p.dp2), p.effectiveFloors(), p.unit.Project.MultipleDP)
}

// recomputeLocks applies the lock rule: once the total reaches 100 an input
// stays editable only while it holds a value whose removal brings the
// installment sum back under 100.
func (p *Plan) recomputeLocks() {
	canEdit := p.opts.CanEdit && !p.inputsHidden()
	sum := p.installmentSum()
	full := p.total() >= constants.FullPercentage

	locked := func(entered *float64) bool {
		if !canEdit {
			return true
		}
		if !full {
			return false
		}
		return entered == nil || sum-*entered >= constants.FullPercentage
	}

	for i := range p.rows {
		p.rows[i].Locked = locked(p.rows[i].Entered)
	}
	p.downPaymentsLocked[0] = locked(p.dp1)
	p.downPaymentsLocked[1] = locked(p.dp2)
}

// applyDerived refreshes every server-derived row field from the last
// response.
func (p *Plan) applyDerived() {
	resp := p.last
	project := p.unit.Project

	p.finalPrice = p.pricing.FinalPrice(value(resp.PriceWithInterest), resp.PercentageChange, resp.AdditionalDiscount)
	priceWithInterest := value(resp.PriceWithInterest) * p.pricing.Rate()

	percentages := make([]float64, len(p.rows))
	known := make([]bool, len(p.rows))
	for i := range p.rows {
		row := &p.rows[i]
		fraction, ok := resp.CalculatedPercentages[row.Index]
		row.Known = ok
		row.Calculated = 0
		row.Amount = 0
		row.BelowMinimum = false
		if ok {
			row.Calculated = mathutil.RoundInternal(mathutil.ToPercentage(fraction))
			row.Amount = pricing.Amount(row.Calculated, priceWithInterest)
			row.BelowMinimum = row.Entered != nil && *row.Entered < mathutil.RoundDisplay(row.Calculated)
		}
		row.Delivery = row.Index == resp.DeliveryPaymentIndex
		row.Maintenance = 0
		if project.HasMaintenance {
			row.Maintenance = resp.MaintenancePayments[row.Index]
		}
		row.Gas = 0
		if project.HasGas {
			row.Gas = resp.GasPayments[row.Index]
		}
		percentages[i] = row.Calculated
		known[i] = ok
	}

	start := CumulativeStart(p.needed(), p.baseDP, project.MultipleDP)
	cumulative, visible := Cumulative(start, percentages, known)
	fullFirstDP := value(p.dp1) >= constants.FullPercentage
	for i := range p.rows {
		p.rows[i].Cumulative = cumulative[i]
		p.rows[i].Hidden = fullFirstDP || i >= visible
	}
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func copyValue(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
