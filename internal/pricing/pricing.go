// Package pricing tracks a unit's price in the canonical currency together
// with the manual discount, exchange rate and the final price reported back
// by the recalculation backend.
package pricing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidDiscount is returned for a discount outside [0, 100].
	ErrInvalidDiscount = errors.New("discount must be between 0 and 100")

	// ErrDiscountExceedsMax is returned for a discount above the project maximum.
	ErrDiscountExceedsMax = errors.New("discount exceeds the project maximum")

	// ErrInvalidRate is returned for a non-positive exchange rate.
	ErrInvalidRate = errors.New("currency rate must be positive")
)

var (
	hundred  = decimal.NewFromInt(100)
	one      = decimal.NewFromInt(1)
	stepSize = decimal.NewFromInt(constants.PriceRoundingStep)
)

// State is the pricing state of one unit. Amounts are held in the canonical
// currency; display amounts are converted with the selected rate. State is
// safe for concurrent use.
type State struct {
	mu          sync.RWMutex
	basePrice   decimal.Decimal
	rate        decimal.Decimal
	maxDiscount decimal.Decimal // fraction, 0.1 is 10%
	discount    decimal.Decimal // percentage
	discounted  decimal.Decimal
}

// NewState creates the pricing state for a unit whose interest-free price is
// basePrice in the canonical currency. maxDiscount is a fraction; zero means
// no maximum is enforced.
func NewState(basePrice, rate, maxDiscount float64) (*State, error) {
	if rate <= 0 {
		return nil, ErrInvalidRate
	}
	return &State{
		basePrice:   decimal.NewFromFloat(basePrice),
		rate:        decimal.NewFromFloat(rate),
		maxDiscount: decimal.NewFromFloat(maxDiscount),
	}, nil
}

// CeilToStep rounds an amount up to the next multiple of the price rounding step.
func CeilToStep(amount decimal.Decimal) decimal.Decimal {
	return amount.Div(stepSize).Ceil().Mul(stepSize)
}

// CeilToStepFloat is CeilToStep for a float amount.
func CeilToStepFloat(amount float64) float64 {
	return CeilToStep(decimal.NewFromFloat(amount)).InexactFloat64()
}

// SetRate changes the display exchange rate.
func (s *State) SetRate(rate float64) error {
	if rate <= 0 {
		return ErrInvalidRate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rate = decimal.NewFromFloat(rate)
	return nil
}

// Rate returns the display exchange rate.
func (s *State) Rate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate.InexactFloat64()
}

// SetDiscount applies a manual discount percentage. The discounted price is
// rounded up to the rounding step in the canonical currency. A zero discount
// clears it.
func (s *State) SetDiscount(percentage float64) error {
	pct := decimal.NewFromFloat(percentage)
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return fmt.Errorf("%w, got %g", ErrInvalidDiscount, percentage)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxDiscount.IsPositive() && pct.GreaterThan(s.maxDiscount.Mul(hundred)) {
		return fmt.Errorf("%w: %g > %s", ErrDiscountExceedsMax, percentage, s.maxDiscount.Mul(hundred).String())
	}

	s.discount = pct
	if pct.IsZero() {
		s.discounted = decimal.Zero
		return nil
	}
	factor := one.Sub(pct.Div(hundred))
	s.discounted = CeilToStep(s.basePrice.Mul(factor))
	return nil
}

// Discount returns the manual discount percentage.
func (s *State) Discount() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.discount.InexactFloat64()
}

// HasDiscount reports whether a manual discount produced a discounted price.
func (s *State) HasDiscount() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasDiscount()
}

func (s *State) hasDiscount() bool {
	return s.discount.IsPositive() && s.discounted.IsPositive()
}

// SubmissionPrice is the canonical price sent for recalculation: the
// discounted price when a manual discount applies, the base price otherwise.
func (s *State) SubmissionPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.discounted.IsPositive() {
		return s.discounted.InexactFloat64()
	}
	return s.basePrice.InexactFloat64()
}

// BasePrice returns the canonical base price.
func (s *State) BasePrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.basePrice.InexactFloat64()
}

// DisplayBasePrice converts the base price to the display currency, rounded
// up to the rounding step.
func (s *State) DisplayBasePrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return CeilToStep(s.basePrice.Mul(s.rate)).InexactFloat64()
}

// DisplayDiscountedPrice converts the discounted price to the display
// currency. It is zero when no discount applies.
func (s *State) DisplayDiscountedPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.discounted.IsPositive() {
		return 0
	}
	return CeilToStep(s.discounted.Mul(s.rate)).InexactFloat64()
}

// FinalPrice is the unrounded final price in the display currency. With a
// manual discount the backend's additional discount and NPV change are
// applied to the discounted price; otherwise the backend's price with
// interest is converted as is.
func (s *State) FinalPrice(priceWithInterest, percentageChange, additionalDiscount float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.hasDiscount() {
		additionalFactor := one.Sub(decimal.NewFromFloat(additionalDiscount).Div(hundred))
		changeFactor := one.Add(decimal.NewFromFloat(percentageChange))
		return s.discounted.Mul(additionalFactor).Mul(changeFactor).Mul(s.rate).InexactFloat64()
	}
	return decimal.NewFromFloat(priceWithInterest).Mul(s.rate).InexactFloat64()
}

// CashPrice is the display price of an immediate cash purchase: the maximum
// project discount applied to the displayed base price, rounded up.
func (s *State) CashPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	display := CeilToStep(s.basePrice.Mul(s.rate))
	return CeilToStep(display.Mul(one.Sub(s.maxDiscount))).InexactFloat64()
}

// MaxDiscount returns the project maximum discount as a fraction.
func (s *State) MaxDiscount() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxDiscount.InexactFloat64()
}

// Amount converts a percentage of price into an amount.
func Amount(percentage, price float64) float64 {
	return decimal.NewFromFloat(percentage).Mul(decimal.NewFromFloat(price)).Div(hundred).InexactFloat64()
}
