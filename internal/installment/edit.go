package installment

import (
	"fmt"

	"github.com/iwvelando/top-planner/pkg/datetime"
)

// EditKind names the input an Edit changes.
type EditKind string

// Supported edits.
const (
	EditTenor        EditKind = "tenor"
	EditFrequency    EditKind = "frequency"
	EditScheme       EditKind = "scheme"
	EditSpecialOffer EditKind = "specialOffer"
	EditContractDate EditKind = "contractDate"
	EditInstallment  EditKind = "installment"
	EditDownPayment  EditKind = "downPayment"
	EditDiscount     EditKind = "discount"
)

// Edit is one user input change. Index is the 1-based row for installment
// edits and 1 or 2 for down payment edits. Numeric edits read Value; label
// and date edits read Text.
type Edit struct {
	Kind  EditKind `json:"kind"`
	Index int      `json:"index,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Text  string   `json:"text,omitempty"`
}

// Trigger is the backend follow-up an applied edit needs.
type Trigger int

// Follow-ups.
const (
	TriggerNone Trigger = iota
	TriggerSubmit
	TriggerStabilize
)

func (t Trigger) String() string {
	switch t {
	case TriggerNone:
		return "none"
	case TriggerSubmit:
		return "submit"
	case TriggerStabilize:
		return "stabilize"
	default:
		return "unknown"
	}
}

// Apply applies e and reports the follow-up it needs. Scheme, frequency and
// tenor changes need a stabilization run; a cash purchase needs none.
func (p *Plan) Apply(e Edit) (Trigger, error) {
	switch e.Kind {
	case EditTenor:
		if e.Value == nil {
			return TriggerNone, fmt.Errorf("%w: tenor requires a value", ErrInvalidTenor)
		}
		if err := p.SetTenor(*e.Value); err != nil {
			return TriggerNone, err
		}
		return p.followUp(TriggerStabilize), nil
	case EditFrequency:
		if err := p.SetFrequency(e.Text); err != nil {
			return TriggerNone, err
		}
		return p.followUp(TriggerStabilize), nil
	case EditScheme:
		p.SetScheme(e.Text)
		return p.followUp(TriggerStabilize), nil
	case EditSpecialOffer:
		if err := p.SetSpecialOffer(e.Text); err != nil {
			return TriggerNone, err
		}
		return p.followUp(TriggerSubmit), nil
	case EditContractDate:
		date, err := datetime.ParseDate(e.Text, p.opts.Now())
		if err != nil {
			return TriggerNone, fmt.Errorf("%w %q: %w", ErrInvalidDate, e.Text, err)
		}
		p.SetContractDate(date)
		return p.followUp(TriggerSubmit), nil
	case EditInstallment:
		if err := p.SetInstallment(e.Index, e.Value); err != nil {
			return TriggerNone, err
		}
		return p.followUp(TriggerSubmit), nil
	case EditDownPayment:
		if err := p.SetDownPayment(e.Index, e.Value); err != nil {
			return TriggerNone, err
		}
		return p.followUp(TriggerSubmit), nil
	case EditDiscount:
		pct := 0.0
		if e.Value != nil {
			pct = *e.Value
		}
		if err := p.SetDiscount(pct); err != nil {
			return TriggerNone, err
		}
		return p.followUp(TriggerSubmit), nil
	default:
		return TriggerNone, fmt.Errorf("%w: %q", ErrUnknownEdit, e.Kind)
	}
}

// followUp suppresses backend follow-ups while there is nothing to submit.
func (p *Plan) followUp(t Trigger) Trigger {
	if p.CashMode() || len(p.Rows()) == 0 {
		return TriggerNone
	}
	return t
}
