package installment

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/iwvelando/top-planner/internal/topapi"
	"github.com/iwvelando/top-planner/pkg/constants"
	"github.com/iwvelando/top-planner/pkg/datetime"
	"github.com/iwvelando/top-planner/pkg/mathutil"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

// Submission is one recalculation request. Seq identifies it for response
// sequencing; Fields are the multipart form fields in wire order.
type Submission struct {
	Seq    uint64
	Fields *orderedmap.OrderedMap[string, string]
}

// Submission snapshots the plan into a recalculation request and issues its
// sequence number. It fails with ErrTotalExceeds when the entered
// percentages add up to more than 100 and with ErrEmptySchedule when there
// are no rows.
func (p *Plan) Submission() (Submission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.rows) == 0 {
		return Submission{}, ErrEmptySchedule
	}
	if total := p.total(); total > constants.FullPercentage {
		return Submission{}, fmt.Errorf("%w (total %g)", ErrTotalExceeds, total)
	}

	data := make([]float64, 0, len(p.rows))
	indexes := make([]int, 0, len(p.rows))
	for _, row := range p.rows {
		if row.Entered == nil {
			continue
		}
		data = append(data, mathutil.RoundTo(mathutil.ToFraction(*row.Entered), 10))
		indexes = append(indexes, row.Index)
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to encode installment data: %w", err)
	}
	indexesJSON, err := json.Marshal(indexes)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to encode installment indexes: %w", err)
	}

	project := p.unit.Project
	tenor := p.tenor
	if years, ok := OfferYears(p.offer); ok {
		tenor = float64(years)
	}
	dp := DownPaymentFraction(value(p.dp1), value(p.dp2), p.baseDP, project.MultipleDP)

	fields := orderedmap.New[string, string]()
	fields.Set("unit_base_price", formatFloat(p.pricing.SubmissionPrice()))
	fields.Set("project_config_static_npv", formatFloat(project.StaticNPV))
	fields.Set("project_config_interest_rate", formatFloat(project.InterestRate))
	fields.Set("project_config_base_dp", formatFloat(project.BaseDP))
	fields.Set("project_config_base_tenor", formatFloat(project.BaseTenor))
	fields.Set("project_config_max_tenor", formatFloat(project.MaxTenor))
	fields.Set("contract_date", datetime.FormatDate(p.contractDate))
	fields.Set("project_config_payment_frequency", string(p.frequency))
	fields.Set("project_config_default_scheme", p.scheme)
	fields.Set("special_offers", p.offer)
	fields.Set("project_constraints_max_discount", formatFloat(project.MaxDiscount))
	fields.Set("unit_maintenance_percent", formatFloat(p.unit.MaintenancePercent))
	fields.Set("currency_rate", formatFloat(p.pricing.Rate()))
	fields.Set("unit_contract_date", p.unit.ContractDate)
	fields.Set("project_constraints_annual_min", formatFloat(project.AnnualMin))
	fields.Set("project_constraints_first_year_min", formatFloat(project.FirstYearMin))
	fields.Set("tenor_years", formatFloat(tenor))
	fields.Set("project_config_id", project.ID)
	fields.Set("delivery_date", p.unit.DeliveryDate)
	fields.Set("dp", formatFloat(mathutil.RoundTo(dp, 10)))
	fields.Set("unit_code", p.unit.Code)
	fields.Set("installment_data", string(dataJSON))
	fields.Set("indixes", string(indexesJSON))

	seq := p.seq.Next()
	if p.state == StateReconciled {
		p.state = StateGenerated
	}

	p.logger.Debug("submission prepared",
		zap.String("op", "installment.Plan.Submission"),
		zap.String("unit", p.unit.Code),
		zap.Uint64("seq", seq),
		zap.Int("entered", len(indexes)),
	)
	return Submission{Seq: seq, Fields: fields}, nil
}

// ApplyResult applies the backend response to submission seq. Responses to
// superseded submissions are dropped with ErrStaleResponse.
func (p *Plan) ApplyResult(seq uint64, resp *topapi.CalculationResponse) error {
	if resp == nil {
		return ErrMalformedResponse
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.seq.IsLatest(seq) {
		p.logger.Debug("dropping stale response",
			zap.String("op", "installment.Plan.ApplyResult"),
			zap.Uint64("seq", seq),
			zap.Uint64("latest", p.seq.Latest()),
		)
		return fmt.Errorf("%w: seq %d, latest %d", ErrStaleResponse, seq, p.seq.Latest())
	}
	if resp.ForceLogout.Set {
		return ErrForcedLogout
	}
	if resp.TenorYearsError.Set {
		if resp.TenorYearsError.Message != "" {
			return fmt.Errorf("%w: %s", ErrTenorRejected, resp.TenorYearsError.Message)
		}
		return ErrTenorRejected
	}
	if resp.PriceWithInterest == nil {
		return fmt.Errorf("%w: missing price_with_interest", ErrMalformedResponse)
	}

	if resp.DP1 != nil {
		p.floors.First = *resp.DP1
	}
	if resp.DP2 != nil {
		p.floors.Second = *resp.DP2
	}
	if resp.NewBaseDP != nil {
		p.baseDP = *resp.NewBaseDP
	}

	p.last = resp
	p.appliedSeq = seq
	p.regenerate()
	p.applyDerived()
	p.recomputeLocks()
	if p.state != StateStabilizing {
		p.settleState()
	}

	p.logger.Debug("response applied",
		zap.String("op", "installment.Plan.ApplyResult"),
		zap.String("unit", p.unit.Code),
		zap.Uint64("seq", seq),
		zap.Float64("finalPrice", p.finalPrice),
	)
	return nil
}

// beginStabilizing moves the plan into the stabilizing state.
func (p *Plan) beginStabilizing() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.rows) > 0 {
		p.state = StateStabilizing
	}
}

// endStabilizing leaves the stabilizing state for generated or reconciled.
func (p *Plan) endStabilizing() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settleState()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
