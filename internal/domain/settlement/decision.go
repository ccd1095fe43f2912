package settlement

import "github.com/shopspring/decimal"

// Decision is the outcome of the secondary settlement check
type Decision string

const (
	DecisionPassed  Decision = "PASSED"
	DecisionPartial Decision = "PARTIAL"
	DecisionFailed  Decision = "FAILED"
)

// Thresholds holds the dwell-time boundaries of the SLA check, in seconds.
// Below PartialMin the settlement fails outright; at or above Pass the full
// secondary amount is settled; in between the payout is a linear ramp.
type Thresholds struct {
	PartialMin float64
	Pass       float64
}

// DefaultThresholds are the reference SLA boundaries: 3s and 20s
func DefaultThresholds() Thresholds {
	return Thresholds{PartialMin: 3.0, Pass: 20.0}
}

// Decide maps a dwell time onto a settlement decision
func (th Thresholds) Decide(dwellSeconds float64) Decision {
	switch {
	case dwellSeconds < th.PartialMin:
		return DecisionFailed
	case dwellSeconds >= th.Pass:
		return DecisionPassed
	default:
		return DecisionPartial
	}
}

var (
	ratioFloor = decimal.NewFromFloat(0.25)
	ratioSpan  = decimal.NewFromFloat(0.75)
	ratioOne   = decimal.NewFromInt(1)
)

// PayoutRatio returns the fraction of the secondary amount settled for the
// given dwell time: 0 below PartialMin, 1 at or above Pass, and a linear
// interpolation from 0.25 to 1.0 in between.
func (th Thresholds) PayoutRatio(dwellSeconds float64) decimal.Decimal {
	switch th.Decide(dwellSeconds) {
	case DecisionFailed:
		return decimal.Zero
	case DecisionPassed:
		return ratioOne
	}

	progress := decimal.NewFromFloat(dwellSeconds - th.PartialMin).
		Div(decimal.NewFromFloat(th.Pass - th.PartialMin))
	ratio := ratioFloor.Add(ratioSpan.Mul(progress))
	if ratio.LessThan(ratioFloor) {
		return ratioFloor
	}
	if ratio.GreaterThan(ratioOne) {
		return ratioOne
	}
	return ratio
}

// SettledAmount computes the secondary payout in minor units for the given
// base amount and dwell time, rounding half-up to a whole minor unit.
func (th Thresholds) SettledAmount(baseAmount int64, dwellSeconds float64) int64 {
	return th.PayoutRatio(dwellSeconds).
		Mul(decimal.NewFromInt(baseAmount)).
		Round(0).
		IntPart()
}
