// Package ratemath does the client-side rate arithmetic the feeder and the
// watcher TUI need: basis-point adjustments, step-table application, and
// deviation checks. All on-chain quantities stay *big.Int; float arithmetic
// never touches a rate.
package ratemath

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/reservebot/goreserve/reserve/types"
)

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10_000

var bpsDenom = big.NewInt(BpsDenominator)

// ApplyBps scales rate by (10000+bps)/10000. Negative bps shift the rate
// down. The input is not mutated.
func ApplyBps(rate *big.Int, bps int64) *big.Int {
	if rate == nil {
		return nil
	}
	factor := big.NewInt(BpsDenominator + bps)
	out := new(big.Int).Mul(rate, factor)
	return out.Div(out, bpsDenom)
}

// StepAdjustmentBps picks the adjustment for amount from an ordered step
// table: the first point whose threshold covers amount wins, and amounts
// past the last threshold take the last adjustment. An empty table means no
// adjustment.
func StepAdjustmentBps(steps []types.StepPoint, amount *big.Int) int64 {
	if len(steps) == 0 || amount == nil {
		return 0
	}
	for _, p := range steps {
		if amount.Cmp(p.X) <= 0 {
			return p.Y.Int64()
		}
	}
	return steps[len(steps)-1].Y.Int64()
}

// ApplyStep applies the table's adjustment for amount to base.
func ApplyStep(base *big.Int, steps []types.StepPoint, amount *big.Int) *big.Int {
	return ApplyBps(base, StepAdjustmentBps(steps, amount))
}

// DeviationBps reports |current-reference| relative to reference in basis
// points, rounded down. A nil or zero reference yields 0 when current
// matches and the max int64 otherwise, so "everything deviates from
// nothing" fails deviation gates closed.
func DeviationBps(current, reference *big.Int) int64 {
	if current == nil && reference == nil {
		return 0
	}
	if reference == nil || reference.Sign() == 0 {
		if current == nil || current.Sign() == 0 {
			return 0
		}
		return int64(^uint64(0) >> 1)
	}
	if current == nil {
		return int64(^uint64(0) >> 1)
	}
	diff := new(big.Int).Sub(current, reference)
	diff.Abs(diff)
	diff.Mul(diff, bpsDenom)
	diff.Div(diff, new(big.Int).Abs(reference))
	if !diff.IsInt64() {
		return int64(^uint64(0) >> 1)
	}
	return diff.Int64()
}

// WithinBps reports whether current is within maxBps of reference.
func WithinBps(current, reference *big.Int, maxBps int64) bool {
	return DeviationBps(current, reference) <= maxBps
}

// Spread quotes a two-sided market around a mid price: the buy (bid) side
// sits spreadBps below mid, the sell (ask) side spreadBps above.
func Spread(mid decimal.Decimal, spreadBps int64) (buy, sell decimal.Decimal) {
	factor := decimal.NewFromInt(spreadBps).Div(decimal.NewFromInt(BpsDenominator))
	buy = mid.Mul(decimal.NewFromInt(1).Sub(factor))
	sell = mid.Mul(decimal.NewFromInt(1).Add(factor))
	return buy, sell
}

// ToWeiRate converts a decimal price to an 18-decimal integer rate without
// going through floats.
func ToWeiRate(price decimal.Decimal) *big.Int {
	return price.Shift(18).Truncate(0).BigInt()
}
