package ratemath

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/reservebot/goreserve/reserve/types"
)

func TestApplyBps(t *testing.T) {
	rate := big.NewInt(1_000_000)

	up := ApplyBps(rate, 25)
	if up.Int64() != 1_002_500 {
		t.Fatalf("ApplyBps(+25) got=%d want=1002500", up.Int64())
	}
	down := ApplyBps(rate, -30)
	if down.Int64() != 997_000 {
		t.Fatalf("ApplyBps(-30) got=%d want=997000", down.Int64())
	}
	if rate.Int64() != 1_000_000 {
		t.Fatalf("input mutated: %d", rate.Int64())
	}
}

func TestStepAdjustmentBps(t *testing.T) {
	steps := []types.StepPoint{
		{X: big.NewInt(100), Y: big.NewInt(0)},
		{X: big.NewInt(200), Y: big.NewInt(-30)},
		{X: big.NewInt(300), Y: big.NewInt(-70)},
	}

	cases := []struct {
		amount int64
		want   int64
	}{
		{50, 0},    // inside the first band
		{100, 0},   // on the first threshold
		{150, -30}, // second band
		{300, -70}, // last threshold
		{999, -70}, // past the table: last adjustment sticks
	}
	for _, tc := range cases {
		got := StepAdjustmentBps(steps, big.NewInt(tc.amount))
		if got != tc.want {
			t.Fatalf("StepAdjustmentBps(%d) got=%d want=%d", tc.amount, got, tc.want)
		}
	}

	if got := StepAdjustmentBps(nil, big.NewInt(10)); got != 0 {
		t.Fatalf("empty table got=%d want=0", got)
	}
}

func TestApplyStep(t *testing.T) {
	steps := []types.StepPoint{
		{X: big.NewInt(1_000), Y: big.NewInt(0)},
		{X: big.NewInt(2_000), Y: big.NewInt(-50)},
	}
	base := big.NewInt(2_000_000)

	got := ApplyStep(base, steps, big.NewInt(1_500))
	if got.Int64() != 1_990_000 {
		t.Fatalf("ApplyStep got=%d want=1990000", got.Int64())
	}
}

func TestDeviationBps(t *testing.T) {
	ref := big.NewInt(1_000_000)

	if got := DeviationBps(big.NewInt(1_005_000), ref); got != 50 {
		t.Fatalf("DeviationBps got=%d want=50", got)
	}
	if got := DeviationBps(big.NewInt(995_000), ref); got != 50 {
		t.Fatalf("DeviationBps below got=%d want=50", got)
	}
	if got := DeviationBps(ref, ref); got != 0 {
		t.Fatalf("DeviationBps equal got=%d want=0", got)
	}

	// Zero reference: equality is fine, anything else fails closed.
	if got := DeviationBps(big.NewInt(0), big.NewInt(0)); got != 0 {
		t.Fatalf("zero/zero got=%d want=0", got)
	}
	if got := DeviationBps(big.NewInt(1), big.NewInt(0)); got <= 0 {
		t.Fatalf("nonzero/zero got=%d want max", got)
	}

	if !WithinBps(big.NewInt(1_004_000), ref, 50) {
		t.Fatal("WithinBps(40bps, max 50) got=false want=true")
	}
	if WithinBps(big.NewInt(1_006_000), ref, 50) {
		t.Fatal("WithinBps(60bps, max 50) got=true want=false")
	}
}

func TestSpreadAndToWeiRate(t *testing.T) {
	mid := decimal.RequireFromString("0.005")

	buy, sell := Spread(mid, 100) // 1% around mid
	if !buy.Equal(decimal.RequireFromString("0.00495")) {
		t.Fatalf("buy got=%s want=0.00495", buy)
	}
	if !sell.Equal(decimal.RequireFromString("0.00505")) {
		t.Fatalf("sell got=%s want=0.00505", sell)
	}

	wei := ToWeiRate(buy)
	want, _ := new(big.Int).SetString("4950000000000000", 10)
	if wei.Cmp(want) != 0 {
		t.Fatalf("ToWeiRate got=%s want=%s", wei, want)
	}
}
