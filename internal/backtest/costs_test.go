package backtest

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundTripCost(t *testing.T) {
	m := CostModel{FeeBps: 3.5, SlippageBps: 1.5}
	requireDecimal(t, "cost", m.RoundTripCost(10000), "20")
	if !m.Enabled() {
		t.Fatalf("expected cost model enabled")
	}
}

func TestRoundTripCostDisabled(t *testing.T) {
	var m CostModel
	if m.Enabled() {
		t.Fatalf("zero cost model should be disabled")
	}
	if !m.RoundTripCost(10000).IsZero() {
		t.Fatalf("expected zero cost")
	}
	if !(CostModel{FeeBps: 5}).RoundTripCost(0).IsZero() {
		t.Fatalf("expected zero cost for zero notional")
	}
}

func TestNetOfCosts(t *testing.T) {
	res, err := Run(exampleTimeline(t, 0.0001), 10000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	cost, net := NetOfCosts(res.Summary, CostModel{FeeBps: 2.5})
	requireDecimal(t, "cost", cost, "10")
	if !net.Equal(decimal.NewFromInt(57)) {
		t.Fatalf("expected net 57, got %s", net)
	}
}
