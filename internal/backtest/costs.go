package backtest

import "github.com/shopspring/decimal"

// Entry and exit on both legs.
const roundTripFills = 4

// CostModel prices one round trip of the pair in basis points per fill.
type CostModel struct {
	FeeBps      float64 `json:"fee_bps"`
	SlippageBps float64 `json:"slippage_bps"`
}

func (m CostModel) Enabled() bool {
	return m.FeeBps+m.SlippageBps > 0
}

// RoundTripCost is the dollar cost of opening and closing both legs at notional each.
func (m CostModel) RoundTripCost(notional float64) decimal.Decimal {
	bps := m.FeeBps + m.SlippageBps
	if bps <= 0 || notional <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(notional).
		Mul(decimal.NewFromFloat(bps)).
		Div(decimal.NewFromInt(10000)).
		Mul(decimal.NewFromInt(roundTripFills))
}

// NetOfCosts returns the round-trip cost and the summary's total PnL after it.
func NetOfCosts(s Summary, m CostModel) (cost, net decimal.Decimal) {
	cost = m.RoundTripCost(s.Notional)
	return cost, s.TotalPnL.Sub(cost)
}
