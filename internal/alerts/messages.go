package alerts

import (
	"fmt"
	"strings"

	"hl-basis-backtest/internal/backtest"
	"hl-basis-backtest/internal/funding"
	"hl-basis-backtest/internal/market"
)

// BacktestMessage summarizes a completed backtest for chat delivery.
func BacktestMessage(equityTicker, perpCoin string, res *backtest.Result) string {
	s := res.Summary
	var b strings.Builder
	fmt.Fprintf(&b, "Carry backtest %s long / %s short\n", equityTicker, market.FormatCoin(perpCoin))
	fmt.Fprintf(&b, "%s to %s UTC (%d h, %d market)\n",
		s.EntryTime.UTC().Format("2006-01-02 15:04"),
		s.ExitTime.UTC().Format("2006-01-02 15:04"),
		s.NumberOfHours, s.MarketHours)
	fmt.Fprintf(&b, "Notional: $%.2f per leg\n", s.Notional)
	fmt.Fprintf(&b, "Price PnL: $%s\n", s.TotalPricePnL.StringFixed(2))
	fmt.Fprintf(&b, "Funding PnL: $%s\n", s.TotalFundingPnL.StringFixed(2))
	fmt.Fprintf(&b, "Total PnL: $%s (%s%%, annualized %s%%)\n",
		s.TotalPnL.StringFixed(2), s.ReturnPct.StringFixed(4), s.AnnualizedReturnPct.StringFixed(2))
	fmt.Fprintf(&b, "Win rate: %.1f%%", s.WinRate*100)
	if n := len(res.Warnings); n > 0 {
		fmt.Fprintf(&b, "\nData warnings: %d", n)
	}
	return b.String()
}

func FundingMessage(coin string, records int, averages []funding.WindowAverage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Funding %s: %d records", market.FormatCoin(coin), records)
	for _, avg := range averages {
		fmt.Fprintf(&b, "\nlast %dh avg %.8f (annualized %.2f%%)", avg.Window, avg.Rate, avg.AnnualizedPct)
	}
	return b.String()
}
