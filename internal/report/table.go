package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"hl-basis-backtest/internal/backtest"
	"hl-basis-backtest/internal/funding"
	"hl-basis-backtest/internal/market"

	"github.com/shopspring/decimal"
)

const rule = "======================================================================"

// PrintPnLTable renders the hourly series followed by the summary block.
// Closed-market equity prices are marked with an asterisk.
func PrintPnLTable(out io.Writer, pair Pair, res *backtest.Result) error {
	s := res.Summary
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  Carry backtest: %s (long) vs %s (short)\n", pair.EquityTicker, market.FormatCoin(pair.PerpCoin))
	fmt.Fprintf(out, "  Notional: $%s per leg\n", fmtFloat(s.Notional, 2))
	fmt.Fprintln(out, rule)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Time (UTC)\tEquity $\tPerp $\tHour PnL\tFunding\tCum. PnL\tCum. Funding\t")
	for _, r := range res.Rows {
		marker := ""
		if !r.MarketOpen {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Time.UTC().Format(timeLayout),
			fmtFloat(r.EquityPrice, 2), marker,
			fmtFloat(r.PerpPrice, 2),
			r.PricePnL().StringFixed(2),
			r.FundingPnL.StringFixed(2),
			r.CumulativePnL.Sub(r.CumulativeFunding).StringFixed(2),
			r.CumulativeFunding.StringFixed(2),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  Hours analyzed:     %d (%d market, %d closed)\n", s.NumberOfHours, s.MarketHours, s.ClosedHours)
	fmt.Fprintf(out, "  Total price PnL:    $%s\n", s.TotalPricePnL.StringFixed(2))
	fmt.Fprintf(out, "  Total funding PnL:  $%s\n", s.TotalFundingPnL.StringFixed(2))
	fmt.Fprintf(out, "  Total PnL:          $%s (%s%%)\n", s.TotalPnL.StringFixed(2), s.ReturnPct.StringFixed(4))
	fmt.Fprintf(out, "  Annualized return:  %s%%\n", s.AnnualizedReturnPct.StringFixed(2))
	fmt.Fprintf(out, "  Win rate:           %s%%\n", fmtFloat(s.WinRate*100, 1))
	fmt.Fprintln(out, rule)
	if s.ClosedHours > 0 {
		fmt.Fprintln(out, "  * equity market closed, price carried forward")
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s\n", warn.String())
	}
	return nil
}

// PrintCosts appends the round-trip cost estimate under the summary block.
func PrintCosts(out io.Writer, model backtest.CostModel, cost, net decimal.Decimal) {
	if !model.Enabled() {
		return
	}
	fmt.Fprintf(out, "  Est. round trip:    $%s (%s bps fee, %s bps slippage per fill)\n",
		cost.StringFixed(2), fmtFloat(model.FeeBps, 2), fmtFloat(model.SlippageBps, 2))
	fmt.Fprintf(out, "  Net of costs:       $%s\n", net.StringFixed(2))
}

func PrintFundingTable(out io.Writer, coin string, rows []funding.RateRow, averages []funding.WindowAverage) error {
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "  Funding rates for %s\n", market.FormatCoin(coin))
	fmt.Fprintln(out, rule)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Time (UTC)\tFunding Rate\tRate %\tAnnualized %\tPremium\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s%%\t%s%%\t%s\t\n",
			r.Time.UTC().Format(timeLayout),
			fmtFloat(r.Rate, 8),
			fmtFloat(r.RatePct, 6),
			fmtFloat(r.AnnualizedPct, 2),
			fmtFloat(r.Premium, 8),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, rule)
	for _, avg := range averages {
		label := fmt.Sprintf("last %dh", avg.Window)
		fmt.Fprintf(out, "  Average (%s): %s (%s%%), annualized %s%%\n",
			label, fmtFloat(avg.Rate, 8), fmtFloat(avg.Rate*100, 6), fmtFloat(avg.AnnualizedPct, 2))
	}
	fmt.Fprintf(out, "  Records: %d\n", len(rows))
	fmt.Fprintln(out, strings.Repeat("=", len(rule)))
	return nil
}
