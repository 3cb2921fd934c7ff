package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hl-basis-backtest/internal/backtest"
	"hl-basis-backtest/internal/funding"
	"hl-basis-backtest/internal/market"

	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04"

// Pair names the two legs of a backtest.
type Pair struct {
	EquityTicker string
	PerpCoin     string
}

func WritePnLCSV(out io.Writer, pair Pair, res *backtest.Result) error {
	w := csv.NewWriter(out)

	header := []string{
		"time_utc",
		"market_open",
		"equity_price",
		"perp_price",
		"equity_pnl",
		"perp_pnl",
		"hour_pnl",
		"funding_rate",
		"funding_pnl",
		"cumulative_pnl",
		"cumulative_funding",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range res.Rows {
		row := []string{
			r.Time.UTC().Format(timeLayout),
			yesNo(r.MarketOpen),
			fmtFloat(r.EquityPrice, 4),
			fmtFloat(r.PerpPrice, 4),
			fmtMoney(r.EquityPnL),
			fmtMoney(r.PerpPricePnL),
			fmtMoney(r.HourPnL),
			fmtFloat(r.FundingRate, 8),
			fmtMoney(r.FundingPnL),
			fmtMoney(r.CumulativePnL),
			fmtMoney(r.CumulativeFunding),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	s := res.Summary
	summary := [][]string{
		{},
		{"summary"},
		{"equity_ticker", pair.EquityTicker},
		{"perp_coin", market.FormatCoin(pair.PerpCoin)},
		{"notional_per_leg", fmtFloat(s.Notional, 2)},
		{"entry_time_utc", fmtTime(s.EntryTime)},
		{"exit_time_utc", fmtTime(s.ExitTime)},
		{"hours", strconv.Itoa(s.NumberOfHours)},
		{"market_hours", strconv.Itoa(s.MarketHours)},
		{"closed_hours", strconv.Itoa(s.ClosedHours)},
		{"total_price_pnl", fmtMoney(s.TotalPricePnL)},
		{"total_funding_pnl", fmtMoney(s.TotalFundingPnL)},
		{"total_pnl", fmtMoney(s.TotalPnL)},
		{"return_pct", s.ReturnPct.StringFixed(4)},
		{"annualized_return_pct", s.AnnualizedReturnPct.StringFixed(4)},
		{"win_rate", fmtFloat(s.WinRate, 4)},
	}
	for _, warn := range res.Warnings {
		summary = append(summary, []string{"warning", warn.String()})
	}
	if err := w.WriteAll(summary); err != nil {
		return err
	}
	return w.Error()
}

func WriteFundingCSV(out io.Writer, coin string, rows []funding.RateRow, averages []funding.WindowAverage) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"time_utc", "funding_rate", "funding_rate_pct", "annualized_pct", "premium", "coin"}); err != nil {
		return err
	}
	coin = market.FormatCoin(coin)
	for _, r := range rows {
		row := []string{
			r.Time.UTC().Format(timeLayout),
			fmtFloat(r.Rate, 8),
			fmtFloat(r.RatePct, 6),
			fmtFloat(r.AnnualizedPct, 2),
			fmtFloat(r.Premium, 8),
			coin,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	if len(averages) > 0 {
		if err := w.Write([]string{}); err != nil {
			return err
		}
	}
	for _, avg := range averages {
		row := []string{
			fmt.Sprintf("average_%dh", avg.Window),
			fmtFloat(avg.Rate, 8),
			fmtFloat(avg.Rate*100, 6),
			fmtFloat(avg.AnnualizedPct, 2),
			"",
			coin,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// SavePnLCSV writes the backtest CSV under dir and returns its path.
func SavePnLCSV(dir string, pair Pair, res *backtest.Result, now time.Time) (string, error) {
	name := fmt.Sprintf("arb_%s_%s_%s.csv", pair.EquityTicker, market.FileSafeCoin(pair.PerpCoin), now.Format("20060102_150405"))
	return writeFile(dir, name, func(w io.Writer) error {
		return WritePnLCSV(w, pair, res)
	})
}

func SaveFundingCSV(dir, coin string, rows []funding.RateRow, averages []funding.WindowAverage, now time.Time) (string, error) {
	name := fmt.Sprintf("funding_rates_%s_%s.csv", market.FileSafeCoin(coin), now.Format("20060102_150405"))
	return writeFile(dir, name, func(w io.Writer) error {
		return WriteFundingCSV(w, coin, rows, averages)
	})
}

func writeFile(dir, name string, write func(io.Writer) error) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func fmtFloat(x float64, prec int) string {
	return strconv.FormatFloat(x, 'f', prec, 64)
}

func fmtMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}
