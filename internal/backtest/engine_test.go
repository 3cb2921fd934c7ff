package backtest

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"hl-basis-backtest/internal/align"
	"hl-basis-backtest/internal/series"

	"github.com/shopspring/decimal"
)

var start = time.Date(2025, 3, 3, 14, 0, 0, 0, time.UTC)

func at(h int) time.Time {
	return start.Add(time.Duration(h) * time.Hour)
}

func exampleTimeline(t *testing.T, rate float64) align.Timeline {
	t.Helper()
	equity := []series.PriceBar{{Time: at(0), Close: 100}, {Time: at(5), Close: 101}}
	perpPrices := []float64{50, 50.5, 51, 51, 50.8, 50.5, 50.2}
	perp := make([]series.PriceBar, len(perpPrices))
	funding := make([]series.FundingRecord, len(perpPrices))
	for i, p := range perpPrices {
		perp[i] = series.PriceBar{Time: at(i), Close: p}
		funding[i] = series.FundingRecord{Time: at(i), Rate: rate}
	}
	tl, err := align.Align(equity, perp, funding, align.Options{})
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	return tl
}

func requireDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: expected %s, got %s", name, want, got)
	}
}

func TestRunExampleScenario(t *testing.T) {
	res, err := Run(exampleTimeline(t, 0.0001), 10000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rows) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(res.Rows))
	}
	for i, row := range res.Rows {
		requireDecimal(t, "funding_pnl", row.FundingPnL, "1")
		if i != 5 && !row.EquityPnL.IsZero() {
			t.Fatalf("hour %d expected no equity pnl, got %s", i, row.EquityPnL)
		}
	}
	requireDecimal(t, "equity_pnl hour 5", res.Rows[5].EquityPnL, "100")
	requireDecimal(t, "perp pnl hour 1", res.Rows[1].PerpPricePnL, "-100")
	requireDecimal(t, "perp pnl hour 2", res.Rows[2].PerpPricePnL, "-100")
	requireDecimal(t, "perp pnl hour 4", res.Rows[4].PerpPricePnL, "40")

	s := res.Summary
	requireDecimal(t, "total funding", s.TotalFundingPnL, "7")
	requireDecimal(t, "total price", s.TotalPricePnL, "60")
	requireDecimal(t, "total", s.TotalPnL, "67")
	requireDecimal(t, "equity units", s.EquityUnits, "100")
	requireDecimal(t, "perp units", s.PerpUnits, "200")
	if s.NumberOfHours != 7 || s.MarketHours != 2 || s.ClosedHours != 5 {
		t.Fatalf("unexpected hour counts %+v", s)
	}
	if math.Abs(s.WinRate-5.0/7.0) > 1e-12 {
		t.Fatalf("expected win rate 5/7, got %f", s.WinRate)
	}
	wantAnnualized := 67.0 / 10000 * (8760.0 / 7) * 100
	if math.Abs(s.AnnualizedReturnPct.InexactFloat64()-wantAnnualized) > 1e-9 {
		t.Fatalf("expected annualized %f, got %s", wantAnnualized, s.AnnualizedReturnPct)
	}
	if !s.EntryTime.Equal(at(0)) || !s.ExitTime.Equal(at(6)) {
		t.Fatalf("unexpected entry/exit %s %s", s.EntryTime, s.ExitTime)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	tl := exampleTimeline(t, 0.0001)
	a, err := Run(tl, 10000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	b, err := Run(tl, 10000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical results")
	}
}

func TestRunConservation(t *testing.T) {
	res, err := Run(exampleTimeline(t, 0.000037), 12345.67)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	prev := decimal.Zero
	for i, row := range res.Rows {
		sum := row.EquityPnL.Add(row.PerpPricePnL).Add(row.FundingPnL)
		if !sum.Equal(row.CumulativePnL.Sub(prev)) {
			t.Fatalf("row %d: components %s != cumulative delta %s", i, sum, row.CumulativePnL.Sub(prev))
		}
		if !sum.Equal(row.HourPnL) {
			t.Fatalf("row %d: hour pnl %s != %s", i, row.HourPnL, sum)
		}
		prev = row.CumulativePnL
	}
}

func TestRunZeroFundingNeutrality(t *testing.T) {
	res, err := Run(exampleTimeline(t, 0), 10000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Summary.TotalFundingPnL.IsZero() {
		t.Fatalf("expected zero funding, got %s", res.Summary.TotalFundingPnL)
	}
	if !res.Summary.TotalPnL.Equal(res.Summary.TotalPricePnL) {
		t.Fatalf("expected total %s to equal price pnl %s", res.Summary.TotalPnL, res.Summary.TotalPricePnL)
	}
}

func TestRunNegativeFundingIsPaid(t *testing.T) {
	res, err := Run(exampleTimeline(t, -0.0002), 10000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireDecimal(t, "total funding", res.Summary.TotalFundingPnL, "-14")
}

func TestRunSkipsRowsBeforeEntry(t *testing.T) {
	tl := align.Timeline{Rows: []align.Row{
		{Time: at(0), PerpPrice: 10},
		{Time: at(1), PerpPrice: 11, FundingRate: 0.5},
		{Time: at(2), PerpPrice: 12, EquityPrice: 20, EquityAvailable: true, MarketOpen: true, FundingRate: 0.001},
		{Time: at(3), PerpPrice: 12, EquityPrice: 21, EquityAvailable: true, MarketOpen: true, FundingRate: 0.001},
	}}
	res, err := Run(tl, 1000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rows) != 2 || !res.Rows[0].Time.Equal(at(2)) {
		t.Fatalf("expected rows from entry hour, got %+v", res.Rows)
	}
	requireDecimal(t, "equity pnl", res.Rows[1].EquityPnL, "50")
	requireDecimal(t, "total funding", res.Summary.TotalFundingPnL, "2")
}

func TestRunCarriesWarnings(t *testing.T) {
	tl := exampleTimeline(t, 0.0001)
	tl.Warnings = []align.DataQualityWarning{{Start: at(1), End: at(30), Hours: 30, Reason: "funding records missing"}}
	res, err := Run(tl, 10000)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Hours != 30 {
		t.Fatalf("expected warning to be carried, got %v", res.Warnings)
	}
}

func TestRunValidation(t *testing.T) {
	good := exampleTimeline(t, 0.0001)
	nanRow := exampleTimeline(t, 0.0001)
	nanRow.Rows[3].PerpPrice = math.NaN()
	unavailable := align.Timeline{Rows: []align.Row{{Time: at(0), PerpPrice: 1}}}

	cases := []struct {
		name     string
		tl       align.Timeline
		notional float64
		field    string
	}{
		{"negative notional", good, -1, "notional"},
		{"zero notional", good, 0, "notional"},
		{"nan notional", good, math.NaN(), "notional"},
		{"empty timeline", align.Timeline{}, 100, "timeline"},
		{"nan perp price", nanRow, 100, "perp_price"},
		{"no equity", unavailable, 100, "equity_price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(tc.tl, tc.notional)
			var verr *series.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, verr.Field)
			}
		})
	}
}
