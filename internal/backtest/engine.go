package backtest

import (
	"fmt"

	"hl-basis-backtest/internal/align"
	"hl-basis-backtest/internal/series"

	"github.com/shopspring/decimal"
)

var (
	hoursPerYear = decimal.NewFromInt(HoursPerYear)
	hundred      = decimal.NewFromInt(100)
)

// Run walks the timeline from the first hour with a known equity close and
// attributes hourly PnL to the long equity leg, the short perp leg and funding.
//
// notional is the dollar exposure of each leg at entry. Funding accrues on that
// fixed entry notional rather than the marked-to-market short value.
func Run(tl align.Timeline, notional float64) (*Result, error) {
	if !series.IsFinite(notional) {
		return nil, series.Invalid("notional", "not a finite number", notional)
	}
	if notional <= 0 {
		return nil, series.Invalid("notional", fmt.Sprintf("%g must be > 0", notional), notional)
	}
	if len(tl.Rows) == 0 {
		return nil, series.Invalid("timeline", "no rows", 0)
	}
	entry := -1
	for i, row := range tl.Rows {
		if row.EquityAvailable {
			entry = i
			break
		}
	}
	if entry < 0 {
		return nil, series.Invalid("equity_price", "no hour with a known equity close", 0)
	}
	if err := validateRows(tl.Rows[entry:], entry); err != nil {
		return nil, err
	}

	notionalD := decimal.NewFromFloat(notional)
	first := tl.Rows[entry]
	equityUnits := notionalD.Div(decimal.NewFromFloat(first.EquityPrice))
	perpUnits := notionalD.Div(decimal.NewFromFloat(first.PerpPrice))

	rows := make([]PnLRow, 0, len(tl.Rows)-entry)
	var (
		cum, cumFunding        decimal.Decimal
		totalEquity, totalPerp decimal.Decimal
		wins, marketHours      int
		prevEquity, prevPerp   decimal.Decimal
	)
	for i, row := range tl.Rows[entry:] {
		equityPx := decimal.NewFromFloat(row.EquityPrice)
		perpPx := decimal.NewFromFloat(row.PerpPrice)
		equityPnL, perpPnL := decimal.Zero, decimal.Zero
		if i > 0 {
			equityPnL = equityPx.Sub(prevEquity).Mul(equityUnits)
			perpPnL = perpPx.Sub(prevPerp).Mul(perpUnits).Neg()
		}
		fundingPnL := decimal.NewFromFloat(row.FundingRate).Mul(notionalD)
		hourPnL := equityPnL.Add(perpPnL).Add(fundingPnL)
		cum = cum.Add(hourPnL)
		cumFunding = cumFunding.Add(fundingPnL)
		totalEquity = totalEquity.Add(equityPnL)
		totalPerp = totalPerp.Add(perpPnL)
		if !hourPnL.IsNegative() {
			wins++
		}
		if row.MarketOpen {
			marketHours++
		}
		rows = append(rows, PnLRow{
			Time:              row.Time,
			MarketOpen:        row.MarketOpen,
			EquityPrice:       row.EquityPrice,
			PerpPrice:         row.PerpPrice,
			FundingRate:       row.FundingRate,
			EquityPnL:         equityPnL,
			PerpPricePnL:      perpPnL,
			FundingPnL:        fundingPnL,
			HourPnL:           hourPnL,
			CumulativePnL:     cum,
			CumulativeFunding: cumFunding,
		})
		prevEquity, prevPerp = equityPx, perpPx
	}

	hours := len(rows)
	returnFrac := cum.Div(notionalD)
	summary := Summary{
		Notional:            notional,
		EquityUnits:         equityUnits,
		PerpUnits:           perpUnits,
		EntryTime:           rows[0].Time,
		ExitTime:            rows[hours-1].Time,
		TotalEquityPnL:      totalEquity,
		TotalPerpPricePnL:   totalPerp,
		TotalPricePnL:       totalEquity.Add(totalPerp),
		TotalFundingPnL:     cumFunding,
		TotalPnL:            cum,
		ReturnPct:           returnFrac.Mul(hundred),
		AnnualizedReturnPct: returnFrac.Mul(hoursPerYear).Div(decimal.NewFromInt(int64(hours))).Mul(hundred),
		WinRate:             float64(wins) / float64(hours),
		NumberOfHours:       hours,
		MarketHours:         marketHours,
		ClosedHours:         hours - marketHours,
	}
	var warnings []align.DataQualityWarning
	if len(tl.Warnings) > 0 {
		warnings = append(warnings, tl.Warnings...)
	}
	return &Result{Rows: rows, Summary: summary, Warnings: warnings}, nil
}

func validateRows(rows []align.Row, offset int) error {
	for i, row := range rows {
		idx := offset + i
		if !row.EquityAvailable {
			return &series.ValidationError{Field: "equity_price", Index: idx, Time: row.Time, Reason: "unavailable after entry"}
		}
		if !series.IsFinite(row.EquityPrice) || row.EquityPrice <= 0 {
			return &series.ValidationError{Field: "equity_price", Index: idx, Time: row.Time, Value: row.EquityPrice, Reason: "must be a finite positive price"}
		}
		if !series.IsFinite(row.PerpPrice) || row.PerpPrice <= 0 {
			return &series.ValidationError{Field: "perp_price", Index: idx, Time: row.Time, Value: row.PerpPrice, Reason: "must be a finite positive price"}
		}
		if !series.IsFinite(row.FundingRate) {
			return &series.ValidationError{Field: "funding_rate", Index: idx, Time: row.Time, Value: row.FundingRate, Reason: "not a finite number"}
		}
		if i > 0 && !row.Time.After(rows[i-1].Time) {
			return &series.ValidationError{Field: "time", Index: idx, Time: row.Time, Reason: "timestamps must be strictly increasing"}
		}
	}
	return nil
}
