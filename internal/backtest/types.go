package backtest

import (
	"time"

	"hl-basis-backtest/internal/align"

	"github.com/shopspring/decimal"
)

const HoursPerYear = 8760

type PnLRow struct {
	Time              time.Time       `json:"time"`
	MarketOpen        bool            `json:"market_open"`
	EquityPrice       float64         `json:"equity_price"`
	PerpPrice         float64         `json:"perp_price"`
	FundingRate       float64         `json:"funding_rate"`
	EquityPnL         decimal.Decimal `json:"equity_pnl"`
	PerpPricePnL      decimal.Decimal `json:"perp_price_pnl"`
	FundingPnL        decimal.Decimal `json:"funding_pnl"`
	HourPnL           decimal.Decimal `json:"hour_pnl"`
	CumulativePnL     decimal.Decimal `json:"cumulative_pnl"`
	CumulativeFunding decimal.Decimal `json:"cumulative_funding"`
}

// PricePnL is the combined price contribution of both legs for the hour.
func (r PnLRow) PricePnL() decimal.Decimal {
	return r.EquityPnL.Add(r.PerpPricePnL)
}

type Summary struct {
	Notional            float64         `json:"notional"`
	EquityUnits         decimal.Decimal `json:"equity_units"`
	PerpUnits           decimal.Decimal `json:"perp_units"`
	EntryTime           time.Time       `json:"entry_time"`
	ExitTime            time.Time       `json:"exit_time"`
	TotalEquityPnL      decimal.Decimal `json:"total_equity_pnl"`
	TotalPerpPricePnL   decimal.Decimal `json:"total_perp_price_pnl"`
	TotalPricePnL       decimal.Decimal `json:"total_price_pnl"`
	TotalFundingPnL     decimal.Decimal `json:"total_funding_pnl"`
	TotalPnL            decimal.Decimal `json:"total_pnl"`
	AnnualizedReturnPct decimal.Decimal `json:"annualized_return_pct"`
	ReturnPct           decimal.Decimal `json:"return_pct"`
	WinRate             float64         `json:"win_rate"`
	NumberOfHours       int             `json:"number_of_hours"`
	MarketHours         int             `json:"market_hours"`
	ClosedHours         int             `json:"closed_hours"`
}

type Result struct {
	Rows     []PnLRow                   `json:"rows"`
	Summary  Summary                    `json:"summary"`
	Warnings []align.DataQualityWarning `json:"warnings,omitempty"`
}
