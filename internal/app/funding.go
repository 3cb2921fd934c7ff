package app

import (
	"context"
	"fmt"
	"time"

	"hl-basis-backtest/internal/alerts"
	"hl-basis-backtest/internal/funding"
	"hl-basis-backtest/internal/market"
	"hl-basis-backtest/internal/series"

	"go.uber.org/zap"
)

// FundingRequest selects a coin and lookback; Window adds a trailing average
// over the last Window records on top of the full-period average.
type FundingRequest struct {
	Coin   string    `json:"coin"`
	Hours  int       `json:"hours"`
	Window int       `json:"window"`
	End    time.Time `json:"end,omitempty"`
}

type FundingReport struct {
	Coin     string                  `json:"coin"`
	Start    time.Time               `json:"start"`
	End      time.Time               `json:"end"`
	Records  []series.FundingRecord  `json:"-"`
	Rows     []funding.RateRow       `json:"rows"`
	Averages []funding.WindowAverage `json:"averages"`
}

func (a *App) RunFunding(ctx context.Context, req FundingRequest) (*FundingReport, error) {
	if req.Coin == "" {
		req.Coin = a.cfg.Backtest.PerpCoin
	}
	if req.Hours == 0 {
		req.Hours = a.cfg.Backtest.Hours
	}
	req.Coin = market.FormatCoin(req.Coin)
	if err := requireText("coin", req.Coin); err != nil {
		return nil, err
	}
	if req.Hours <= 0 {
		return nil, series.Invalid("hours", "must be > 0", float64(req.Hours))
	}
	if req.Window < 0 {
		return nil, series.Invalid("window", "must be >= 0", float64(req.Window))
	}
	start, end := a.window(req.Hours, req.End)
	log := a.log.With(zap.String("coin", req.Coin))

	records, err := a.sources.Funding.FundingHistory(ctx, req.Coin, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch funding %s: %w", req.Coin, err)
	}
	rows, err := funding.Analyze(records)
	if err != nil {
		return nil, err
	}
	overall, err := funding.Average(records)
	if err != nil {
		return nil, err
	}
	averages := []funding.WindowAverage{overall}
	if req.Window > 0 && req.Window != len(records) {
		trailing, err := funding.TrailingAverage(records, req.Window)
		if err != nil {
			return nil, err
		}
		averages = append(averages, trailing)
	}
	a.metrics.FundingReports.Inc()
	log.Info("funding report",
		zap.Int("records", len(records)),
		zap.Float64("average_rate", overall.Rate),
		zap.Float64("annualized_pct", overall.AnnualizedPct),
	)
	if a.sink != nil {
		if err := a.sink.WriteFunding(ctx, req.Coin, records); err != nil {
			log.Warn("timescale funding write failed", zap.Error(err))
		}
	}
	a.notify(ctx, alerts.FundingMessage(req.Coin, len(records), averages))
	return &FundingReport{
		Coin:     req.Coin,
		Start:    start,
		End:      end,
		Records:  records,
		Rows:     rows,
		Averages: averages,
	}, nil
}
