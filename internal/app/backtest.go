package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hl-basis-backtest/internal/alerts"
	"hl-basis-backtest/internal/align"
	"hl-basis-backtest/internal/backtest"
	"hl-basis-backtest/internal/market"
	"hl-basis-backtest/internal/series"
	"hl-basis-backtest/internal/timescale"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BacktestRequest carries per-run parameters; zero fields fall back to the backtest config.
type BacktestRequest struct {
	StockTicker  string        `json:"stock_ticker"`
	PerpCoin     string        `json:"perp_coin"`
	NotionalUSD  float64       `json:"notional_usd"`
	Hours        int           `json:"hours"`
	Start        time.Time     `json:"start,omitempty"`
	End          time.Time     `json:"end,omitempty"`
	GapThreshold time.Duration `json:"gap_threshold,omitempty"`
	FeeBps       float64       `json:"fee_bps,omitempty"`
	SlippageBps  float64       `json:"slippage_bps,omitempty"`
}

type BacktestReport struct {
	RunID        uuid.UUID          `json:"run_id"`
	StockTicker  string             `json:"stock_ticker"`
	PerpCoin     string             `json:"perp_coin"`
	FetchedStart time.Time          `json:"fetched_start"`
	FetchedEnd   time.Time          `json:"fetched_end"`
	Result       *backtest.Result   `json:"result"`
	Costs        backtest.CostModel `json:"costs"`
	// EstimatedCosts and NetPnL are zero when no cost model is configured.
	EstimatedCosts decimal.Decimal `json:"estimated_costs"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
}

func (a *App) resolveBacktest(req BacktestRequest) (BacktestRequest, error) {
	defaults := a.cfg.Backtest
	if strings.TrimSpace(req.StockTicker) == "" {
		req.StockTicker = defaults.StockTicker
	}
	if strings.TrimSpace(req.PerpCoin) == "" {
		req.PerpCoin = defaults.PerpCoin
	}
	if req.NotionalUSD == 0 {
		req.NotionalUSD = defaults.NotionalUSD
	}
	if req.Hours == 0 {
		req.Hours = defaults.Hours
	}
	if req.GapThreshold == 0 {
		req.GapThreshold = defaults.GapThreshold
	}
	if req.FeeBps == 0 {
		req.FeeBps = defaults.FeeBps
	}
	if req.SlippageBps == 0 {
		req.SlippageBps = defaults.SlippageBps
	}
	if req.FeeBps < 0 || req.SlippageBps < 0 {
		return req, series.Invalid("fee_bps", "fee and slippage must be >= 0", req.FeeBps+req.SlippageBps)
	}
	req.StockTicker = strings.ToUpper(strings.TrimSpace(req.StockTicker))
	req.PerpCoin = market.FormatCoin(req.PerpCoin)
	if err := requireText("stock_ticker", req.StockTicker); err != nil {
		return req, err
	}
	if err := requireText("perp_coin", req.PerpCoin); err != nil {
		return req, err
	}
	if !(req.NotionalUSD > 0) || !series.IsFinite(req.NotionalUSD) {
		return req, series.Invalid("notional_usd", "must be a positive finite amount", req.NotionalUSD)
	}
	explicit := !req.Start.IsZero() && !req.End.IsZero()
	if !explicit && req.Hours <= 0 {
		return req, series.Invalid("hours", "must be > 0", float64(req.Hours))
	}
	if explicit && !req.End.After(req.Start) {
		return req, series.Invalid("end", "must be after start", 0)
	}
	return req, nil
}

// RunBacktest fetches the three series concurrently, aligns them, and runs the engine.
func (a *App) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestReport, error) {
	report, err := a.runBacktest(ctx, req)
	if err != nil {
		a.metrics.BacktestFailed.Inc()
		a.log.Warn("backtest failed",
			zap.String("stock", req.StockTicker),
			zap.String("perp", req.PerpCoin),
			zap.Error(err),
		)
		return nil, err
	}
	a.metrics.BacktestRuns.Inc()
	return report, nil
}

func (a *App) runBacktest(ctx context.Context, req BacktestRequest) (*BacktestReport, error) {
	req, err := a.resolveBacktest(req)
	if err != nil {
		return nil, err
	}
	opts := align.Options{GapThreshold: req.GapThreshold}
	var start, end time.Time
	if !req.Start.IsZero() && !req.End.IsZero() {
		start, end = req.Start.UTC(), req.End.UTC()
		// Bars are keyed by open time and end is exclusive, so the last row opens before end.
		opts.Start, opts.End = series.HourOf(start), series.HourOf(end.Add(-time.Nanosecond))
	} else {
		start, end = a.window(req.Hours, req.End)
	}
	runID := uuid.New()
	log := a.log.With(
		zap.String("run_id", runID.String()),
		zap.String("stock", req.StockTicker),
		zap.String("perp", req.PerpCoin),
	)
	log.Info("backtest started",
		zap.Time("start", start),
		zap.Time("end", end),
		zap.Float64("notional_usd", req.NotionalUSD),
	)

	var (
		equityBars []series.PriceBar
		perpBars   []series.PriceBar
		records    []series.FundingRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Reach back over a weekend so the first perp hour has a prior equity close.
		bars, err := a.sources.Equity.Bars(gctx, req.StockTicker, start.Add(-72*time.Hour), end)
		if err != nil {
			return fmt.Errorf("fetch equity %s: %w", req.StockTicker, err)
		}
		equityBars = bars
		return nil
	})
	g.Go(func() error {
		bars, err := a.sources.Candles.Candles(gctx, req.PerpCoin, "1h", start, end)
		if err != nil {
			return fmt.Errorf("fetch perp candles %s: %w", req.PerpCoin, err)
		}
		perpBars = bars
		return nil
	})
	g.Go(func() error {
		recs, err := a.sources.Funding.FundingHistory(gctx, req.PerpCoin, start, end)
		if err != nil {
			return fmt.Errorf("fetch funding %s: %w", req.PerpCoin, err)
		}
		records = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug("series fetched",
		zap.Int("equity_bars", len(equityBars)),
		zap.Int("perp_bars", len(perpBars)),
		zap.Int("funding_records", len(records)),
	)

	timeline, err := align.Align(equityBars, perpBars, records, opts)
	if err != nil {
		return nil, err
	}
	for _, warn := range timeline.Warnings {
		a.metrics.DataQualityWarnings.Inc()
		log.Warn("data quality warning",
			zap.String("reason", warn.Reason),
			zap.Int("hours", warn.Hours),
			zap.Time("from", warn.Start),
			zap.Time("to", warn.End),
		)
	}
	result, err := backtest.Run(timeline, req.NotionalUSD)
	if err != nil {
		return nil, err
	}
	s := result.Summary
	log.Info("backtest finished",
		zap.Int("hours", s.NumberOfHours),
		zap.String("price_pnl", s.TotalPricePnL.StringFixed(2)),
		zap.String("funding_pnl", s.TotalFundingPnL.StringFixed(2)),
		zap.String("total_pnl", s.TotalPnL.StringFixed(2)),
		zap.Int("warnings", len(result.Warnings)),
	)

	report := &BacktestReport{
		RunID:        runID,
		StockTicker:  req.StockTicker,
		PerpCoin:     req.PerpCoin,
		FetchedStart: start,
		FetchedEnd:   end,
		Result:       result,
		Costs:        backtest.CostModel{FeeBps: req.FeeBps, SlippageBps: req.SlippageBps},
		NetPnL:       s.TotalPnL,
	}
	if report.Costs.Enabled() {
		report.EstimatedCosts, report.NetPnL = backtest.NetOfCosts(s, report.Costs)
	}
	if a.sink != nil {
		run := timescale.Run{
			ID:           runID,
			CreatedAt:    a.now(),
			EquityTicker: req.StockTicker,
			PerpCoin:     req.PerpCoin,
			Result:       result,
		}
		if err := a.sink.WriteRun(ctx, run); err != nil {
			log.Warn("timescale write failed", zap.Error(err))
		}
	}
	a.notify(ctx, alerts.BacktestMessage(req.StockTicker, req.PerpCoin, result))
	return report, nil
}
