package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"hl-basis-backtest/internal/app"
	"hl-basis-backtest/internal/backtest"
	"hl-basis-backtest/internal/funding"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type backtestBody struct {
	StockTicker  string    `json:"stock_ticker"`
	PerpCoin     string    `json:"perp_coin"`
	NotionalUSD  float64   `json:"notional_usd"`
	Hours        int       `json:"hours"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	GapThreshold string    `json:"gap_threshold"`
	FeeBps       float64   `json:"fee_bps"`
	SlippageBps  float64   `json:"slippage_bps"`
	IncludeRows  *bool     `json:"include_rows"`
}

type backtestResponse struct {
	RunID       string            `json:"run_id"`
	StockTicker string            `json:"stock_ticker"`
	PerpCoin    string            `json:"perp_coin"`
	Summary     backtest.Summary  `json:"summary"`
	Costs       *costsResponse    `json:"costs,omitempty"`
	Warnings    []string          `json:"warnings"`
	Rows        []backtest.PnLRow `json:"rows,omitempty"`
}

type costsResponse struct {
	backtest.CostModel
	EstimatedCosts decimal.Decimal `json:"estimated_costs"`
	NetPnL         decimal.Decimal `json:"net_pnl"`
}

type fundingResponse struct {
	Coin     string                  `json:"coin"`
	Start    time.Time               `json:"start"`
	End      time.Time               `json:"end"`
	Records  int                     `json:"records"`
	Averages []funding.WindowAverage `json:"averages"`
	Rows     []funding.RateRow       `json:"rows"`
}

func (s *Server) runBacktest(c *gin.Context) {
	var body backtestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	req := app.BacktestRequest{
		StockTicker: body.StockTicker,
		PerpCoin:    body.PerpCoin,
		NotionalUSD: body.NotionalUSD,
		Hours:       body.Hours,
		Start:       body.Start,
		End:         body.End,
		FeeBps:      body.FeeBps,
		SlippageBps: body.SlippageBps,
	}
	if body.GapThreshold != "" {
		d, err := time.ParseDuration(body.GapThreshold)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "gap_threshold: "+err.Error(), nil)
			return
		}
		req.GapThreshold = d
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()
	report, err := s.svc.RunBacktest(ctx, req)
	if err != nil {
		writeRunError(c, err)
		return
	}
	res := report.Result
	resp := backtestResponse{
		RunID:       report.RunID.String(),
		StockTicker: report.StockTicker,
		PerpCoin:    report.PerpCoin,
		Summary:     res.Summary,
		Warnings:    make([]string, 0, len(res.Warnings)),
	}
	if report.Costs.Enabled() {
		resp.Costs = &costsResponse{
			CostModel:      report.Costs,
			EstimatedCosts: report.EstimatedCosts,
			NetPnL:         report.NetPnL,
		}
	}
	for _, warn := range res.Warnings {
		resp.Warnings = append(resp.Warnings, warn.String())
	}
	if body.IncludeRows == nil || *body.IncludeRows {
		resp.Rows = res.Rows
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) runFunding(c *gin.Context) {
	req := app.FundingRequest{Coin: c.Param("coin")}
	var err error
	if req.Hours, err = intQuery(c, "hours"); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if req.Window, err = intQuery(c, "window"); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
	defer cancel()
	report, err := s.svc.RunFunding(ctx, req)
	if err != nil {
		writeRunError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundingResponse{
		Coin:     report.Coin,
		Start:    report.Start,
		End:      report.End,
		Records:  len(report.Rows),
		Averages: report.Averages,
		Rows:     report.Rows,
	})
}

func (s *Server) purgeCache(c *gin.Context) {
	if s.opts.Cache == nil {
		writeError(c, http.StatusNotFound, "CACHE_DISABLED", "cache is disabled", nil)
		return
	}
	n, err := s.opts.Cache.Purge(c.Request.Context())
	if err != nil {
		s.log.Warn("cache purge failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}

func intQuery(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &queryError{name: name, value: raw}
	}
	return v, nil
}

type queryError struct {
	name  string
	value string
}

func (e *queryError) Error() string {
	return e.name + ": invalid integer " + strconv.Quote(e.value)
}
