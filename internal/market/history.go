package market

import (
	"context"
	"fmt"
	"time"

	"hl-basis-backtest/internal/series"

	"go.uber.org/zap"
)

const (
	fundingPageLimit = 500
	candlePageLimit  = 5000
	maxPages         = 1000
)

type InfoClient interface {
	InfoAny(ctx context.Context, req interface{}) (any, error)
}

// History fetches historical funding and candles from the Hyperliquid /info endpoint.
type History struct {
	rest InfoClient
	log  *zap.Logger
}

func NewHistory(restClient InfoClient, log *zap.Logger) *History {
	if log == nil {
		log = zap.NewNop()
	}
	return &History{rest: restClient, log: log}
}

type fundingHistoryRequest struct {
	Type      string `json:"type"`
	Coin      string `json:"coin"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime,omitempty"`
}

type candleSnapshotRequest struct {
	Type string       `json:"type"`
	Req  candleParams `json:"req"`
}

type candleParams struct {
	Coin      string `json:"coin"`
	Interval  string `json:"interval"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
}

// FundingHistory returns funding records for coin in [start, end], sorted by time.
func (h *History) FundingHistory(ctx context.Context, coin string, start, end time.Time) ([]series.FundingRecord, error) {
	if h == nil || h.rest == nil {
		return nil, fmt.Errorf("rest client is required")
	}
	coin = FormatCoin(coin)
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end must be after start")
	}
	var out []series.FundingRecord
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	for page := 0; page < maxPages; page++ {
		payload, err := h.rest.InfoAny(ctx, fundingHistoryRequest{
			Type:      "fundingHistory",
			Coin:      coin,
			StartTime: cursor,
			EndTime:   endMs,
		})
		if err != nil {
			return nil, fmt.Errorf("funding history %s: %w", coin, err)
		}
		records := parseFundingHistory(payload)
		out = append(out, records...)
		if len(records) < fundingPageLimit {
			break
		}
		next := records[len(records)-1].Time.UnixMilli() + 1
		if next <= cursor || next > endMs {
			break
		}
		cursor = next
	}
	out = clipFunding(out, start, end)
	h.log.Debug("funding history fetched",
		zap.String("coin", coin),
		zap.Int("records", len(out)),
		zap.Time("start", start),
		zap.Time("end", end),
	)
	return out, nil
}

// Candles returns perp bars for coin keyed by candle open time. end is exclusive:
// the candle opening at end is still forming and is dropped.
func (h *History) Candles(ctx context.Context, coin, interval string, start, end time.Time) ([]series.PriceBar, error) {
	if h == nil || h.rest == nil {
		return nil, fmt.Errorf("rest client is required")
	}
	coin = FormatCoin(coin)
	if coin == "" {
		return nil, fmt.Errorf("coin is required")
	}
	if interval == "" {
		interval = "1h"
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end must be after start")
	}
	var out []series.PriceBar
	cursor := start.UnixMilli()
	endMs := end.UnixMilli()
	for page := 0; page < maxPages; page++ {
		payload, err := h.rest.InfoAny(ctx, candleSnapshotRequest{
			Type: "candleSnapshot",
			Req: candleParams{
				Coin:      coin,
				Interval:  interval,
				StartTime: cursor,
				EndTime:   endMs,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("candles %s: %w", coin, err)
		}
		bars := parseCandles(payload)
		out = append(out, bars...)
		if len(bars) < candlePageLimit {
			break
		}
		next := bars[len(bars)-1].Time.UnixMilli() + 1
		if next <= cursor || next > endMs {
			break
		}
		cursor = next
	}
	out = clipBars(out, start, end)
	h.log.Debug("candles fetched",
		zap.String("coin", coin),
		zap.String("interval", interval),
		zap.Int("bars", len(out)),
	)
	return out, nil
}

func clipFunding(in []series.FundingRecord, start, end time.Time) []series.FundingRecord {
	out := make([]series.FundingRecord, 0, len(in))
	for _, rec := range in {
		if rec.Time.Before(start) || rec.Time.After(end) {
			continue
		}
		if n := len(out); n > 0 && !rec.Time.After(out[n-1].Time) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func clipBars(in []series.PriceBar, start, end time.Time) []series.PriceBar {
	out := make([]series.PriceBar, 0, len(in))
	for _, bar := range in {
		if bar.Time.Before(start.Truncate(time.Hour)) || !bar.Time.Before(end) {
			continue
		}
		if n := len(out); n > 0 && !bar.Time.After(out[n-1].Time) {
			continue
		}
		out = append(out, bar)
	}
	return out
}
