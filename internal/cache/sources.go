package cache

import (
	"context"
	"time"

	"hl-basis-backtest/internal/series"
)

type FundingSource interface {
	FundingHistory(ctx context.Context, coin string, start, end time.Time) ([]series.FundingRecord, error)
}

type CandleSource interface {
	Candles(ctx context.Context, coin, interval string, start, end time.Time) ([]series.PriceBar, error)
}

type EquitySource interface {
	Bars(ctx context.Context, ticker string, start, end time.Time) ([]series.PriceBar, error)
}

// CachedFunding wraps a FundingSource with the cache.
type CachedFunding struct {
	Source FundingSource
	Cache  *Cache
}

func (c CachedFunding) FundingHistory(ctx context.Context, coin string, start, end time.Time) ([]series.FundingRecord, error) {
	key := Key{Source: "hl-funding", Symbol: coin, Interval: "1h", Start: start, End: end}
	return c.Cache.Funding(ctx, key, func(ctx context.Context) ([]series.FundingRecord, error) {
		return c.Source.FundingHistory(ctx, coin, start, end)
	})
}

type CachedCandles struct {
	Source CandleSource
	Cache  *Cache
}

func (c CachedCandles) Candles(ctx context.Context, coin, interval string, start, end time.Time) ([]series.PriceBar, error) {
	key := Key{Source: "hl-candles", Symbol: coin, Interval: interval, Start: start, End: end}
	return c.Cache.Bars(ctx, key, func(ctx context.Context) ([]series.PriceBar, error) {
		return c.Source.Candles(ctx, coin, interval, start, end)
	})
}

type CachedEquity struct {
	Source EquitySource
	Cache  *Cache
}

func (c CachedEquity) Bars(ctx context.Context, ticker string, start, end time.Time) ([]series.PriceBar, error) {
	key := Key{Source: "yahoo", Symbol: ticker, Interval: "1h", Start: start, End: end}
	return c.Cache.Bars(ctx, key, func(ctx context.Context) ([]series.PriceBar, error) {
		return c.Source.Bars(ctx, ticker, start, end)
	})
}
