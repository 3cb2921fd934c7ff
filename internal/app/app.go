package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hl-basis-backtest/internal/alerts"
	"hl-basis-backtest/internal/cache"
	"hl-basis-backtest/internal/config"
	"hl-basis-backtest/internal/equity"
	"hl-basis-backtest/internal/hl/rest"
	"hl-basis-backtest/internal/market"
	"hl-basis-backtest/internal/metrics"
	"hl-basis-backtest/internal/series"
	"hl-basis-backtest/internal/state/sqlite"
	"hl-basis-backtest/internal/timescale"

	"go.uber.org/zap"
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

type Notifier interface {
	Send(ctx context.Context, message string) error
}

type Sink interface {
	WriteRun(ctx context.Context, run timescale.Run) error
	WriteFunding(ctx context.Context, coin string, records []series.FundingRecord) error
}

// Sources bundles the three upstream series.
type Sources struct {
	Funding FundingSource
	Candles CandleSource
	Equity  EquitySource
}

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	sources  Sources
	metrics  *metrics.Metrics
	notifier Notifier
	sink     Sink
	cache    *cache.Cache
	closers  []func() error
	now      func() time.Time
}

// New wires the live Hyperliquid and Yahoo clients, the optional cache, and the optional sinks.
func New(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	m = metrics.OrNoop(m)
	restClient := rest.New(cfg.REST.BaseURL, cfg.REST.Timeout, cfg.REST.RequestsPerSecond, log)
	history := market.NewHistory(restClient, log)
	yahoo := equity.New(cfg.Equity.BaseURL, cfg.Equity.Timeout, cfg.Equity.Interval, log)
	sources := Sources{Funding: history, Candles: history, Equity: yahoo}

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
	if cfg.Cache.EnabledValue() {
		store, err := sqlite.New(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open cache store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.cache = cache.New(store, cfg.Cache.TTL, m, log)
		sources = Sources{
			Funding: cache.CachedFunding{Source: history, Cache: a.cache},
			Candles: cache.CachedCandles{Source: history, Cache: a.cache},
			Equity:  cache.CachedEquity{Source: yahoo, Cache: a.cache},
		}
	}
	a.sources = sources

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		log.Warn("timescale disabled", zap.Error(err))
	} else if writer != nil {
		a.sink = writer
		a.closers = append(a.closers, writer.Close)
	}
	if cfg.Telegram.Enabled {
		a.notifier = alerts.NewTelegram(cfg.Telegram, log)
	}
	return a, nil
}

// NewWithSources builds an App over caller-supplied sources. Sinks stay disabled.
func NewWithSources(cfg *config.Config, log *zap.Logger, m *metrics.Metrics, sources Sources) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:     cfg,
		log:     log,
		sources: sources,
		metrics: metrics.OrNoop(m),
		now:     time.Now,
	}
}

func (a *App) SetNotifier(n Notifier) { a.notifier = n }

func (a *App) SetSink(s Sink) { a.sink = s }

func (a *App) SetClock(now func() time.Time) { a.now = now }

func (a *App) Config() *config.Config { return a.cfg }

// Cache is nil when caching is disabled.
func (a *App) Cache() *cache.Cache { return a.cache }

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) notify(ctx context.Context, message string) {
	if a.notifier == nil {
		return
	}
	if err := a.notifier.Send(ctx, message); err != nil {
		a.log.Warn("telegram send failed", zap.Error(err))
	}
}

func (a *App) window(hours int, end time.Time) (time.Time, time.Time) {
	if end.IsZero() {
		end = a.now().UTC().Truncate(time.Hour)
	}
	return end.Add(-time.Duration(hours) * time.Hour), end
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return series.Invalid(field, "is required", 0)
	}
	return nil
}
