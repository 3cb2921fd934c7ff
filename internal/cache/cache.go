package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hl-basis-backtest/internal/metrics"
	"hl-basis-backtest/internal/series"
	"hl-basis-backtest/internal/state"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const keyPrefix = "history:"

// Key identifies one fetched range of a series.
type Key struct {
	Source   string
	Symbol   string
	Interval string
	Start    time.Time
	End      time.Time
}

func (k Key) String() string {
	return fmt.Sprintf("%s%s:%s:%s:%d:%d",
		keyPrefix,
		k.Source,
		strings.ToUpper(k.Symbol),
		k.Interval,
		k.Start.Unix(),
		k.End.Unix(),
	)
}

type entry struct {
	FetchedAt int64         `msgpack:"fetched_at"`
	Funding   []fundingWire `msgpack:"funding,omitempty"`
	Bars      []barWire     `msgpack:"bars,omitempty"`
}

type fundingWire struct {
	Coin    string  `msgpack:"c"`
	TimeMS  int64   `msgpack:"t"`
	Rate    float64 `msgpack:"r"`
	Premium float64 `msgpack:"p"`
}

type barWire struct {
	TimeMS int64   `msgpack:"t"`
	Open   float64 `msgpack:"o"`
	Close  float64 `msgpack:"c"`
}

// Cache stores fetched history in a state.Store. Entries older than ttl are refetched;
// ttl <= 0 keeps entries until they are invalidated.
type Cache struct {
	store   state.Store
	ttl     time.Duration
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(store state.Store, ttl time.Duration, m *metrics.Metrics, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		metrics: metrics.OrNoop(m),
		log:     log,
		now:     time.Now,
	}
}

func (c *Cache) Funding(ctx context.Context, key Key, fetch func(context.Context) ([]series.FundingRecord, error)) ([]series.FundingRecord, error) {
	if e, ok := c.lookup(ctx, key); ok {
		return fundingFromWire(e.Funding), nil
	}
	records, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, entry{Funding: fundingToWire(records)})
	return records, nil
}

func (c *Cache) Bars(ctx context.Context, key Key, fetch func(context.Context) ([]series.PriceBar, error)) ([]series.PriceBar, error) {
	if e, ok := c.lookup(ctx, key); ok {
		return barsFromWire(e.Bars), nil
	}
	bars, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.save(ctx, key, entry{Bars: barsToWire(bars)})
	return bars, nil
}

func (c *Cache) Invalidate(ctx context.Context, key Key) error {
	return c.store.Delete(ctx, key.String())
}

// Purge drops every cached history entry.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	return c.store.DeletePrefix(ctx, keyPrefix)
}

func (c *Cache) lookup(ctx context.Context, key Key) (entry, bool) {
	raw, ok, err := c.store.Get(ctx, key.String())
	if err != nil {
		c.log.Warn("cache read failed", zap.String("key", key.String()), zap.Error(err))
		c.metrics.CacheMisses.Inc()
		return entry{}, false
	}
	if !ok {
		c.metrics.CacheMisses.Inc()
		return entry{}, false
	}
	var e entry
	if err := msgpack.Unmarshal(raw, &e); err != nil {
		c.log.Warn("cache entry corrupt", zap.String("key", key.String()), zap.Error(err))
		c.metrics.CacheMisses.Inc()
		return entry{}, false
	}
	if c.ttl > 0 && c.now().Sub(time.UnixMilli(e.FetchedAt)) > c.ttl {
		c.metrics.CacheMisses.Inc()
		return entry{}, false
	}
	c.metrics.CacheHits.Inc()
	return e, true
}

func (c *Cache) save(ctx context.Context, key Key, e entry) {
	e.FetchedAt = c.now().UnixMilli()
	raw, err := msgpack.Marshal(&e)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key.String()), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key.String(), raw); err != nil {
		c.log.Warn("cache write failed", zap.String("key", key.String()), zap.Error(err))
	}
}

func fundingToWire(in []series.FundingRecord) []fundingWire {
	out := make([]fundingWire, len(in))
	for i, rec := range in {
		out[i] = fundingWire{Coin: rec.Coin, TimeMS: rec.Time.UnixMilli(), Rate: rec.Rate, Premium: rec.Premium}
	}
	return out
}

func fundingFromWire(in []fundingWire) []series.FundingRecord {
	out := make([]series.FundingRecord, len(in))
	for i, w := range in {
		out[i] = series.FundingRecord{Coin: w.Coin, Time: time.UnixMilli(w.TimeMS).UTC(), Rate: w.Rate, Premium: w.Premium}
	}
	return out
}

func barsToWire(in []series.PriceBar) []barWire {
	out := make([]barWire, len(in))
	for i, bar := range in {
		out[i] = barWire{TimeMS: bar.Time.UnixMilli(), Open: bar.Open, Close: bar.Close}
	}
	return out
}

func barsFromWire(in []barWire) []series.PriceBar {
	out := make([]series.PriceBar, len(in))
	for i, w := range in {
		out[i] = series.PriceBar{Time: time.UnixMilli(w.TimeMS).UTC(), Open: w.Open, Close: w.Close}
	}
	return out
}
