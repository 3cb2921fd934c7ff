package market

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"hl-basis-backtest/internal/series"
)

func parseFundingHistory(payload any) []series.FundingRecord {
	items, ok := unwrapList(payload, "fundingHistory")
	if !ok {
		return nil
	}
	out := make([]series.FundingRecord, 0, len(items))
	for _, item := range items {
		entry, ok := toMap(item)
		if !ok {
			continue
		}
		ts, ok := timeFromMap(entry, "time", "fundingTime", "timestamp")
		if !ok {
			continue
		}
		rate, ok := floatFromMap(entry, "fundingRate", "funding", "rate")
		if !ok {
			continue
		}
		premium, _ := floatFromMap(entry, "premium")
		out = append(out, series.FundingRecord{
			Coin:    stringFromMap(entry, "coin", "asset", "symbol"),
			Time:    ts,
			Rate:    rate,
			Premium: premium,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return dedupeFunding(out)
}

func parseCandles(payload any) []series.PriceBar {
	items, ok := unwrapList(payload, "candles")
	if !ok {
		return nil
	}
	out := make([]series.PriceBar, 0, len(items))
	for _, item := range items {
		entry, ok := toMap(item)
		if !ok {
			continue
		}
		ts, ok := timeFromMap(entry, "t", "start", "time")
		if !ok {
			continue
		}
		closePx, ok := floatFromMap(entry, "c", "close")
		if !ok || closePx <= 0 {
			continue
		}
		openPx, _ := floatFromMap(entry, "o", "open")
		out = append(out, series.PriceBar{Time: ts, Open: openPx, Close: closePx})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return dedupeBars(out)
}

func unwrapList(payload any, keys ...string) ([]any, bool) {
	if arr, ok := toSlice(payload); ok {
		return arr, true
	}
	m, ok := toMap(payload)
	if !ok {
		return nil, false
	}
	for _, key := range append(keys, "data") {
		if nested, ok := m[key]; ok {
			return unwrapList(nested, keys...)
		}
	}
	return nil, false
}

// dedupeFunding keeps the last record per timestamp; input must be sorted.
func dedupeFunding(in []series.FundingRecord) []series.FundingRecord {
	out := in[:0]
	for _, rec := range in {
		if n := len(out); n > 0 && out[n-1].Time.Equal(rec.Time) {
			out[n-1] = rec
			continue
		}
		out = append(out, rec)
	}
	return out
}

func dedupeBars(in []series.PriceBar) []series.PriceBar {
	out := in[:0]
	for _, bar := range in {
		if n := len(out); n > 0 && out[n-1].Time.Equal(bar.Time) {
			out[n-1] = bar
			continue
		}
		out = append(out, bar)
	}
	return out
}

func toMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toSlice(v any) ([]any, bool) {
	s, ok := v.([]any)
	return s, ok
}

func stringFromMap(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s := stringFromAny(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func stringFromAny(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func floatFromMap(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if f, ok := floatFromAny(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func floatFromAny(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func timeFromMap(m map[string]any, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if ts, ok := timeFromAny(v); ok {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

func timeFromAny(v any) (time.Time, bool) {
	f, ok := floatFromAny(v)
	if !ok {
		return time.Time{}, false
	}
	if f <= 0 {
		return time.Time{}, false
	}
	ts := int64(f)
	switch {
	case ts > 1e15:
		return time.Unix(0, ts).UTC(), true
	case ts > 1e12:
		return time.UnixMilli(ts).UTC(), true
	default:
		return time.Unix(ts, 0).UTC(), true
	}
}
