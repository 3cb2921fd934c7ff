package market

import (
	"testing"
	"time"
)

func TestParseFundingHistoryMixedTypes(t *testing.T) {
	payload := []any{
		map[string]any{"coin": "BTC", "fundingRate": "0.0002", "premium": "0.0001", "time": float64(1700003600000)},
		map[string]any{"coin": "BTC", "fundingRate": 0.0001, "premium": 0.0, "time": "1700000000000"},
		map[string]any{"coin": "BTC", "fundingRate": "bad", "time": float64(1700007200000)},
		"junk",
	}
	out := parseFundingHistory(payload)
	if len(out) != 2 {
		t.Fatalf("expected 2 records, got %d", len(out))
	}
	if !out[0].Time.Equal(time.UnixMilli(1700000000000)) {
		t.Fatalf("expected sorted records, got first %v", out[0].Time)
	}
	if out[1].Rate != 0.0002 || out[1].Premium != 0.0001 {
		t.Fatalf("unexpected second record %+v", out[1])
	}
	if out[0].Coin != "BTC" {
		t.Fatalf("expected coin BTC, got %q", out[0].Coin)
	}
}

func TestParseFundingHistoryDuplicateKeepsLast(t *testing.T) {
	payload := map[string]any{"data": []any{
		map[string]any{"fundingRate": 0.1, "time": float64(1700000000000)},
		map[string]any{"fundingRate": 0.2, "time": float64(1700000000000)},
	}}
	out := parseFundingHistory(payload)
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Rate != 0.2 {
		t.Fatalf("expected later duplicate to win, got %f", out[0].Rate)
	}
}

func TestParseCandles(t *testing.T) {
	payload := []any{
		map[string]any{"t": float64(1700003600000), "T": float64(1700007199999), "o": "101", "c": "102.5"},
		map[string]any{"t": float64(1700000000000), "T": float64(1700003599999), "o": "100", "c": "101"},
		map[string]any{"t": float64(1700007200000), "c": "0"},
	}
	out := parseCandles(payload)
	if len(out) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(out))
	}
	if out[0].Close != 101 || out[1].Close != 102.5 {
		t.Fatalf("unexpected closes %f %f", out[0].Close, out[1].Close)
	}
	if out[1].Open != 101 {
		t.Fatalf("expected open 101, got %f", out[1].Open)
	}
}

func TestTimeFromAnyUnits(t *testing.T) {
	want := time.Unix(1700000000, 0).UTC()
	for _, v := range []any{1700000000, int64(1700000000000), "1700000000000000000"} {
		got, ok := timeFromAny(v)
		if !ok || !got.Equal(want) {
			t.Fatalf("timeFromAny(%v) = %v, %v", v, got, ok)
		}
	}
	if _, ok := timeFromAny("nope"); ok {
		t.Fatalf("expected invalid time")
	}
}

func TestFormatCoin(t *testing.T) {
	if got := FormatCoin("xyz:copper"); got != "xyz:COPPER" {
		t.Fatalf("expected xyz:COPPER, got %q", got)
	}
	if got := FormatCoin(" btc "); got != "BTC" {
		t.Fatalf("expected BTC, got %q", got)
	}
	if got := FileSafeCoin("xyz:spy"); got != "xyz_SPY" {
		t.Fatalf("expected xyz_SPY, got %q", got)
	}
}
