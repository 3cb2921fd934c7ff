package funding

import (
	"errors"
	"math"
	"testing"
	"time"

	"hl-basis-backtest/internal/series"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func records(rates ...float64) []series.FundingRecord {
	out := make([]series.FundingRecord, len(rates))
	for i, r := range rates {
		out[i] = series.FundingRecord{Coin: "BTC", Time: t0.Add(time.Duration(i) * time.Hour), Rate: r, Premium: r / 2}
	}
	return out
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalyzeAnnualizes(t *testing.T) {
	rows, err := Analyze(records(0.0000125, -0.00001))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Rate != 0.0000125 {
		t.Fatalf("expected raw rate unchanged, got %g", rows[0].Rate)
	}
	if !closeEnough(rows[0].AnnualizedPct, 10.95) {
		t.Fatalf("expected 10.95%% annualized, got %f", rows[0].AnnualizedPct)
	}
	if !closeEnough(rows[0].RatePct, 0.00125) {
		t.Fatalf("expected 0.00125%%, got %f", rows[0].RatePct)
	}
	if !closeEnough(rows[1].AnnualizedPct, -8.76) {
		t.Fatalf("expected -8.76%%, got %f", rows[1].AnnualizedPct)
	}
	if rows[0].Coin != "BTC" || rows[0].Premium != 0.00000625 {
		t.Fatalf("expected coin and premium carried, got %+v", rows[0])
	}
}

func TestTrailingAverage(t *testing.T) {
	avg, err := TrailingAverage(records(1, 2, 3, 4), 2)
	if err != nil {
		t.Fatalf("trailing average: %v", err)
	}
	if avg.Window != 2 || avg.Rate != 3.5 {
		t.Fatalf("unexpected average %+v", avg)
	}
	if !avg.From.Equal(t0.Add(2*time.Hour)) || !avg.To.Equal(t0.Add(3*time.Hour)) {
		t.Fatalf("unexpected span %s - %s", avg.From, avg.To)
	}
	if !closeEnough(avg.AnnualizedPct, 3.5*8760*100) {
		t.Fatalf("unexpected annualized %f", avg.AnnualizedPct)
	}
}

func TestTrailingAverageInsufficientData(t *testing.T) {
	_, err := TrailingAverage(records(1, 2), 3)
	var insufficient *InsufficientDataError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if insufficient.Requested != 3 || insufficient.Available != 2 {
		t.Fatalf("unexpected context %+v", insufficient)
	}
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected errors.Is ErrInsufficientData")
	}
}

func TestTrailingAverageRejectsNonPositiveWindow(t *testing.T) {
	if _, err := TrailingAverage(records(1), 0); !errors.Is(err, series.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAverageAllRecords(t *testing.T) {
	avg, err := Average(records(0.0001, 0.0003))
	if err != nil {
		t.Fatalf("average: %v", err)
	}
	if avg.Window != 2 || !closeEnough(avg.Rate, 0.0002) {
		t.Fatalf("unexpected average %+v", avg)
	}
	if _, err := Average(nil); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data for empty input, got %v", err)
	}
}

func TestAnalyzeRejectsUnorderedRecords(t *testing.T) {
	recs := records(1, 2)
	recs[1].Time = recs[0].Time
	if _, err := Analyze(recs); !errors.Is(err, series.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
