package funding

import (
	"errors"
	"fmt"
	"time"

	"hl-basis-backtest/internal/series"
)

// HoursPerYear annualizes rates that are already quoted per hour.
const HoursPerYear = 8760

var ErrInsufficientData = errors.New("insufficient funding data")

type InsufficientDataError struct {
	Requested int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("trailing window of %d records requested but only %d available", e.Requested, e.Available)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

type RateRow struct {
	Coin          string    `json:"coin"`
	Time          time.Time `json:"time"`
	Rate          float64   `json:"rate"`
	RatePct       float64   `json:"rate_pct"`
	AnnualizedPct float64   `json:"annualized_pct"`
	Premium       float64   `json:"premium"`
}

type WindowAverage struct {
	Window        int       `json:"window"`
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	Rate          float64   `json:"rate"`
	AnnualizedPct float64   `json:"annualized_pct"`
}

func Annualize(hourlyRate float64) float64 {
	return hourlyRate * HoursPerYear
}

func AnnualizedPct(hourlyRate float64) float64 {
	return Annualize(hourlyRate) * 100
}

// Analyze returns one row per record, rates unchanged.
func Analyze(records []series.FundingRecord) ([]RateRow, error) {
	if err := series.ValidateFundingRecords("funding", records); err != nil {
		return nil, err
	}
	rows := make([]RateRow, len(records))
	for i, rec := range records {
		rows[i] = RateRow{
			Coin:          rec.Coin,
			Time:          rec.Time,
			Rate:          rec.Rate,
			RatePct:       rec.Rate * 100,
			AnnualizedPct: AnnualizedPct(rec.Rate),
			Premium:       rec.Premium,
		}
	}
	return rows, nil
}

// TrailingAverage averages the last window records. It never shrinks the window.
func TrailingAverage(records []series.FundingRecord, window int) (WindowAverage, error) {
	if window <= 0 {
		return WindowAverage{}, series.Invalid("window", fmt.Sprintf("%d must be > 0", window), float64(window))
	}
	if window > len(records) {
		return WindowAverage{}, &InsufficientDataError{Requested: window, Available: len(records)}
	}
	if err := series.ValidateFundingRecords("funding", records); err != nil {
		return WindowAverage{}, err
	}
	tail := records[len(records)-window:]
	var sum float64
	for _, rec := range tail {
		sum += rec.Rate
	}
	avg := sum / float64(window)
	return WindowAverage{
		Window:        window,
		From:          tail[0].Time,
		To:            tail[len(tail)-1].Time,
		Rate:          avg,
		AnnualizedPct: AnnualizedPct(avg),
	}, nil
}

// Average is the trailing average over every record.
func Average(records []series.FundingRecord) (WindowAverage, error) {
	if len(records) == 0 {
		return WindowAverage{}, &InsufficientDataError{Requested: 1, Available: 0}
	}
	return TrailingAverage(records, len(records))
}
