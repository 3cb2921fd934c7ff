package series

import (
	"fmt"
	"math"
	"time"
)

func ValidatePriceBars(field string, bars []PriceBar) error {
	var prev time.Time
	for i, bar := range bars {
		if bar.Time.IsZero() {
			return &ValidationError{Field: field + ".time", Index: i, Reason: "missing timestamp"}
		}
		if !IsFinite(bar.Close) {
			return &ValidationError{Field: field + ".close", Index: i, Time: bar.Time, Value: bar.Close, Reason: "not a finite number"}
		}
		if bar.Close <= 0 {
			return &ValidationError{Field: field + ".close", Index: i, Time: bar.Time, Value: bar.Close, Reason: fmt.Sprintf("price %g must be > 0", bar.Close)}
		}
		if i > 0 && !bar.Time.After(prev) {
			return &ValidationError{Field: field + ".time", Index: i, Time: bar.Time, Reason: "timestamps must be strictly increasing"}
		}
		prev = bar.Time
	}
	return nil
}

func ValidateFundingRecords(field string, records []FundingRecord) error {
	var prev time.Time
	for i, rec := range records {
		if rec.Time.IsZero() {
			return &ValidationError{Field: field + ".time", Index: i, Reason: "missing timestamp"}
		}
		if !IsFinite(rec.Rate) {
			return &ValidationError{Field: field + ".rate", Index: i, Time: rec.Time, Value: rec.Rate, Reason: "not a finite number"}
		}
		if i > 0 && !rec.Time.After(prev) {
			return &ValidationError{Field: field + ".time", Index: i, Time: rec.Time, Reason: "timestamps must be strictly increasing"}
		}
		prev = rec.Time
	}
	return nil
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
