package series

import "time"

type FundingRecord struct {
	Coin    string
	Time    time.Time
	Rate    float64
	Premium float64
}

type PriceBar struct {
	Time  time.Time
	Open  float64
	Close float64
}

// HourOf truncates t to the start of its UTC hour.
func HourOf(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}
