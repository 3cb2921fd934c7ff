package align

import (
	"time"

	"hl-basis-backtest/internal/series"
)

const DefaultGapThreshold = 24 * time.Hour

const fundingGapReason = "funding records missing"

type Options struct {
	// Start and End bound the timeline when both are set; otherwise the perp series span is used.
	Start        time.Time
	End          time.Time
	GapThreshold time.Duration
}

type Row struct {
	Time            time.Time
	EquityPrice     float64
	EquityAvailable bool
	MarketOpen      bool
	PerpPrice       float64
	FundingRate     float64
	HasFunding      bool
}

type Timeline struct {
	Rows     []Row
	Warnings []DataQualityWarning
}

type hourPrice struct {
	hour  time.Time
	price float64
}

// Align joins the equity, perp and funding series onto one hourly index.
func Align(equity, perp []series.PriceBar, funding []series.FundingRecord, opts Options) (Timeline, error) {
	if err := series.ValidatePriceBars("equity", equity); err != nil {
		return Timeline{}, err
	}
	if err := series.ValidatePriceBars("perp", perp); err != nil {
		return Timeline{}, err
	}
	if err := series.ValidateFundingRecords("funding", funding); err != nil {
		return Timeline{}, err
	}
	equityHours := bucketBars(equity)
	perpHours := bucketBars(perp)
	if len(equityHours) == 0 || len(perpHours) == 0 {
		return Timeline{}, overlapError(equityHours, perpHours)
	}
	eqFirst, eqLast := equityHours[0].hour, equityHours[len(equityHours)-1].hour
	perpFirst, perpLast := perpHours[0].hour, perpHours[len(perpHours)-1].hour
	if latest(eqFirst, perpFirst).After(earliest(eqLast, perpLast)) {
		return Timeline{}, overlapError(equityHours, perpHours)
	}

	start, end := perpFirst, perpLast
	if !opts.Start.IsZero() && !opts.End.IsZero() {
		start, end = series.HourOf(opts.Start), series.HourOf(opts.End)
		if end.Before(start) {
			return Timeline{}, &series.ValidationError{Field: "range", Index: -1, Reason: "end precedes start"}
		}
	}
	threshold := opts.GapThreshold
	if threshold <= 0 {
		threshold = DefaultGapThreshold
	}

	perpByHour := make(map[time.Time]float64, len(perpHours))
	for _, p := range perpHours {
		perpByHour[p.hour] = p.price
	}
	fundingByHour := make(map[time.Time]float64, len(funding))
	for _, rec := range funding {
		fundingByHour[series.HourOf(rec.Time)] = rec.Rate
	}

	n := int(end.Sub(start)/time.Hour) + 1
	tl := Timeline{Rows: make([]Row, 0, n)}
	var (
		eqIdx     int
		lastClose float64
		haveClose bool
		available bool
		gapStart  time.Time
		gapHours  int
	)
	closeGap := func() {
		if gapHours > 0 && time.Duration(gapHours)*time.Hour > threshold {
			tl.Warnings = append(tl.Warnings, DataQualityWarning{
				Start:  gapStart,
				End:    gapStart.Add(time.Duration(gapHours-1) * time.Hour),
				Hours:  gapHours,
				Reason: fundingGapReason,
			})
		}
		gapHours = 0
	}
	for h := start; !h.After(end); h = h.Add(time.Hour) {
		perpPrice, ok := perpByHour[h]
		if !ok {
			return Timeline{}, &DataGapError{Time: h}
		}
		marketOpen := false
		for eqIdx < len(equityHours) && !equityHours[eqIdx].hour.After(h) {
			lastClose = equityHours[eqIdx].price
			haveClose = true
			marketOpen = equityHours[eqIdx].hour.Equal(h)
			eqIdx++
		}
		row := Row{
			Time:            h,
			EquityAvailable: haveClose,
			MarketOpen:      marketOpen,
			PerpPrice:       perpPrice,
		}
		if haveClose {
			row.EquityPrice = lastClose
			available = true
		}
		if rate, ok := fundingByHour[h]; ok {
			row.FundingRate = rate
			row.HasFunding = true
			closeGap()
		} else {
			if gapHours == 0 {
				gapStart = h
			}
			gapHours++
		}
		tl.Rows = append(tl.Rows, row)
	}
	closeGap()
	if !available {
		return Timeline{}, overlapError(equityHours, perpHours)
	}
	return tl, nil
}

// bucketBars truncates bars to hours; the later bar wins within an hour.
func bucketBars(bars []series.PriceBar) []hourPrice {
	out := make([]hourPrice, 0, len(bars))
	for _, bar := range bars {
		hour := series.HourOf(bar.Time)
		if n := len(out); n > 0 && out[n-1].hour.Equal(hour) {
			out[n-1].price = bar.Close
			continue
		}
		out = append(out, hourPrice{hour: hour, price: bar.Close})
	}
	return out
}

func overlapError(equity, perp []hourPrice) *EmptyOverlapError {
	err := &EmptyOverlapError{}
	if len(equity) > 0 {
		err.EquityStart, err.EquityEnd = equity[0].hour, equity[len(equity)-1].hour
	}
	if len(perp) > 0 {
		err.PerpStart, err.PerpEnd = perp[0].hour, perp[len(perp)-1].hour
	}
	return err
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
