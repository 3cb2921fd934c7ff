package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	BacktestRuns        Counter
	BacktestFailed      Counter
	DataQualityWarnings Counter
	FundingReports      Counter
	CacheHits           Counter
	CacheMisses         Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		BacktestRuns:        n,
		BacktestFailed:      n,
		DataQualityWarnings: n,
		FundingReports:      n,
		CacheHits:           n,
		CacheMisses:         n,
	}
}

// OrNoop lets callers accept a nil *Metrics.
func OrNoop(m *Metrics) *Metrics {
	if m == nil {
		return NewNoop()
	}
	return m
}
