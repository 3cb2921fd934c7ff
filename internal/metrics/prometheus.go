package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "hl_basis_backtest"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry       *prometheus.Registry
	backtestRuns   prometheus.Counter
	backtestFailed prometheus.Counter
	warnings       prometheus.Counter
	fundingReports prometheus.Counter
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	backtestRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of completed backtest runs.",
	})
	backtestFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "backtest_failed_total",
		Help:      "Total number of backtest runs that returned an error.",
	})
	warnings := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "data_quality_warnings_total",
		Help:      "Total number of funding gap warnings raised while aligning.",
	})
	fundingReports := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "funding_reports_total",
		Help:      "Total number of funding rate reports produced.",
	})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cache_hits_total",
		Help:      "Total number of history requests served from the local cache.",
	})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cache_misses_total",
		Help:      "Total number of history requests that went to the upstream API.",
	})

	registry.MustRegister(backtestRuns, backtestFailed, warnings, fundingReports, cacheHits, cacheMisses)

	m := &Metrics{
		BacktestRuns:        promCounter{backtestRuns},
		BacktestFailed:      promCounter{backtestFailed},
		DataQualityWarnings: promCounter{warnings},
		FundingReports:      promCounter{fundingReports},
		CacheHits:           promCounter{cacheHits},
		CacheMisses:         promCounter{cacheMisses},
	}

	return &Prometheus{
		Metrics:        m,
		registry:       registry,
		backtestRuns:   backtestRuns,
		backtestFailed: backtestFailed,
		warnings:       warnings,
		fundingReports: fundingReports,
		cacheHits:      cacheHits,
		cacheMisses:    cacheMisses,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
