package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hl-basis-backtest/internal/align"
	"hl-basis-backtest/internal/app"
	"hl-basis-backtest/internal/config"
	"hl-basis-backtest/internal/logging"
	"hl-basis-backtest/internal/report"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	flags.SetOutput(stderr)
	configPath := flags.String("config", "", "optional path to config file")
	stock := flags.String("stock", "", "equity ticker to hold long (default from config)")
	perp := flags.String("perp", "", "Hyperliquid perp to hold short, e.g. BTC or xyz:COPPER")
	notional := flags.Float64("notional", 0, "dollar exposure per leg")
	hours := flags.Int("hours", 0, "lookback in hours ending at the last full hour")
	startFlag := flags.String("start", "", "explicit range start (RFC3339), requires -end")
	endFlag := flags.String("end", "", "explicit range end (RFC3339), requires -start")
	feeBps := flags.Float64("fee-bps", 0, "taker fee per fill in basis points (default from config)")
	slippageBps := flags.Float64("slippage-bps", 0, "slippage per fill in basis points (default from config)")
	gap := flags.Duration("gap", 0, "funding gap warning threshold (default from config)")
	outDir := flags.String("out", "", "directory for the CSV export (default from config)")
	noCSV := flags.Bool("no-csv", false, "skip the CSV export")
	quiet := flags.Bool("quiet", false, "skip the console table")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(stderr, "failed to load .env: %v\n", err)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	req := app.BacktestRequest{
		StockTicker:  *stock,
		PerpCoin:     *perp,
		NotionalUSD:  *notional,
		Hours:        *hours,
		GapThreshold: *gap,
		FeeBps:       *feeBps,
		SlippageBps:  *slippageBps,
	}
	if *startFlag != "" || *endFlag != "" {
		if req.Start, err = time.Parse(time.RFC3339, *startFlag); err != nil {
			return fail(stderr, log, "invalid -start", err)
		}
		if req.End, err = time.Parse(time.RFC3339, *endFlag); err != nil {
			return fail(stderr, log, "invalid -end", err)
		}
	}

	application, err := app.New(cfg, log, nil)
	if err != nil {
		return fail(stderr, log, "failed to initialize app", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("close app", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := application.RunBacktest(ctx, req)
	if err != nil {
		var overlap *align.EmptyOverlapError
		if errors.As(err, &overlap) {
			fmt.Fprintln(stderr, "no overlapping data: equities trade only during exchange hours while the perp trades 24/7")
		}
		return fail(stderr, log, "backtest failed", err)
	}
	pair := report.Pair{EquityTicker: result.StockTicker, PerpCoin: result.PerpCoin}
	if !*quiet {
		if err := report.PrintPnLTable(stdout, pair, result.Result); err != nil {
			return fail(stderr, log, "print table", err)
		}
		report.PrintCosts(stdout, result.Costs, result.EstimatedCosts, result.NetPnL)
	}
	if !*noCSV {
		dir := *outDir
		if dir == "" {
			dir = cfg.Backtest.OutputDir
		}
		path, err := report.SavePnLCSV(dir, pair, result.Result, time.Now())
		if err != nil {
			return fail(stderr, log, "csv export failed", err)
		}
		fmt.Fprintf(stdout, "Results saved to: %s\n", path)
	}
	return 0
}

func fail(stderr io.Writer, log *zap.Logger, msg string, err error) int {
	log.Error(msg, zap.Error(err))
	fmt.Fprintf(stderr, "%s: %v\n", msg, err)
	return 1
}
