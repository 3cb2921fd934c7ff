package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

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
	coin := flags.String("coin", "", "Hyperliquid coin, e.g. BTC or xyz:COPPER (default from config)")
	hours := flags.Int("hours", 0, "lookback in hours (default from config)")
	window := flags.Int("window", -1, "trailing average window in records, 0 to disable (default from config)")
	outDir := flags.String("out", "", "directory for the CSV export (default from config)")
	noCSV := flags.Bool("no-csv", false, "skip the CSV export")
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

	if *window < 0 {
		*window = cfg.Backtest.FundingWindow
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

	rep, err := application.RunFunding(ctx, app.FundingRequest{Coin: *coin, Hours: *hours, Window: *window})
	if err != nil {
		return fail(stderr, log, "funding report failed", err)
	}
	if err := report.PrintFundingTable(stdout, rep.Coin, rep.Rows, rep.Averages); err != nil {
		return fail(stderr, log, "print table", err)
	}
	if !*noCSV {
		dir := *outDir
		if dir == "" {
			dir = cfg.Backtest.OutputDir
		}
		path, err := report.SaveFundingCSV(dir, rep.Coin, rep.Rows, rep.Averages, time.Now())
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
