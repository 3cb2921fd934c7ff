package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hl-basis-backtest/internal/api"
	"hl-basis-backtest/internal/app"
	"hl-basis-backtest/internal/config"
	"hl-basis-backtest/internal/logging"
	"hl-basis-backtest/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "optional path to config file")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	prom := metrics.NewPrometheus()
	application, err := app.New(cfg, log, prom.Metrics)
	if err != nil {
		log.Error("failed to initialize app", zap.Error(err))
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("close app", zap.Error(err))
		}
	}()

	opts := api.Options{
		AllowedOrigins: cfg.API.AllowedOrigins,
		MetricsPath:    cfg.Metrics.Path,
	}
	if cfg.Metrics.EnabledValue() {
		opts.Metrics = prom.Handler()
	}
	if c := application.Cache(); c != nil {
		opts.Cache = c
	}
	server := api.New(application, opts, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.API.Address)
	})
	if cfg.Metrics.EnabledValue() && cfg.Metrics.Address != "" && cfg.Metrics.Address != cfg.API.Address {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, prom.Handler(), log)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server terminated", zap.Error(err))
		return 1
	}
	return 0
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig, handler http.Handler, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, handler)
	srv := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics listening", zap.String("address", cfg.Address), zap.String("path", cfg.Path))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
