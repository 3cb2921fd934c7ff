package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	if cfg.REST.BaseURL != "https://api.hyperliquid.xyz" {
		t.Fatalf("unexpected rest base url %q", cfg.REST.BaseURL)
	}
	if cfg.Equity.Interval != "1h" {
		t.Fatalf("expected equity interval 1h, got %q", cfg.Equity.Interval)
	}
	if cfg.Backtest.GapThreshold != 24*time.Hour {
		t.Fatalf("expected gap threshold 24h, got %s", cfg.Backtest.GapThreshold)
	}
	if cfg.Backtest.FundingWindow != 24 {
		t.Fatalf("expected funding window 24, got %d", cfg.Backtest.FundingWindow)
	}
	if !cfg.Cache.EnabledValue() || cfg.Cache.TTL != time.Hour {
		t.Fatalf("expected cache enabled with 1h ttl, got %+v", cfg.Cache)
	}
	if !cfg.Metrics.EnabledValue() || cfg.Metrics.Path != "/metrics" {
		t.Fatalf("expected metrics defaults, got %+v", cfg.Metrics)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestCacheEnabledFalseRespected(t *testing.T) {
	enabled := false
	cfg := &Config{Cache: CacheConfig{Enabled: &enabled}}
	applyDefaults(cfg)
	if cfg.Cache.EnabledValue() {
		t.Fatalf("expected cache enabled=false to be preserved")
	}
}

func TestValidateRejectsNegativeNotional(t *testing.T) {
	cfg := &Config{Backtest: BacktestConfig{NotionalUSD: -1}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative notional")
	}
}

func TestValidateRejectsNegativeGapThreshold(t *testing.T) {
	cfg := &Config{Backtest: BacktestConfig{GapThreshold: -time.Hour}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for negative gap threshold")
	}
}

func TestValidateRejectsMetricsPathWithoutSlash(t *testing.T) {
	cfg := &Config{Metrics: MetricsConfig{Path: "metrics"}}
	applyDefaults(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for metrics path without leading slash")
	}
}

func TestValidateRequiresTimescaleDSN(t *testing.T) {
	t.Setenv("HL_TIMESCALE_DSN", "")
	cfg := &Config{Timescale: TimescaleConfig{Enabled: true}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing timescale dsn")
	}
}

func TestValidateRejectsTelegramEnabledWithoutConfig(t *testing.T) {
	t.Setenv("HL_TELEGRAM_TOKEN", "")
	t.Setenv("HL_TELEGRAM_CHAT_ID", "")
	cfg := &Config{Telegram: TelegramConfig{Enabled: true}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if err := validate(cfg); err == nil {
		t.Fatalf("expected error for missing telegram token/chat_id")
	}
}

func TestTelegramEnvOverridesConfig(t *testing.T) {
	t.Setenv("HL_TELEGRAM_TOKEN", "env-token")
	t.Setenv("HL_TELEGRAM_CHAT_ID", "123")
	cfg := &Config{Telegram: TelegramConfig{Enabled: true, Token: "config-token", ChatID: "999"}}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	if cfg.Telegram.Token != "env-token" || cfg.Telegram.ChatID != "123" {
		t.Fatalf("expected env overrides, got %+v", cfg.Telegram)
	}
	if err := validate(cfg); err != nil {
		t.Fatalf("expected valid config with env overrides, got %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("HL_TIMESCALE_DSN", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "" +
		"backtest:\n" +
		"  stock_ticker: QQQ\n" +
		"  perp_coin: xyz:qqq\n" +
		"  notional_usd: 5000\n" +
		"  gap_threshold: 12h\n" +
		"cache:\n" +
		"  enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backtest.StockTicker != "QQQ" || cfg.Backtest.PerpCoin != "xyz:qqq" || cfg.Backtest.NotionalUSD != 5000 {
		t.Fatalf("unexpected backtest config %+v", cfg.Backtest)
	}
	if cfg.Backtest.GapThreshold != 12*time.Hour {
		t.Fatalf("expected 12h gap threshold, got %s", cfg.Backtest.GapThreshold)
	}
	if cfg.Cache.EnabledValue() {
		t.Fatalf("expected cache disabled")
	}
}

func TestLoadRequiresPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadOrDefaultWithoutPath(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Backtest.StockTicker != "SPY" || cfg.Backtest.PerpCoin != "xyz:SPY" || cfg.Backtest.NotionalUSD != 10000 {
		t.Fatalf("unexpected backtest defaults %+v", cfg.Backtest)
	}
}
