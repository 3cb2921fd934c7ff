package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	REST      RESTConfig      `yaml:"rest"`
	Equity    EquityConfig    `yaml:"equity"`
	Cache     CacheConfig     `yaml:"cache"`
	Backtest  BacktestConfig  `yaml:"backtest"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	API       APIConfig       `yaml:"api"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type RESTConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

type EquityConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
	Interval string        `yaml:"interval"`
}

type CacheConfig struct {
	Enabled    *bool         `yaml:"enabled"`
	SQLitePath string        `yaml:"sqlite_path"`
	TTL        time.Duration `yaml:"ttl"`
}

func (c CacheConfig) EnabledValue() bool {
	return c.Enabled != nil && *c.Enabled
}

type BacktestConfig struct {
	StockTicker   string        `yaml:"stock_ticker"`
	PerpCoin      string        `yaml:"perp_coin"`
	NotionalUSD   float64       `yaml:"notional_usd"`
	Hours         int           `yaml:"hours"`
	GapThreshold  time.Duration `yaml:"gap_threshold"`
	FundingWindow int           `yaml:"funding_window"`
	OutputDir     string        `yaml:"output_dir"`
	FeeBps        float64       `yaml:"fee_bps"`
	SlippageBps   float64       `yaml:"slippage_bps"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	return m.Enabled != nil && *m.Enabled
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type APIConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, validate(&cfg)
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, validate(cfg)
	}
	return Load(path)
}

// Default returns a validated-shape config for callers running without a file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.hyperliquid.xyz"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.REST.RequestsPerSecond == 0 {
		cfg.REST.RequestsPerSecond = 5
	}
	if cfg.Equity.BaseURL == "" {
		cfg.Equity.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.Equity.Timeout == 0 {
		cfg.Equity.Timeout = 10 * time.Second
	}
	if cfg.Equity.Interval == "" {
		cfg.Equity.Interval = "1h"
	}
	if cfg.Cache.Enabled == nil {
		enabled := true
		cfg.Cache.Enabled = &enabled
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = "data/hl-basis-backtest.db"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = time.Hour
	}
	if cfg.Backtest.StockTicker == "" {
		cfg.Backtest.StockTicker = "SPY"
	}
	if cfg.Backtest.PerpCoin == "" {
		cfg.Backtest.PerpCoin = "xyz:SPY"
	}
	if cfg.Backtest.NotionalUSD == 0 {
		cfg.Backtest.NotionalUSD = 10000
	}
	if cfg.Backtest.Hours == 0 {
		cfg.Backtest.Hours = 168
	}
	if cfg.Backtest.GapThreshold == 0 {
		cfg.Backtest.GapThreshold = 24 * time.Hour
	}
	if cfg.Backtest.FundingWindow == 0 {
		cfg.Backtest.FundingWindow = 24
	}
	if cfg.Backtest.OutputDir == "" {
		cfg.Backtest.OutputDir = "output"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Metrics.Enabled == nil {
		enabled := true
		cfg.Metrics.Enabled = &enabled
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = "127.0.0.1:9102"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.API.Address == "" {
		cfg.API.Address = "127.0.0.1:8080"
	}
	if len(cfg.API.AllowedOrigins) == 0 {
		cfg.API.AllowedOrigins = []string{"*"}
	}
}

func applyEnvOverrides(cfg *Config) {
	if token := strings.TrimSpace(os.Getenv("HL_TELEGRAM_TOKEN")); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := strings.TrimSpace(os.Getenv("HL_TELEGRAM_CHAT_ID")); chatID != "" {
		cfg.Telegram.ChatID = chatID
	}
	if dsn := strings.TrimSpace(os.Getenv("HL_TIMESCALE_DSN")); dsn != "" {
		cfg.Timescale.DSN = dsn
	}
}

func validate(cfg *Config) error {
	if cfg.REST.Timeout < 0 || cfg.Equity.Timeout < 0 {
		return errors.New("rest.timeout and equity.timeout must be >= 0")
	}
	if cfg.REST.RequestsPerSecond < 0 {
		return errors.New("rest.requests_per_second must be >= 0")
	}
	if cfg.Cache.TTL < 0 {
		return errors.New("cache.ttl must be >= 0")
	}
	if cfg.Backtest.NotionalUSD < 0 {
		return errors.New("backtest.notional_usd must be >= 0")
	}
	if cfg.Backtest.Hours < 0 {
		return errors.New("backtest.hours must be >= 0")
	}
	if cfg.Backtest.GapThreshold < 0 {
		return errors.New("backtest.gap_threshold must be >= 0")
	}
	if cfg.Backtest.FeeBps < 0 || cfg.Backtest.SlippageBps < 0 {
		return errors.New("backtest.fee_bps and backtest.slippage_bps must be >= 0")
	}
	if cfg.Backtest.FundingWindow < 0 {
		return errors.New("backtest.funding_window must be >= 0")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Telegram.Enabled && (strings.TrimSpace(cfg.Telegram.Token) == "" || strings.TrimSpace(cfg.Telegram.ChatID) == "") {
		return errors.New("telegram.token and telegram.chat_id are required when telegram is enabled")
	}
	return nil
}
