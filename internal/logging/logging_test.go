package logging

import (
	"testing"

	"hl-basis-backtest/internal/config"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	if parseLevel("debug") != zapcore.DebugLevel {
		t.Fatalf("expected debug level")
	}
	if parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("expected info fallback")
	}
}

func TestNewHonoursLevel(t *testing.T) {
	log := New(config.LoggingConfig{Level: "warn", Format: "console"})
	if log.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be disabled at warn level")
	}
	if !log.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("expected warn to be enabled")
	}
}
