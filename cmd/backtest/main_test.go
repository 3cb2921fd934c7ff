package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, infoURL, chartURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "cache.db")
	cfg := `log:
  level: error
rest:
  base_url: ` + infoURL + `
  timeout: 2s
equity:
  base_url: ` + chartURL + `
  timeout: 2s
cache:
  enabled: true
  sqlite_path: ` + dbPath + `
  ttl: 1h
backtest:
  output_dir: ` + filepath.Join(dir, "out") + `
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path, dbPath
}

func TestRunReturnsExitCodeOnFetchFailure(t *testing.T) {
	info := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown coin", http.StatusBadRequest)
	}))
	defer info.Close()
	chart := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer chart.Close()
	cfgPath, dbPath := writeConfig(t, info.URL, chart.URL)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfgPath, "-perp", "BTC", "-hours", "24", "-no-csv"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "backtest failed") {
		t.Fatalf("expected failure message, got %q", stderr.String())
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected cache store opened: %v", err)
	}
}

func TestRunRejectsBadTimestamp(t *testing.T) {
	cfgPath, _ := writeConfig(t, "http://127.0.0.1:0", "http://127.0.0.1:0")
	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", cfgPath, "-start", "yesterday", "-end", "today"}, &stdout, &stderr)
	if code != 1 || !strings.Contains(stderr.String(), "invalid -start") {
		t.Fatalf("expected invalid -start, got %d %q", code, stderr.String())
	}
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-bogus"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
