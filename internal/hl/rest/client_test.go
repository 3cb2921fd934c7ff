package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type infoRequest struct {
	Type string `json:"type"`
}

func TestInfoAnyPostsJSON(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/info" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			w.WriteHeader(http.StatusUnsupportedMediaType)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`[{"coin":"BTC"}]`))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, 0, zap.NewNop())
	payload, err := client.InfoAny(context.Background(), infoRequest{Type: "meta"})
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if got["type"] != "meta" {
		t.Fatalf("expected type meta, got %v", got)
	}
	arr, ok := payload.([]any)
	if !ok || len(arr) != 1 {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestInfoAnyReportsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte("bad coin"))
	}))
	defer srv.Close()

	client := New(srv.URL, 2*time.Second, 0, nil)
	_, err := client.InfoAny(context.Background(), infoRequest{Type: "meta"})
	if err == nil || !strings.Contains(err.Error(), "http 422: bad coin") {
		t.Fatalf("expected http error, got %v", err)
	}
}

func TestInfoAnyHonoursCancelledContext(t *testing.T) {
	client := New("http://127.0.0.1:1", time.Second, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.InfoAny(ctx, infoRequest{Type: "meta"}); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestInfoAnyRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, 0, nil)
	client.backoff = time.Millisecond
	payload, err := client.InfoAny(context.Background(), infoRequest{Type: "meta"})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
	if m, ok := payload.(map[string]any); !ok || m["ok"] != true {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestInfoAnyGivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(srv.URL, time.Second, 0, nil)
	client.backoff = time.Millisecond
	_, err := client.InfoAny(context.Background(), infoRequest{Type: "meta"})
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected wrapped 502, got %v", err)
	}
	if int(calls.Load()) != defaultAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultAttempts, calls.Load())
	}
}
