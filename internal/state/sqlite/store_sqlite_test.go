package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Set(ctx, "key", []byte{0x81, 0xa1, 0x61}); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, ok, err := store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || len(val) != 3 || val[0] != 0x81 {
		t.Fatalf("unexpected value: %v (ok=%v)", val, ok)
	}
	if err := store.Set(ctx, "key", []byte("second")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	val, _, _ = store.Get(ctx, "key")
	if string(val) != "second" {
		t.Fatalf("expected overwrite, got %q", val)
	}
	if err := store.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	_, ok, err = store.Get(ctx, "key")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be deleted")
	}
}

func TestStoreDeletePrefix(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	for _, key := range []string{"hl:funding:BTC", "hl:candles:BTC", "yahoo:SPY"} {
		if err := store.Set(ctx, key, []byte("x")); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	n, err := store.DeletePrefix(ctx, "hl:")
	if err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows deleted, got %d", n)
	}
	if _, ok, _ := store.Get(ctx, "yahoo:SPY"); !ok {
		t.Fatalf("expected yahoo key to survive")
	}
}

func TestStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	if err := store.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
}
