package state

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("state store closed")

// Store is a byte-valued key/value store used for cached market history.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix and reports how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	Close() error
}
