package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrMiss = errors.New("cache miss")
	// ErrUnavailable wraps every store failure. Callers treat it as a miss.
	ErrUnavailable = errors.New("cache unavailable")
)

// Store is a byte-valued key/value store with per-key TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePattern removes every key matching a glob and reports how many.
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Incr(ctx context.Context, key string) (int64, error)
}
