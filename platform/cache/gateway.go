package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultListTTL   = 10 * time.Minute
	DefaultDetailTTL = 60 * time.Minute
	DefaultSearchTTL = 3 * time.Minute
)

// Gateway is the read-through front of a Store. It fails open: any store
// error is logged and handled as a miss.
type Gateway struct {
	store  Store
	keys   Keys
	logger *slog.Logger
	group  singleflight.Group
}

func NewGateway(store Store, keys Keys, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{store: store, keys: keys, logger: logger}
}

func (g *Gateway) Keys() Keys { return g.keys }

func (g *Gateway) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := g.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			g.unavailable(ctx, "get", key, err)
		}
		return nil, false
	}
	return value, true
}

func (g *Gateway) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := g.store.Set(ctx, key, value, ttl); err != nil {
		g.unavailable(ctx, "set", key, err)
	}
}

// ListKey returns the key for a list query under the scope's current
// version. ok is false when the version could not be read; the caller then
// skips the cache for this request.
func (g *Gateway) ListKey(ctx context.Context, scope string, params url.Values) (key string, ok bool) {
	version, ok := g.version(ctx, scope)
	if !ok {
		return "", false
	}
	return g.keys.List(scope, version, params), true
}

func (g *Gateway) version(ctx context.Context, scope string) (int64, bool) {
	raw, err := g.store.Get(ctx, g.keys.Version(scope))
	switch {
	case errors.Is(err, ErrMiss):
		return 0, true
	case err != nil:
		g.unavailable(ctx, "version", g.keys.Version(scope), err)
		return 0, false
	}
	version, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return version, true
}

type FillOption func(*fillOptions)

type fillOptions struct {
	guardScope string
}

// GuardScope ties a fill to scope's version. When a write bumps the scope
// while the value is loading, the value is returned but not kept, so a row
// read before the write cannot outlive it in the cache.
func GuardScope(scope string) FillOption {
	return func(o *fillOptions) { o.guardScope = scope }
}

// ReadThrough serves key from the cache or loads, stores and returns it.
// An empty key bypasses the cache.
func (g *Gateway) ReadThrough(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error), opts ...FillOption) ([]byte, error) {
	if key == "" {
		return load(ctx)
	}
	if value, ok := g.Get(ctx, key); ok {
		return value, nil
	}
	return g.fill(ctx, key, ttl, load, opts)
}

// FetchJSON is ReadThrough for JSON-serializable values. A cached value that
// no longer decodes is treated as a miss.
func FetchJSON[T any](ctx context.Context, g *Gateway, key string, ttl time.Duration, load func(context.Context) (T, error), opts ...FillOption) (T, error) {
	if key != "" {
		if raw, ok := g.Get(ctx, key); ok {
			var cached T
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			g.logger.WarnContext(ctx, "cached value did not decode",
				"module", "cache",
				"layer", "gateway",
				"operation", "decode",
				"key", key,
			)
		}
	}
	var zero T
	raw, err := g.fill(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	}, opts)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}

// fill loads and stores a missing key. Concurrent misses on one key share a
// single load.
func (g *Gateway) fill(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error), opts []FillOption) ([]byte, error) {
	if key == "" {
		return load(ctx)
	}
	var o fillOptions
	for _, opt := range opts {
		opt(&o)
	}
	v, err, _ := g.group.Do(key, func() (any, error) {
		var before int64
		if o.guardScope != "" {
			var ok bool
			if before, ok = g.version(ctx, o.guardScope); !ok {
				return load(ctx)
			}
		}
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		g.Set(ctx, key, value, ttl)
		// Checked after the Set: a bump that lands later is followed by the
		// writer's own delete of this key.
		if o.guardScope != "" {
			if after, ok := g.version(ctx, o.guardScope); !ok || after != before {
				g.drop(ctx, key)
			}
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (g *Gateway) drop(ctx context.Context, key string) {
	if err := g.store.Delete(ctx, key); err != nil {
		g.unavailable(ctx, "delete", key, err)
		return
	}
	g.logger.DebugContext(ctx, "dropped value loaded across a write",
		"module", "cache",
		"layer", "gateway",
		"operation", "fill",
		"outcome", "stale",
		"key", key,
	)
}

func (g *Gateway) unavailable(ctx context.Context, operation, key string, err error) {
	g.logger.WarnContext(ctx, "cache unavailable, falling back to primary store",
		"module", "cache",
		"layer", "gateway",
		"operation", operation,
		"outcome", "cache_unavailable",
		"key", key,
		"error", err.Error(),
	)
}
