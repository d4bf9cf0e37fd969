package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

type Mode string

const (
	// ModeVersioned bumps each dependent scope's version and drops the
	// entity's detail key. Orphaned list keys expire through their TTL.
	ModeVersioned Mode = "versioned"
	// ModePattern scans and deletes every list, detail and search key. It
	// bumps the scope versions too, so fills guarded by a scope see the write.
	ModePattern Mode = "pattern"
)

func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeVersioned:
		return ModeVersioned, nil
	case ModePattern:
		return ModePattern, nil
	default:
		return "", fmt.Errorf("unknown cache invalidation mode %q", raw)
	}
}

type InvalidatorConfig struct {
	Mode Mode
	// DetailKind is the entity segment of detail keys, e.g. "post".
	DetailKind string
	// Scopes lists the list scopes that depend on the entity set.
	Scopes []string
}

// Invalidator purges cache entries made stale by a write. It never fails the
// write: errors are logged and dropped.
type Invalidator struct {
	store  Store
	keys   Keys
	cfg    InvalidatorConfig
	logger *slog.Logger
}

func NewInvalidator(store Store, keys Keys, cfg InvalidatorConfig, logger *slog.Logger) *Invalidator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeVersioned
	}
	return &Invalidator{store: store, keys: keys, cfg: cfg, logger: logger}
}

func (i *Invalidator) Mode() Mode { return i.cfg.Mode }

func (i *Invalidator) Invalidate(ctx context.Context, entityID string) {
	var err error
	switch i.cfg.Mode {
	case ModePattern:
		err = i.bumpScopes(ctx)
		if _, perr := i.Purge(ctx); err == nil {
			err = perr
		}
	default:
		err = i.bumpVersions(ctx, entityID)
	}
	if err != nil {
		i.logger.WarnContext(ctx, "cache invalidation failed",
			"module", "cache",
			"layer", "invalidator",
			"operation", "invalidate",
			"outcome", "failure",
			"mode", string(i.cfg.Mode),
			"entity_id", entityID,
			"error", err.Error(),
		)
	}
}

// BumpScope orphans every cached page of one scope.
func (i *Invalidator) BumpScope(ctx context.Context, scope string) (int64, error) {
	return i.store.Incr(ctx, i.keys.Version(scope))
}

func (i *Invalidator) bumpScopes(ctx context.Context) error {
	var firstErr error
	for _, scope := range i.cfg.Scopes {
		if _, err := i.BumpScope(ctx, scope); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// bumpVersions bumps before it deletes the detail key; guarded fills rely on
// that order.
func (i *Invalidator) bumpVersions(ctx context.Context, entityID string) error {
	firstErr := i.bumpScopes(ctx)
	if i.cfg.DetailKind != "" && entityID != "" {
		if err := i.store.Delete(ctx, i.keys.Detail(i.cfg.DetailKind, entityID)); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Purge scans and deletes every key of the configured scopes and detail kind,
// whatever the mode. It returns the number of keys removed.
func (i *Invalidator) Purge(ctx context.Context) (int, error) {
	patterns := make([]string, 0, len(i.cfg.Scopes)+1)
	for _, scope := range i.cfg.Scopes {
		patterns = append(patterns, i.keys.ScopePattern(scope))
	}
	if i.cfg.DetailKind != "" {
		patterns = append(patterns, i.keys.DetailPattern(i.cfg.DetailKind))
	}
	var (
		removed  int
		firstErr error
	)
	for _, pattern := range patterns {
		n, err := i.store.DeletePattern(ctx, pattern)
		removed += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return removed, firstErr
}
