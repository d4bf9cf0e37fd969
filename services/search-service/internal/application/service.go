package application

import (
	"log/slog"
	"time"

	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/services/search-service/internal/ports"
)

type Config struct {
	ServiceName   string
	SearchTTL     time.Duration
	DefaultLimit  int
	MaxLimit      int
	EventDedupTTL time.Duration
	TombstoneTTL  time.Duration
}

type Service struct {
	cfg         Config
	documents   ports.SearchRepository
	eventDedup  ports.EventDedupRepository
	cache       *cache.Gateway
	invalidator ports.CacheInvalidator
	logger      *slog.Logger
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Documents   ports.SearchRepository
	EventDedup  ports.EventDedupRepository
	Cache       *cache.Gateway
	Invalidator ports.CacheInvalidator
	Logger      *slog.Logger
	// Now overrides the clock; tests use it to expire tombstones.
	Now func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "search-service"
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = cache.DefaultSearchTTL
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
	}
	if cfg.TombstoneTTL <= 0 {
		cfg.TombstoneTTL = 7 * 24 * time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cfg:         cfg,
		documents:   deps.Documents,
		eventDedup:  deps.EventDedup,
		cache:       deps.Cache,
		invalidator: deps.Invalidator,
		logger:      logger,
		nowFn:       nowFn,
	}
}
