package application

import (
	"log/slog"
	"time"

	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/services/post-service/internal/ports"
)

const (
	DeliveryOutbox = "outbox"
	DeliveryDirect = "direct"
)

type Config struct {
	ServiceName string
	// Delivery selects how events leave the service: staged in the outbox
	// with the write, or published straight after the commit.
	Delivery     string
	ListTTL      time.Duration
	DetailTTL    time.Duration
	DefaultLimit int
	MaxLimit     int
}

type Service struct {
	cfg         Config
	posts       ports.PostRepository
	publisher   ports.EventPublisher
	relay       ports.RelayTrigger
	cache       *cache.Gateway
	invalidator ports.CacheInvalidator
	logger      *slog.Logger
	nowFn       func() time.Time
}

type Dependencies struct {
	Config      Config
	Posts       ports.PostRepository
	Publisher   ports.EventPublisher
	Relay       ports.RelayTrigger
	Cache       *cache.Gateway
	Invalidator ports.CacheInvalidator
	Logger      *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "post-service"
	}
	if cfg.Delivery == "" {
		cfg.Delivery = DeliveryOutbox
	}
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = cache.DefaultListTTL
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = cache.DefaultDetailTTL
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:         cfg,
		posts:       deps.Posts,
		publisher:   deps.Publisher,
		relay:       deps.Relay,
		cache:       deps.Cache,
		invalidator: deps.Invalidator,
		logger:      logger,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
}
