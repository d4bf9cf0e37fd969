package application

import (
	"log/slog"
	"time"

	"github.com/viralforge/socmed/services/media-service/internal/ports"
)

type Config struct {
	ServiceName   string
	EventDedupTTL time.Duration
}

type Service struct {
	cfg        Config
	media      ports.MediaRepository
	storage    ports.ObjectStorage
	eventDedup ports.EventDedupRepository
	logger     *slog.Logger
	nowFn      func() time.Time
	newID      func() string
}

type Dependencies struct {
	Config     Config
	Media      ports.MediaRepository
	Storage    ports.ObjectStorage
	EventDedup ports.EventDedupRepository
	Logger     *slog.Logger
	Now        func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "media-service"
	}
	if cfg.EventDedupTTL <= 0 {
		cfg.EventDedupTTL = 7 * 24 * time.Hour
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
		cfg:        cfg,
		media:      deps.Media,
		storage:    deps.Storage,
		eventDedup: deps.EventDedup,
		logger:     logger,
		nowFn:      nowFn,
		newID:      newMediaID,
	}
}
