package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/socmed/services/search-service/internal/application"
)

// Janitor periodically purges expired tombstones and dedup rows.
type Janitor struct {
	logger   *slog.Logger
	service  *application.Service
	interval time.Duration
}

func NewJanitor(logger *slog.Logger, service *application.Service, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{logger: logger, service: service, interval: interval}
}

func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		tombstones, dedup, err := j.service.PurgeExpired(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			j.logger.ErrorContext(ctx, "retention purge failed",
				"module", "events.janitor",
				"layer", "adapter",
				"operation", "purge",
				"outcome", "failure",
				"error", err.Error(),
			)
			continue
		}
		if tombstones > 0 || dedup > 0 {
			j.logger.InfoContext(ctx, "retention purge completed",
				"module", "events.janitor",
				"layer", "adapter",
				"operation", "purge",
				"outcome", "success",
				"tombstones", tombstones,
				"dedup_rows", dedup,
			)
		}
	}
}
