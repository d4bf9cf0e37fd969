package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/viralforge/socmed/services/media-service/internal/application"
)

// Janitor periodically purges expired dedup rows.
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
		n, err := j.service.PurgeExpired(ctx)
		switch {
		case err != nil && !errors.Is(err, context.Canceled):
			j.logger.ErrorContext(ctx, "dedup purge failed",
				"module", "events.janitor",
				"layer", "adapter",
				"operation", "purge",
				"outcome", "failure",
				"error", err.Error(),
			)
		case n > 0:
			j.logger.InfoContext(ctx, "dedup purge completed",
				"module", "events.janitor",
				"layer", "adapter",
				"operation", "purge",
				"outcome", "success",
				"dedup_rows", n,
			)
		}
	}
}
