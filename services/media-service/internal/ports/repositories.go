package ports

import (
	"context"
	"time"

	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

type MediaRepository interface {
	Create(ctx context.Context, rec domain.MediaRecord) error
	Get(ctx context.Context, id string) (domain.MediaRecord, error)
	GetMany(ctx context.Context, ids []string) ([]domain.MediaRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.MediaRecord, error)
	// Delete returns domain.ErrNotFound when the record is already gone.
	Delete(ctx context.Context, id string) error
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
