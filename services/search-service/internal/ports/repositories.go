package ports

import (
	"context"
	"time"

	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

// SearchRepository applies projection writes with last-writer-wins on the
// source event's emittedAt. Deletes win ties.
type SearchRepository interface {
	// ApplyUpsert reports false when doc is older than the stored row or not
	// newer than the post's tombstone.
	ApplyUpsert(ctx context.Context, doc domain.SearchDocument) (bool, error)
	// ApplyDelete records the tombstone and removes the row unless the row is
	// newer than deletedAt. It reports whether a row was removed.
	ApplyDelete(ctx context.Context, tomb domain.Tombstone) (bool, error)
	Search(ctx context.Context, query string, limit int) ([]domain.SearchDocument, error)
	PurgeTombstones(ctx context.Context, now time.Time) (int64, error)
}

type EventDedupRepository interface {
	IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, entityID string)
}
