package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

// UpsertDocument projects a post.created or post.updated event. Replays of an
// already processed event are no-ops.
func (s *Service) UpsertDocument(ctx context.Context, meta domain.EventMeta, doc domain.SearchDocument) error {
	if strings.TrimSpace(doc.PostID) == "" {
		return fmt.Errorf("%w: postId is required", domain.ErrInvalidInput)
	}
	doc.SourceEmittedAt = meta.EmittedAt
	return s.project(ctx, meta, doc.PostID, func(ctx context.Context) (bool, error) {
		return s.documents.ApplyUpsert(ctx, doc)
	})
}

// DeleteDocument projects a post.deleted event and leaves a tombstone behind.
func (s *Service) DeleteDocument(ctx context.Context, meta domain.EventMeta, postID string) error {
	if strings.TrimSpace(postID) == "" {
		return fmt.Errorf("%w: postId is required", domain.ErrInvalidInput)
	}
	tomb := domain.Tombstone{
		PostID:    postID,
		DeletedAt: meta.EmittedAt,
		ExpiresAt: s.nowFn().Add(s.cfg.TombstoneTTL),
	}
	return s.project(ctx, meta, postID, func(ctx context.Context) (bool, error) {
		return s.documents.ApplyDelete(ctx, tomb)
	})
}

func (s *Service) project(ctx context.Context, meta domain.EventMeta, postID string, apply func(context.Context) (bool, error)) error {
	if meta.ID != "" {
		dup, err := s.eventDedup.IsDuplicate(ctx, meta.ID, s.nowFn())
		if err != nil {
			return fmt.Errorf("%w: dedup lookup: %v", domain.ErrDependencyUnavailable, err)
		}
		if dup {
			s.logProjection(ctx, meta, postID, "duplicate")
			return nil
		}
	}
	applied, err := apply(ctx)
	if err != nil {
		return err
	}
	if meta.ID != "" {
		s.markProcessed(ctx, meta)
	}
	outcome := "stale"
	if applied {
		outcome = "applied"
		if s.invalidator != nil {
			s.invalidator.Invalidate(ctx, postID)
		}
	}
	s.logProjection(ctx, meta, postID, outcome)
	return nil
}

// markProcessed records the event id. A failed mark is logged, not returned:
// a redelivery re-applies the change and the emittedAt checks make that a no-op.
func (s *Service) markProcessed(ctx context.Context, meta domain.EventMeta) {
	err := s.eventDedup.MarkProcessed(ctx, meta.ID, meta.RoutingKey, s.nowFn().Add(s.cfg.EventDedupTTL))
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "event dedup mark failed",
		"module", "application",
		"layer", "service",
		"operation", "mark_processed",
		"outcome", "failure",
		"event_id", meta.ID,
		"routing_key", meta.RoutingKey,
		"error", err.Error(),
	)
}

func (s *Service) logProjection(ctx context.Context, meta domain.EventMeta, postID, outcome string) {
	s.logger.InfoContext(ctx, "search projection handled event",
		"module", "application",
		"layer", "service",
		"operation", meta.RoutingKey,
		"outcome", outcome,
		"event_id", meta.ID,
		"post_id", postID,
	)
}

// PurgeExpired drops tombstones and dedup rows past their retention.
func (s *Service) PurgeExpired(ctx context.Context) (tombstones, dedup int64, err error) {
	now := s.nowFn()
	tombstones, err = s.documents.PurgeTombstones(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	dedup, err = s.eventDedup.PurgeExpired(ctx, now)
	if err != nil {
		return tombstones, 0, err
	}
	return tombstones, dedup, nil
}
