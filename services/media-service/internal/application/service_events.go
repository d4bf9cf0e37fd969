package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

// HandlePostDeleted removes the media a deleted post referenced: the storage
// object first, then the record. Records or objects that are already gone
// count as removed. Media owned by someone other than the post's author is
// left alone.
func (s *Service) HandlePostDeleted(ctx context.Context, meta domain.EventMeta, postID, authorID string, mediaIDs []string) (domain.CleanupReport, error) {
	var report domain.CleanupReport
	if strings.TrimSpace(postID) == "" {
		return report, fmt.Errorf("%w: postId is required", domain.ErrInvalidInput)
	}
	if meta.ID != "" {
		dup, err := s.eventDedup.IsDuplicate(ctx, meta.ID, s.nowFn())
		if err != nil {
			return report, fmt.Errorf("%w: dedup lookup: %v", domain.ErrDependencyUnavailable, err)
		}
		if dup {
			s.logCleanup(ctx, meta, postID, "duplicate", report)
			return report, nil
		}
	}

	records, err := s.media.GetMany(ctx, mediaIDs)
	if err != nil {
		return report, fmt.Errorf("%w: load media: %v", domain.ErrDependencyUnavailable, err)
	}
	found := make(map[string]domain.MediaRecord, len(records))
	for _, rec := range records {
		found[rec.ID] = rec
	}
	for _, id := range mediaIDs {
		rec, ok := found[id]
		if !ok {
			report.Missing = append(report.Missing, id)
			continue
		}
		if authorID != "" && rec.OwnerID != authorID {
			report.Skipped = append(report.Skipped, id)
			continue
		}
		if err := s.storage.Delete(ctx, rec.StorageRef); err != nil {
			return report, fmt.Errorf("%w: delete object %s: %v", domain.ErrDependencyUnavailable, rec.StorageRef, err)
		}
		if err := s.media.Delete(ctx, rec.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return report, fmt.Errorf("%w: delete media %s: %v", domain.ErrDependencyUnavailable, rec.ID, err)
		}
		report.Deleted = append(report.Deleted, id)
	}

	if meta.ID != "" {
		s.markProcessed(ctx, meta)
	}
	s.logCleanup(ctx, meta, postID, "success", report)
	return report, nil
}

// PurgeExpired drops dedup rows past their TTL.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.eventDedup.PurgeExpired(ctx, s.nowFn())
	if err != nil {
		return 0, fmt.Errorf("%w: purge event dedup: %v", domain.ErrDependencyUnavailable, err)
	}
	return n, nil
}

// markProcessed logs a failed mark instead of returning it. A redelivery finds
// the objects and records already gone and counts them as missing.
func (s *Service) markProcessed(ctx context.Context, meta domain.EventMeta) {
	err := s.eventDedup.MarkProcessed(ctx, meta.ID, meta.RoutingKey, s.nowFn().Add(s.cfg.EventDedupTTL))
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "event dedup mark failed",
		"module", "media",
		"layer", "application",
		"operation", "mark_processed",
		"outcome", "failure",
		"event_id", meta.ID,
		"routing_key", meta.RoutingKey,
		"error", err.Error(),
	)
}

func (s *Service) logCleanup(ctx context.Context, meta domain.EventMeta, postID, outcome string, report domain.CleanupReport) {
	s.logger.InfoContext(ctx, "post media cleanup",
		"module", "media",
		"layer", "application",
		"operation", "handle_post_deleted",
		"outcome", outcome,
		"event_id", meta.ID,
		"post_id", postID,
		"deleted", len(report.Deleted),
		"missing", len(report.Missing),
		"skipped", len(report.Skipped),
	)
}
