package postgres

import (
	"context"
	"time"

	"github.com/viralforge/socmed/platform/messaging"
	"gorm.io/gorm"
)

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Pending(ctx context.Context, limit, maxAttempts int) ([]messaging.StagedEvent, error) {
	var rows []outboxModel
	query := r.db.WithContext(ctx).Where("published_at IS NULL")
	if maxAttempts > 0 {
		query = query.Where("retry_count < ?", maxAttempts)
	}
	if err := query.Order("occurred_at asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]messaging.StagedEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toStaged())
	}
	return out, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, eventID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("event_id = ?", eventID).Update("published_at", at).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, eventID, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&outboxModel{}).Where("event_id = ?", eventID).Updates(map[string]any{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
	}).Error
}

var _ messaging.EventLog = (*outboxRepository)(nil)
