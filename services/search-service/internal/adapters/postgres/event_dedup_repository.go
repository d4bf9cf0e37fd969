package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type eventDedupRepository struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func (r *eventDedupRepository) IsDuplicate(ctx context.Context, eventID string, now time.Time) (bool, error) {
	var live int64
	if err := r.db.WithContext(ctx).Model(&eventDedupModel{}).
		Where("event_id = ? AND expires_at > ?", eventID, now).
		Count(&live).Error; err != nil {
		return false, fmt.Errorf("lookup event %s: %w", eventID, err)
	}
	return live > 0, nil
}

// MarkProcessed upserts so a redelivered event extends its own expiry.
func (r *eventDedupRepository) MarkProcessed(ctx context.Context, eventID, eventType string, expiresAt time.Time) error {
	row := eventDedupModel{EventID: eventID, EventType: eventType, ProcessedAt: r.nowFn(), ExpiresAt: expiresAt}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_type", "processed_at", "expires_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("mark event %s processed: %w", eventID, err)
	}
	return nil
}

func (r *eventDedupRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&eventDedupModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge event dedup: %w", res.Error)
	}
	return res.RowsAffected, nil
}
