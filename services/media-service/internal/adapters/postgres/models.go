package postgres

import (
	"time"

	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

type mediaModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	OwnerID      string    `gorm:"column:owner_id"`
	StorageRef   string    `gorm:"column:storage_ref"`
	MimeType     string    `gorm:"column:mime_type"`
	OriginalName string    `gorm:"column:original_name"`
	SizeBytes    int64     `gorm:"column:size_bytes"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (mediaModel) TableName() string { return "media_records" }

func (m mediaModel) toDomain() domain.MediaRecord {
	return domain.MediaRecord{
		ID:           m.ID,
		OwnerID:      m.OwnerID,
		StorageRef:   m.StorageRef,
		MimeType:     m.MimeType,
		OriginalName: m.OriginalName,
		SizeBytes:    m.SizeBytes,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

func mediaFromDomain(r domain.MediaRecord) mediaModel {
	return mediaModel{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		StorageRef:   r.StorageRef,
		MimeType:     r.MimeType,
		OriginalName: r.OriginalName,
		SizeBytes:    r.SizeBytes,
		CreatedAt:    r.CreatedAt,
	}
}

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "media_event_dedup" }
