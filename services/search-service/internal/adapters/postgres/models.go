package postgres

import (
	"time"

	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

type searchDocumentModel struct {
	PostID          string    `gorm:"column:post_id;primaryKey"`
	AuthorID        string    `gorm:"column:author_id"`
	Content         string    `gorm:"column:content"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	SourceEmittedAt time.Time `gorm:"column:source_emitted_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
	Score           float64   `gorm:"column:score;->"`
}

func (searchDocumentModel) TableName() string { return "search_documents" }

func (m searchDocumentModel) toDomain() domain.SearchDocument {
	return domain.SearchDocument{
		PostID:          m.PostID,
		AuthorID:        m.AuthorID,
		Content:         m.Content,
		CreatedAt:       m.CreatedAt.UTC(),
		SourceEmittedAt: m.SourceEmittedAt.UTC(),
		Score:           m.Score,
	}
}

type tombstoneModel struct {
	PostID    string    `gorm:"column:post_id;primaryKey"`
	DeletedAt time.Time `gorm:"column:deleted_at"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
}

func (tombstoneModel) TableName() string { return "search_tombstones" }

type eventDedupModel struct {
	EventID     string    `gorm:"column:event_id;primaryKey"`
	EventType   string    `gorm:"column:event_type"`
	ProcessedAt time.Time `gorm:"column:processed_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "search_event_dedup" }
