package postgres

import (
	"time"

	"github.com/lib/pq"
	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/services/post-service/internal/domain"
)

type postModel struct {
	ID        string         `gorm:"column:id;primaryKey"`
	AuthorID  string         `gorm:"column:author_id"`
	Content   string         `gorm:"column:content"`
	MediaIDs  pq.StringArray `gorm:"column:media_ids;type:text[]"`
	CreatedAt time.Time      `gorm:"column:created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at"`
}

func (postModel) TableName() string { return "posts" }

func (m postModel) toDomain() domain.Post {
	ids := []string(m.MediaIDs)
	if ids == nil {
		ids = []string{}
	}
	return domain.Post{
		ID:        m.ID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		MediaIDs:  ids,
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}

func postFromDomain(p domain.Post) postModel {
	ids := p.MediaIDs
	if ids == nil {
		ids = []string{}
	}
	return postModel{
		ID:        p.ID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		MediaIDs:  pq.StringArray(ids),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type outboxModel struct {
	EventID      string     `gorm:"column:event_id;primaryKey"`
	RoutingKey   string     `gorm:"column:routing_key"`
	PartitionKey string     `gorm:"column:partition_key"`
	Source       string     `gorm:"column:source"`
	Payload      string     `gorm:"column:payload;type:jsonb"`
	OccurredAt   time.Time  `gorm:"column:occurred_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	RetryCount   int        `gorm:"column:retry_count"`
	LastError    *string    `gorm:"column:last_error"`
	LastErrorAt  *time.Time `gorm:"column:last_error_at"`
}

func (outboxModel) TableName() string { return "post_outbox" }

func outboxFromEvent(evt messaging.DomainEvent) outboxModel {
	return outboxModel{
		EventID:      evt.ID,
		RoutingKey:   evt.RoutingKey,
		PartitionKey: evt.PartitionKey,
		Source:       evt.Source,
		Payload:      string(evt.Payload()),
		OccurredAt:   evt.EmittedAt,
	}
}

func (m outboxModel) toStaged() messaging.StagedEvent {
	return messaging.StagedEvent{
		Event:    messaging.RestoreEvent(m.EventID, m.RoutingKey, m.PartitionKey, m.Source, []byte(m.Payload), m.OccurredAt),
		Attempts: m.RetryCount,
	}
}
