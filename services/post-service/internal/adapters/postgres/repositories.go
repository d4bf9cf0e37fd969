package postgres

import (
	"github.com/viralforge/socmed/services/post-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Posts  ports.PostRepository
	Outbox ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Posts:  &postRepository{db: db},
		Outbox: &outboxRepository{db: db},
	}
}
