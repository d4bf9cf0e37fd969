package postgres

import (
	"time"

	"github.com/viralforge/socmed/services/media-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Media      ports.MediaRepository
	EventDedup ports.EventDedupRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Media:      &mediaRepository{db: db},
		EventDedup: &eventDedupRepository{db: db, nowFn: func() time.Time { return time.Now().UTC() }},
	}
}
