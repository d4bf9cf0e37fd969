package postgres

import (
	"time"

	"github.com/viralforge/socmed/services/search-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Documents  ports.SearchRepository
	EventDedup ports.EventDedupRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	nowFn := func() time.Time { return time.Now().UTC() }
	return Repositories{
		Documents:  &searchRepository{db: db, nowFn: nowFn},
		EventDedup: &eventDedupRepository{db: db, nowFn: nowFn},
	}
}
