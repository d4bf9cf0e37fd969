// Package memory holds map-backed repositories for tests and the
// single-process dev mode (database.driver: memory).
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/viralforge/socmed/platform/messaging"
	"github.com/viralforge/socmed/services/post-service/internal/domain"
)

type Repositories struct {
	Posts  *PostRepository
	Outbox *OutboxRepository
}

func NewRepositories() *Repositories {
	outbox := &OutboxRepository{}
	return &Repositories{
		Posts:  &PostRepository{records: map[string]domain.Post{}, outbox: outbox},
		Outbox: outbox,
	}
}

type PostRepository struct {
	mu      sync.RWMutex
	records map[string]domain.Post
	outbox  *OutboxRepository
	failErr error
}

// FailWrites makes every later write return err. Nil restores normal writes.
func (r *PostRepository) FailWrites(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

func (r *PostRepository) Create(_ context.Context, post domain.Post, evt *messaging.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if _, exists := r.records[post.ID]; exists {
		return domain.ErrConflict
	}
	r.records[post.ID] = clonePost(post)
	r.outbox.stage(evt)
	return nil
}

func (r *PostRepository) Get(_ context.Context, id string) (domain.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	post, ok := r.records[id]
	if !ok {
		return domain.Post{}, domain.ErrNotFound
	}
	return clonePost(post), nil
}

func (r *PostRepository) List(_ context.Context, offset, limit int) ([]domain.Post, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.Post, 0, len(r.records))
	for _, p := range r.records {
		all = append(all, clonePost(p))
	}
	slices.SortFunc(all, func(a, b domain.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Post{}, total, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], total, nil
}

func (r *PostRepository) Update(_ context.Context, post domain.Post, evt *messaging.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	current, ok := r.records[post.ID]
	if !ok {
		return domain.ErrNotFound
	}
	current.Content = post.Content
	current.UpdatedAt = post.UpdatedAt
	r.records[post.ID] = current
	r.outbox.stage(evt)
	return nil
}

func (r *PostRepository) Delete(_ context.Context, id string, evt *messaging.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return r.failErr
	}
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	r.outbox.stage(evt)
	return nil
}

func clonePost(p domain.Post) domain.Post {
	p.MediaIDs = slices.Clone(p.MediaIDs)
	if p.MediaIDs == nil {
		p.MediaIDs = []string{}
	}
	return p
}

type outboxRecord struct {
	event       messaging.DomainEvent
	publishedAt *time.Time
	retryCount  int
	lastError   string
}

type OutboxRepository struct {
	mu      sync.Mutex
	records []*outboxRecord
}

func (r *OutboxRepository) stage(evt *messaging.DomainEvent) {
	if evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, &outboxRecord{event: *evt})
}

func (r *OutboxRepository) Pending(_ context.Context, limit, maxAttempts int) ([]messaging.StagedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]messaging.StagedEvent, 0, limit)
	for _, rec := range r.records {
		if rec.publishedAt != nil || (maxAttempts > 0 && rec.retryCount >= maxAttempts) {
			continue
		}
		out = append(out, messaging.StagedEvent{Event: rec.event, Attempts: rec.retryCount})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkPublished(_ context.Context, eventID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.event.ID == eventID {
			at := at
			rec.publishedAt = &at
		}
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(_ context.Context, eventID, errMsg string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.event.ID == eventID {
			rec.retryCount++
			rec.lastError = errMsg
		}
	}
	return nil
}

// Staged returns every staged event in commit order, published or not.
func (r *OutboxRepository) Staged() []messaging.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]messaging.DomainEvent, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.event)
	}
	return out
}
