// Package memory holds map-backed repositories for tests and the
// single-process dev mode (database.driver: memory).
package memory

import (
	"bytes"
	"cmp"
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/viralforge/socmed/services/media-service/internal/domain"
)

type Repositories struct {
	Media      *MediaRepository
	EventDedup *EventDedupRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Media:      &MediaRepository{records: map[string]domain.MediaRecord{}},
		EventDedup: &EventDedupRepository{entries: map[string]time.Time{}},
	}
}

type MediaRepository struct {
	mu      sync.RWMutex
	records map[string]domain.MediaRecord
	failErr error
}

// FailReads makes every later read return err. Nil restores normal reads.
func (r *MediaRepository) FailReads(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

func (r *MediaRepository) Create(_ context.Context, rec domain.MediaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = rec
	return nil
}

func (r *MediaRepository) Get(_ context.Context, id string) (domain.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failErr != nil {
		return domain.MediaRecord{}, r.failErr
	}
	rec, ok := r.records[id]
	if !ok {
		return domain.MediaRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (r *MediaRepository) GetMany(_ context.Context, ids []string) ([]domain.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	out := make([]domain.MediaRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := r.records[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *MediaRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	out := []domain.MediaRecord{}
	for _, rec := range r.records {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	slices.SortFunc(out, func(a, b domain.MediaRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (r *MediaRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

type EventDedupRepository struct {
	mu      sync.Mutex
	markErr error
	entries map[string]time.Time
}

// FailMarks makes every later MarkProcessed return err. Nil restores normal marks.
func (r *EventDedupRepository) FailMarks(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markErr = err
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp, ok := r.entries[eventID]
	return ok && exp.After(now), nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, _ string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	r.entries[eventID] = expiresAt
	return nil
}

func (r *EventDedupRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, exp := range r.entries {
		if !exp.After(now) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

// ObjectStorage keeps media bytes in process.
type ObjectStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewObjectStorage() *ObjectStorage {
	return &ObjectStorage{objects: map[string][]byte{}}
}

func (s *ObjectStorage) Put(_ context.Context, ref string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[ref] = data
	return nil
}

func (s *ObjectStorage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *ObjectStorage) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	return nil
}

func (s *ObjectStorage) Has(ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[ref]
	return ok
}
