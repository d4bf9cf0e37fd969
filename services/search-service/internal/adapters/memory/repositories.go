// Package memory holds map-backed repositories for tests and the
// single-process dev mode (database.driver: memory).
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

type Repositories struct {
	Documents  *SearchRepository
	EventDedup *EventDedupRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Documents: &SearchRepository{
			docs:       map[string]domain.SearchDocument{},
			tombstones: map[string]domain.Tombstone{},
		},
		EventDedup: &EventDedupRepository{records: map[string]dedupRecord{}},
	}
}

type SearchRepository struct {
	mu         sync.RWMutex
	docs       map[string]domain.SearchDocument
	tombstones map[string]domain.Tombstone
}

func (r *SearchRepository) ApplyUpsert(_ context.Context, doc domain.SearchDocument) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tomb, ok := r.tombstones[doc.PostID]; ok && !doc.SourceEmittedAt.After(tomb.DeletedAt) {
		return false, nil
	}
	if current, ok := r.docs[doc.PostID]; ok && doc.SourceEmittedAt.Before(current.SourceEmittedAt) {
		return false, nil
	}
	doc.Score = 0
	r.docs[doc.PostID] = doc
	return true, nil
}

func (r *SearchRepository) ApplyDelete(_ context.Context, tomb domain.Tombstone) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.tombstones[tomb.PostID]; ok {
		if existing.DeletedAt.After(tomb.DeletedAt) {
			tomb.DeletedAt = existing.DeletedAt
		}
		if existing.ExpiresAt.After(tomb.ExpiresAt) {
			tomb.ExpiresAt = existing.ExpiresAt
		}
	}
	r.tombstones[tomb.PostID] = tomb
	current, ok := r.docs[tomb.PostID]
	if !ok || current.SourceEmittedAt.After(tomb.DeletedAt) {
		return false, nil
	}
	delete(r.docs, tomb.PostID)
	return true, nil
}

func (r *SearchRepository) Get(_ context.Context, postID string) (domain.SearchDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[postID]
	if !ok {
		return domain.SearchDocument{}, domain.ErrNotFound
	}
	return doc, nil
}

// Search matches documents containing every query term as a whole word and
// ranks them by term frequency, newest first on ties.
func (r *SearchRepository) Search(_ context.Context, query string, limit int) ([]domain.SearchDocument, error) {
	terms := words(query)
	if len(terms) == 0 {
		return []domain.SearchDocument{}, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.SearchDocument, 0)
	for _, doc := range r.docs {
		counts := map[string]int{}
		for _, w := range words(doc.Content) {
			counts[w]++
		}
		score := 0
		for _, term := range terms {
			if counts[term] == 0 {
				score = 0
				break
			}
			score += counts[term]
		}
		if score == 0 {
			continue
		}
		doc.Score = float64(score)
		out = append(out, doc)
	}
	slices.SortFunc(out, func(a, b domain.SearchDocument) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.PostID, b.PostID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SearchRepository) PurgeTombstones(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, tomb := range r.tombstones {
		if !tomb.ExpiresAt.After(now) {
			delete(r.tombstones, id)
			n++
		}
	}
	return n, nil
}

// Tombstone returns the tombstone recorded for postID, if any.
func (r *SearchRepository) Tombstone(postID string) (domain.Tombstone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tomb, ok := r.tombstones[postID]
	return tomb, ok
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

type dedupRecord struct {
	EventType string
	ExpiresAt time.Time
}

type EventDedupRepository struct {
	mu      sync.Mutex
	markErr error
	records map[string]dedupRecord
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
	rec, ok := r.records[eventID]
	if !ok {
		return false, nil
	}
	if now.After(rec.ExpiresAt) {
		delete(r.records, eventID)
		return false, nil
	}
	return true, nil
}

func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, eventType string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	r.records[eventID] = dedupRecord{EventType: eventType, ExpiresAt: expiresAt}
	return nil
}

func (r *EventDedupRepository) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if !rec.ExpiresAt.After(now) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}
