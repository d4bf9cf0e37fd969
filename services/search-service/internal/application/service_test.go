package application_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/viralforge/socmed/platform/cache"
	"github.com/viralforge/socmed/services/search-service/internal/adapters/memory"
	"github.com/viralforge/socmed/services/search-service/internal/application"
	"github.com/viralforge/socmed/services/search-service/internal/domain"
)

type testDeps struct {
	service *application.Service
	repos   *memory.Repositories
	store   *cache.MemoryStore
	now     *time.Time
	logs    *bytes.Buffer
}

func newService(t *testing.T) testDeps {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	repos := memory.NewRepositories()
	store := cache.NewMemoryStore()
	keys := cache.NewKeys("test")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := application.NewService(application.Dependencies{
		Config:     application.Config{TombstoneTTL: time.Hour, EventDedupTTL: time.Hour},
		Documents:  repos.Documents,
		EventDedup: repos.EventDedup,
		Cache:      cache.NewGateway(store, keys, logger),
		Invalidator: cache.NewInvalidator(store, keys, cache.InvalidatorConfig{
			Mode:   cache.ModeVersioned,
			Scopes: []string{cache.ScopeSearch},
		}, logger),
		Logger: logger,
		Now:    func() time.Time { return now },
	})
	return testDeps{service: svc, repos: repos, store: store, now: &now, logs: logs}
}

var t0 = time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

func meta(id, routingKey string, emittedAt time.Time) domain.EventMeta {
	return domain.EventMeta{ID: id, RoutingKey: routingKey, EmittedAt: emittedAt}
}

func doc(postID, content string) domain.SearchDocument {
	return domain.SearchDocument{PostID: postID, AuthorID: "u1", Content: content, CreatedAt: t0}
}

func search(t *testing.T, svc *application.Service, query string) []string {
	t.Helper()
	res, err := svc.Search(context.Background(), application.SearchInput{Query: query})
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Results))
	for _, d := range res.Results {
		ids = append(ids, d.PostID)
	}
	return ids
}

func TestCreatedThenSearchFindsPost(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "hello world")))
	require.Equal(t, []string{"P1"}, search(t, deps.service, "hello"))
}

func TestDeletedThenSearchIsEmpty(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "hello world")))
	require.Equal(t, []string{"P1"}, search(t, deps.service, "hello"))

	require.NoError(t, deps.service.DeleteDocument(ctx, meta("e2", "post.deleted", t0.Add(time.Second)), "P1"))
	require.Empty(t, search(t, deps.service, "hello"))
}

func TestReplayedEventIsIdempotent(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()
	m := meta("e1", "post.created", t0)

	require.NoError(t, deps.service.UpsertDocument(ctx, m, doc("P1", "hello world")))
	before := deps.store.Len()
	require.NoError(t, deps.service.UpsertDocument(ctx, m, doc("P1", "hello world")))
	require.Equal(t, before, deps.store.Len())

	got, err := deps.repos.Documents.Get(ctx, "P1")
	require.NoError(t, err)
	require.Equal(t, "hello world", got.Content)
	require.Equal(t, t0, got.SourceEmittedAt)
}

func TestFailedDedupMarkIsLoggedAndReplaySafe(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()
	deps.repos.EventDedup.FailMarks(errors.New("connection reset"))
	m := meta("e1", "post.created", t0)

	require.NoError(t, deps.service.UpsertDocument(ctx, m, doc("P1", "hello world")))
	require.Contains(t, deps.logs.String(), `"msg":"event dedup mark failed"`)
	require.Contains(t, deps.logs.String(), `"operation":"mark_processed"`)
	require.Contains(t, deps.logs.String(), `"error":"connection reset"`)

	dup, err := deps.repos.EventDedup.IsDuplicate(ctx, "e1", *deps.now)
	require.NoError(t, err)
	require.False(t, dup)

	deps.repos.EventDedup.FailMarks(nil)
	require.NoError(t, deps.service.UpsertDocument(ctx, m, doc("P1", "hello world")))
	require.Equal(t, []string{"P1"}, search(t, deps.service, "hello"))
}

func TestSameEffectWithoutDedup(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()
	// Distinct ids bypass dedup; the emittedAt guard alone keeps the state.
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "hello world")))
	require.NoError(t, deps.service.DeleteDocument(ctx, meta("e2", "post.deleted", t0.Add(time.Second)), "P1"))
	require.NoError(t, deps.service.DeleteDocument(ctx, meta("e3", "post.deleted", t0.Add(time.Second)), "P1"))
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e4", "post.created", t0), doc("P1", "hello world")))
	require.Empty(t, search(t, deps.service, "hello"))
}

func TestDeleteBeforeCreateDoesNotResurrect(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	require.NoError(t, deps.service.DeleteDocument(ctx, meta("e2", "post.deleted", t0.Add(time.Second)), "P1"))
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "hello world")))

	_, err := deps.repos.Documents.Get(ctx, "P1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, search(t, deps.service, "hello"))
}

func TestDeleteWinsTie(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	require.NoError(t, deps.service.DeleteDocument(ctx, meta("e2", "post.deleted", t0), "P1"))
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "hello world")))
	_, err := deps.repos.Documents.Get(ctx, "P1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOlderUpdateIsDiscarded(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e2", "post.updated", t0.Add(2*time.Second)), doc("P1", "second draft")))
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "first draft")))

	got, err := deps.repos.Documents.Get(ctx, "P1")
	require.NoError(t, err)
	require.Equal(t, "second draft", got.Content)
}

func TestDeleteOlderThanRowKeepsRow(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()

	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e3", "post.updated", t0.Add(5*time.Second)), doc("P1", "hello again")))
	require.NoError(t, deps.service.DeleteDocument(ctx, meta("e2", "post.deleted", t0.Add(time.Second)), "P1"))

	_, err := deps.repos.Documents.Get(ctx, "P1")
	require.NoError(t, err)
}

func TestSearchCacheServesAndRefreshesAfterProjection(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "hello world")))
	require.Equal(t, []string{"P1"}, search(t, deps.service, "hello"))

	// A write behind the service's back stays invisible while cached.
	_, err := deps.repos.Documents.ApplyUpsert(ctx, domain.SearchDocument{PostID: "P2", Content: "hello there", CreatedAt: t0.Add(time.Minute), SourceEmittedAt: t0})
	require.NoError(t, err)
	require.Equal(t, []string{"P1"}, search(t, deps.service, "  HELLO "))

	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e3", "post.created", t0), doc("P3", "unrelated")))
	require.ElementsMatch(t, []string{"P1", "P2"}, search(t, deps.service, "hello"))
}

func TestSearchFailsOpen(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()
	require.NoError(t, deps.service.UpsertDocument(ctx, meta("e1", "post.created", t0), doc("P1", "hello world")))
	deps.store.SetUnavailable(true)
	require.Equal(t, []string{"P1"}, search(t, deps.service, "hello"))
}

func TestSearchValidation(t *testing.T) {
	deps := newService(t)
	_, err := deps.service.Search(context.Background(), application.SearchInput{Query: "   "})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = deps.service.Search(context.Background(), application.SearchInput{Query: "x", Limit: 51})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPurgeExpiredDropsOldTombstones(t *testing.T) {
	deps := newService(t)
	ctx := context.Background()
	require.NoError(t, deps.service.DeleteDocument(ctx, meta("e1", "post.deleted", t0), "P1"))

	tombs, dedup, err := deps.service.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, tombs)
	require.Zero(t, dedup)

	*deps.now = deps.now.Add(2 * time.Hour)
	tombs, dedup, err = deps.service.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, tombs)
	require.EqualValues(t, 1, dedup)
	_, ok := deps.repos.Documents.Tombstone("P1")
	require.False(t, ok)
}
