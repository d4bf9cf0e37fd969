package cache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func postInvalidator(store Store, mode Mode) *Invalidator {
	return NewInvalidator(store, NewKeys("socmed"), InvalidatorConfig{
		Mode:       mode,
		DetailKind: "post",
		Scopes:     []string{ScopePosts, ScopeSearch},
	}, discardLogger())
}

func TestVersionedInvalidationForcesRecompute(t *testing.T) {
	store := NewMemoryStore()
	gw := NewGateway(store, NewKeys("socmed"), discardLogger())
	inv := postInvalidator(store, ModeVersioned)
	ctx := context.Background()
	params := url.Values{"page": {"1"}, "limit": {"10"}}

	total := 1
	load := func(context.Context) (page, error) { return page{Total: total}, nil }

	key, ok := gw.ListKey(ctx, ScopePosts, params)
	require.True(t, ok)
	got, err := FetchJSON(ctx, gw, key, DefaultListTTL, load)
	require.NoError(t, err)
	require.Equal(t, 1, got.Total)

	require.NoError(t, store.Set(ctx, gw.Keys().Detail("post", "p1"), []byte(`{}`), DefaultDetailTTL))
	total = 2
	inv.Invalidate(ctx, "p1")

	key2, ok := gw.ListKey(ctx, ScopePosts, params)
	require.True(t, ok)
	require.NotEqual(t, key, key2)
	got, err = FetchJSON(ctx, gw, key2, DefaultListTTL, load)
	require.NoError(t, err)
	require.Equal(t, 2, got.Total)

	_, ok = gw.Get(ctx, gw.Keys().Detail("post", "p1"))
	require.False(t, ok)

	searchKey, ok := gw.ListKey(ctx, ScopeSearch, url.Values{"query": {"hello"}})
	require.True(t, ok)
	require.Contains(t, searchKey, ":v1:")
}

func TestPatternInvalidationPurgesEveryDependentKey(t *testing.T) {
	store := NewMemoryStore()
	keys := NewKeys("socmed")
	inv := postInvalidator(store, ModePattern)
	ctx := context.Background()

	for _, k := range []string{
		keys.List(ScopePosts, 0, url.Values{"page": {"1"}}),
		keys.List(ScopePosts, 0, url.Values{"page": {"2"}}),
		keys.List(ScopeSearch, 0, url.Values{"query": {"hello"}}),
		keys.Detail("post", "p1"),
		keys.Detail("post", "p2"),
		keys.Detail("media", "m1"),
	} {
		require.NoError(t, store.Set(ctx, k, []byte("x"), time.Hour))
	}

	inv.Invalidate(ctx, "p1")

	// The media detail survives, next to the two bumped version counters.
	require.Equal(t, 3, store.Len())
	_, err := store.Get(ctx, keys.Detail("media", "m1"))
	require.NoError(t, err)
	raw, err := store.Get(ctx, keys.Version(ScopePosts))
	require.NoError(t, err)
	require.Equal(t, "1", string(raw))
}

func TestGuardedFillDropsValueLoadedAcrossAWrite(t *testing.T) {
	for _, mode := range []Mode{ModeVersioned, ModePattern} {
		t.Run(string(mode), func(t *testing.T) {
			store := NewMemoryStore()
			gw := NewGateway(store, NewKeys("socmed"), discardLogger())
			inv := postInvalidator(store, mode)
			ctx := context.Background()
			key := gw.Keys().Detail("post", "p1")

			content := "old"
			// The write commits and invalidates while the old row is in flight.
			slowLoad := func(context.Context) (page, error) {
				loaded := page{Items: []string{content}}
				content = "new"
				inv.Invalidate(ctx, "p1")
				return loaded, nil
			}
			got, err := FetchJSON(ctx, gw, key, DefaultDetailTTL, slowLoad, GuardScope(ScopePosts))
			require.NoError(t, err)
			require.Equal(t, []string{"old"}, got.Items)

			_, ok := gw.Get(ctx, key)
			require.False(t, ok)

			got, err = FetchJSON(ctx, gw, key, DefaultDetailTTL, func(context.Context) (page, error) {
				return page{Items: []string{content}}, nil
			}, GuardScope(ScopePosts))
			require.NoError(t, err)
			require.Equal(t, []string{"new"}, got.Items)
			_, ok = gw.Get(ctx, key)
			require.True(t, ok)
		})
	}
}

func TestInvalidateSwallowsStoreErrors(t *testing.T) {
	store := NewMemoryStore()
	store.SetUnavailable(true)
	for _, mode := range []Mode{ModeVersioned, ModePattern} {
		require.NotPanics(t, func() { postInvalidator(store, mode).Invalidate(context.Background(), "p1") })
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeVersioned, mode)
	mode, err = ParseMode("Pattern")
	require.NoError(t, err)
	require.Equal(t, ModePattern, mode)
	_, err = ParseMode("lru")
	require.Error(t, err)
}
