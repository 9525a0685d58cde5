package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type countingObserver struct{ hits, misses int }

func (o *countingObserver) ObserveLookup(hit bool) {
	if hit {
		o.hits++
	} else {
		o.misses++
	}
}

func countingFetch(calls *int, payload string) FetchFunc {
	return func(context.Context) ([]byte, error) {
		*calls++

		return []byte(payload), nil
	}
}

func newTestStore(t *testing.T, c *clock, refresh bool) (*Store, *countingObserver) {
	t.Helper()

	observer := &countingObserver{}

	return New(Config{
		Dir:      filepath.Join(t.TempDir(), "cache"),
		TTL:      DefaultTTL,
		Refresh:  refresh,
		Now:      c.Now,
		Observer: observer,
	}), observer
}

func TestGetOrFetchRoundTripWithinTTL(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, observer := newTestStore(t, c, false)
	ctx := context.Background()
	calls := 0

	first, err := store.GetOrFetch(ctx, "islands", 0, countingFetch(&calls, `{"data":[1]}`))
	require.NoError(t, err)

	c.now = c.now.Add(DefaultTTL - time.Second)

	second, err := store.GetOrFetch(ctx, "islands", 0, countingFetch(&calls, `{"data":[2]}`))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, observer.hits)
	assert.Equal(t, 1, observer.misses)
}

func TestGetOrFetchRefetchesOnceAfterExpiry(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, _ := newTestStore(t, c, false)
	ctx := context.Background()
	calls := 0

	_, err := store.GetOrFetch(ctx, "hosts", 0, countingFetch(&calls, "old"))
	require.NoError(t, err)

	c.now = c.now.Add(DefaultTTL)

	data, err := store.GetOrFetch(ctx, "hosts", 0, countingFetch(&calls, "new"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))

	data, err = store.GetOrFetch(ctx, "hosts", 0, countingFetch(&calls, "newer"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.Equal(t, 2, calls)
}

func TestRefreshBypassesReadsButWrites(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	dir := filepath.Join(t.TempDir(), "cache")
	ctx := context.Background()
	calls := 0

	warm := New(Config{Dir: dir, Now: c.Now})
	_, err := warm.GetOrFetch(ctx, "blocks", 0, countingFetch(&calls, "cached"))
	require.NoError(t, err)

	refreshing := New(Config{Dir: dir, Now: c.Now, Refresh: true})
	data, err := refreshing.GetOrFetch(ctx, "blocks", 0, countingFetch(&calls, "fresh"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))

	data, err = warm.GetOrFetch(ctx, "blocks", 0, countingFetch(&calls, "unused"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
	assert.Equal(t, 2, calls)
}

func TestFetchFailureLeavesOldEntryUntouched(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, _ := newTestStore(t, c, false)
	ctx := context.Background()
	calls := 0
	boom := errors.New("boom")

	_, err := store.GetOrFetch(ctx, "vcns", 0, countingFetch(&calls, "previous"))
	require.NoError(t, err)

	c.now = c.now.Add(2 * DefaultTTL)

	_, err = store.GetOrFetch(ctx, "vcns", 0, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	stale, written, err := store.ReadStale("vcns")
	require.NoError(t, err)
	assert.Equal(t, "previous", string(stale))
	assert.True(t, written.Before(c.now))
}

func TestKeysAreSanitisedAndDistinct(t *testing.T) {
	store := New(Config{Dir: "cache"})

	withAD := Key("hosts", "ocid1.compartment.oc1..x", "Uocm:PHX-AD-1")
	withoutAD := Key("hosts", "ocid1.compartment.oc1..x", "")

	assert.NotEqual(t, store.Path(withAD), store.Path(withoutAD))
	assert.Equal(t,
		filepath.Join("cache", "hosts__ocid1.compartment.oc1..x__Uocm_PHX-AD-1.json"),
		store.Path(withAD),
	)
}

func TestInvalidateAndClear(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, _ := newTestStore(t, c, false)
	ctx := context.Background()
	calls := 0

	for _, key := range []string{"a", "b", "c"} {
		_, err := store.GetOrFetch(ctx, key, 0, countingFetch(&calls, key))
		require.NoError(t, err)
	}

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("keep"), 0o600))

	require.NoError(t, store.Invalidate("a"))
	require.NoError(t, store.Invalidate("a"))

	_, _, err := store.ReadStale("a")
	require.ErrorIs(t, err, ErrNotCached)

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.FileExists(t, filepath.Join(store.Dir(), "notes.txt"))
}

func TestClearMissingDirectory(t *testing.T) {
	store := New(Config{Dir: filepath.Join(t.TempDir(), "absent")})

	removed, err := store.Clear()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestTypedFetch(t *testing.T) {
	type record struct {
		ID string `json:"id"`
	}

	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, _ := newTestStore(t, c, false)
	ctx := context.Background()
	calls := 0

	fetch := func(context.Context) ([]record, error) {
		calls++

		return []record{{ID: "one"}}, nil
	}

	first, err := Fetch(ctx, store, "records", fetch)
	require.NoError(t, err)

	second, err := Fetch(ctx, store, "records", fetch)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	uncached, err := Fetch[[]record](ctx, nil, "records", fetch)
	require.NoError(t, err)
	assert.Equal(t, first, uncached)
	assert.Equal(t, 2, calls)
}

func TestFetchReplacesUndecodableEntry(t *testing.T) {
	c := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, observer := newTestStore(t, c, false)
	ctx := context.Background()
	calls := 0

	path := store.Path("records")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"id":`), 0o644))
	require.NoError(t, os.Chtimes(path, c.now, c.now))

	fetch := func(context.Context) ([]string, error) {
		calls++

		return []string{"one"}, nil
	}

	value, err := Fetch(ctx, store, "records", fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, value)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, observer.hits)
	assert.Equal(t, 1, observer.misses)

	again, err := Fetch(ctx, store, "records", fetch)
	require.NoError(t, err)
	assert.Equal(t, value, again)
	assert.Equal(t, 1, calls)
}
