package dedup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, path string) *Store {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "posted.json")
	}
	return NewStore(Config{Path: path, LockTimeout: time.Second}, zerolog.Nop())
}

func TestStore_MissingFileIsEmpty(t *testing.T) {
	s := newTestStore(t, "")

	found, err := s.Contains(context.Background(), "1:abc")
	require.NoError(t, err)
	assert.False(t, found)

	entries, err := s.Entries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_EmptyFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	require.NoError(t, os.WriteFile(path, nil, 0644))
	s := newTestStore(t, path)

	found, err := s.Contains(context.Background(), "1:abc")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_RecordThenContains(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "42:sig"))

	found, err := s.Contains(ctx, "42:sig")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Contains(ctx, "42:other")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_RecordIsIdempotent(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "a"))
	require.NoError(t, s.Record(ctx, "b"))
	require.NoError(t, s.Record(ctx, "a"))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
}

func TestStore_BoundedFIFO(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	for i := 0; i < 250; i++ {
		require.NoError(t, s.Record(ctx, fmt.Sprintf("key-%03d", i)))
	}

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, DefaultCapacity)

	for i, e := range entries {
		assert.Equal(t, fmt.Sprintf("key-%03d", i+50), e.Key)
	}

	found, err := s.Contains(ctx, "key-049")
	require.NoError(t, err)
	assert.False(t, found, "oldest entries must be evicted")
}

func TestStore_EvictionIgnoresTimestamps(t *testing.T) {
	s := NewStore(Config{Path: filepath.Join(t.TempDir(), "posted.json"), Capacity: 2}, zerolog.Nop())
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stamps := []time.Time{base.Add(time.Hour), base, base.Add(-time.Hour)}
	for i, key := range []string{"first", "second", "third"} {
		ts := stamps[i]
		s.now = func() time.Time { return ts }
		require.NoError(t, s.Record(ctx, key))
	}

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Key)
	assert.Equal(t, "third", entries[1].Key)
}

func TestStore_CorruptFileRecovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	s := newTestStore(t, path)
	ctx := context.Background()

	found, err := s.Contains(ctx, "1:abc")
	require.NoError(t, err)
	assert.False(t, found)

	added, err := s.Reserve(ctx, "1:abc")
	require.NoError(t, err)
	assert.True(t, added)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries), "store must be rewritten as valid JSON")
	require.Len(t, entries, 1)
	assert.Equal(t, StatusPending, entries[0].Status)
}

func TestStore_DuplicateKeysOnDiskCollapse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	raw := `[{"key":"a","recorded_at":"2024-01-01T00:00:00Z"},{"key":"a","recorded_at":"2024-01-02T00:00:00Z"},{"key":"b","recorded_at":"2024-01-03T00:00:00Z"}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0644))
	s := newTestStore(t, path)

	entries, err := s.Entries(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, 1, entries[0].RecordedAt.Day())
}

func TestStore_ReservePromotedByRecord(t *testing.T) {
	s := newTestStore(t, "")
	ctx := context.Background()

	added, err := s.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Reserve(ctx, "k")
	require.NoError(t, err)
	assert.False(t, added)

	require.NoError(t, s.Record(ctx, "k"))
	require.NoError(t, s.SetStatus(ctx, "k", StatusSent))

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, StatusSent, entries[0].Status)
}

func TestStore_SetStatusUnknownKey(t *testing.T) {
	s := newTestStore(t, "")
	err := s.SetStatus(context.Background(), "missing", StatusSent)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestStore_ConcurrentReserveAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")
	ctx := context.Background()

	const racers = 8
	results := make([]bool, racers)
	errs := make([]error, racers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Separate instances open separate lock descriptors, the same
			// way separate processes would.
			s := NewStore(Config{Path: path, LockTimeout: 5 * time.Second}, zerolog.Nop())
			<-start
			results[i], errs[i] = s.Reserve(ctx, "55:same")
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i] {
			winners++
		}
	}
	assert.Equal(t, 1, winners)

	entries, err := newTestStore(t, path).Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_LockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posted.json")

	holder := flock.New(path + ".lock")
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	s := NewStore(Config{Path: path, LockTimeout: 100 * time.Millisecond}, zerolog.Nop())
	start := time.Now()
	_, err := s.Reserve(context.Background(), "k")

	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "store must not be written without the lock")
}

func TestStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t, filepath.Join(dir, "posted.json"))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Record(context.Background(), fmt.Sprintf("k%d", i)))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}
