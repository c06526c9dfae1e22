package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapkeeper/snapkeeper/internal/common"
	"github.com/snapkeeper/snapkeeper/internal/models"
)

func newRecord(t *testing.T, userID, filename string, tags ...string) *models.PhotoRecord {
	t.Helper()
	r, err := models.NewPhotoRecord(userID, filename, tags, time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return r
}

func newFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	return s, path
}

func TestFileStore_UpsertAndGet(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	r := newRecord(t, "u1", "a.png", "Person")
	require.NoError(t, s.Upsert(ctx, r))

	got, err := s.Get(ctx, "u1/a.png")
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestFileStore_GetMissingIsNotFound(t *testing.T) {
	s, _ := newFileStore(t)

	_, err := s.Get(context.Background(), "u1/absent.png")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFileStore_UpsertIdempotence(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png", "Person")))
	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png", "Dog", "Park")))

	all, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "second ingest of the same id must overwrite")
	assert.Equal(t, []string{"Dog", "Park"}, all[0].Tags)
}

func TestFileStore_ScanPreservesInsertionOrder(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", fmt.Sprintf("p%d.png", i))))
	}
	// Overwriting p1 must not move it to the end.
	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "p1.png", "Updated")))

	all, err := s.Scan(ctx)
	require.NoError(t, err)

	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"u1/p0.png", "u1/p1.png", "u1/p2.png", "u1/p3.png", "u1/p4.png"}, ids)
	assert.Equal(t, []string{"Updated"}, all[1].Tags)
}

func TestFileStore_ScanIsSnapshotNotLiveView(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png")))

	snapshot, err := s.Scan(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "b.png")))
	assert.Len(t, snapshot, 1)
}

func TestFileStore_DurabilityRoundTrip(t *testing.T) {
	s, path := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png", "Person", "Indoor")))
	require.NoError(t, s.Upsert(ctx, newRecord(t, "u2", "b.png", "Dog")))
	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png", "Person", "Outdoor")))

	want, err := s.Scan(ctx)
	require.NoError(t, err)

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)

	got, err := reloaded.Scan(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFileStore_CorruptSnapshotIsPersistenceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o660))

	_, err := NewFileStore(path)
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestFileStore_NullSnapshotEntryIsPersistenceError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("[null]"), 0o660))

	_, err := NewFileStore(path)
	assert.ErrorIs(t, err, common.ErrPersistence)
}

func TestFileStore_FailedUpsertLeavesStoreUnchanged(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	require.NoError(t, os.MkdirAll(dir, 0o770))
	path := filepath.Join(dir, "metadata.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png", "Person")))

	// Removing the directory makes the next snapshot write fail.
	require.NoError(t, os.RemoveAll(dir))

	err = s.Upsert(ctx, newRecord(t, "u1", "b.png", "Dog"))
	require.ErrorIs(t, err, common.ErrPersistence)

	// The record that failed to persist must not be observable.
	_, err = s.Get(ctx, "u1/b.png")
	assert.ErrorIs(t, err, common.ErrNotFound)

	all, err := s.Scan(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "u1/a.png", all[0].ID)

	// A later successful Upsert must not resurrect it in the snapshot.
	require.NoError(t, os.MkdirAll(dir, 0o770))
	require.NoError(t, s.Upsert(ctx, newRecord(t, "u2", "c.png", "Cat")))

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	_, err = reloaded.Get(ctx, "u1/b.png")
	assert.ErrorIs(t, err, common.ErrNotFound)

	persisted, err := reloaded.Scan(ctx)
	require.NoError(t, err)
	var ids []string
	for _, r := range persisted {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"u1/a.png", "u2/c.png"}, ids)
}

func TestFileStore_FailedOverwriteKeepsPriorVersion(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	require.NoError(t, os.MkdirAll(dir, 0o770))
	path := filepath.Join(dir, "metadata.json")

	s, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png", "Person")))

	require.NoError(t, os.RemoveAll(dir))

	err = s.Upsert(ctx, newRecord(t, "u1", "a.png", "Dog"))
	require.ErrorIs(t, err, common.ErrPersistence)

	got, err := s.Get(ctx, "u1/a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, got.Tags)
}

func TestFileStore_MissingSnapshotStartsEmpty(t *testing.T) {
	s, _ := newFileStore(t)

	all, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStore_ReturnedRecordsAreIsolated(t *testing.T) {
	s, _ := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, newRecord(t, "u1", "a.png", "Person")))

	got, err := s.Get(ctx, "u1/a.png")
	require.NoError(t, err)
	got.Tags[0] = "Mutated"

	again, err := s.Get(ctx, "u1/a.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"Person"}, again.Tags)
}

func TestFileStore_ConcurrentUpsertsAreSerialized(t *testing.T) {
	s, path := newFileStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_ = s.Upsert(ctx, newRecord(t, "u1", fmt.Sprintf("p%d.png", i)))
		}(i)
	}
	wg.Wait()

	all, err := s.Scan(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n, "no lost updates")

	reloaded, err := NewFileStore(path)
	require.NoError(t, err)
	persisted, err := reloaded.Scan(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, n)
}
