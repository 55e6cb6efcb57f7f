// Package local_test tests the filesystem stores.
package local_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
	"github.com/JakeFAU/archive-harvester/internal/storage/local"
)

func strPtr(s string) *string { return &s }

func TestNewRecordStore(t *testing.T) {
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "data")
		store, err := local.NewRecordStore(local.Config{Dir: dir})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, local.DefaultRecordsFile), store.Path())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingDir", func(t *testing.T) {
		_, err := local.NewRecordStore(local.Config{})
		assert.Error(t, err)
	})

	t.Run("DirIsAFile", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "plain")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.NewRecordStore(local.Config{Dir: file})
		assert.Error(t, err)
	})

	t.Run("PathTraversal", func(t *testing.T) {
		_, err := local.NewRecordStore(local.Config{Dir: t.TempDir(), RecordsFile: "../escape.json"})
		assert.ErrorContains(t, err, "path traversal")
	})

	t.Run("NotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("permission bits are not enforced for root")
		}
		dir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(dir, 0o500))
		t.Cleanup(func() {
			// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
			_ = os.Chmod(dir, 0o700)
		})
		_, err := local.NewRecordStore(local.Config{Dir: dir})
		assert.Error(t, err)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, local.DefaultRecordsFile), []byte("{not json"), 0o600))
		_, err := local.NewRecordStore(local.Config{Dir: dir})
		assert.Error(t, err)
	})
}

func TestRecordStoreAppendAndReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := local.NewRecordStore(local.Config{Dir: dir})
	require.NoError(t, err)

	_, ok, err := store.MaxID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	first := []crawler.FieldRecord{
		{ID: 1, URL: "u1", FetchedAt: "2024-01-01 00:00:00", Title: strPtr("Carta")},
		{ID: 2, URL: "u2", FetchedAt: "2024-01-01 00:00:03", Error: strPtr("status 500")},
	}
	require.NoError(t, store.Append(ctx, first))
	require.NoError(t, store.Append(ctx, []crawler.FieldRecord{{ID: 3, URL: "u3", FetchedAt: "2024-01-01 00:00:06"}}))
	require.NoError(t, store.Append(ctx, nil))

	reopened, err := local.NewRecordStore(local.Config{Dir: dir})
	require.NoError(t, err)

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	maxID, ok, err := reopened.MaxID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, maxID)

	records, err := reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Carta", *records[0].Title)
	assert.True(t, records[1].Failed())

	raw, err := os.ReadFile(filepath.Join(dir, local.DefaultRecordsFile))
	require.NoError(t, err)
	var generic []map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	require.Len(t, generic, 3)
	assert.Contains(t, generic[0], "content")
	assert.Nil(t, generic[0]["content"])
	assert.NotContains(t, generic[0], "error")
	assert.Equal(t, "status 500", generic[1]["error"])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-", "temporary file left behind")
	}
}

func TestRecordStoreAppendCanceled(t *testing.T) {
	t.Parallel()
	store, err := local.NewRecordStore(local.Config{Dir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = store.Append(ctx, []crawler.FieldRecord{{ID: 1}})
	require.ErrorIs(t, err, context.Canceled)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecordStoreListIsACopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, err := local.NewRecordStore(local.Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, []crawler.FieldRecord{{ID: 1, URL: "u1"}}))

	records, err := store.List(ctx)
	require.NoError(t, err)
	records[0].URL = "changed"

	again, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", again[0].URL)
}

func TestCursorStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	store, err := local.NewCursorStore(local.Config{Dir: dir, StateFile: "cursor.json"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cursor.json"), store.Path())

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, crawler.ErrStateNotFound)

	want := crawler.CrawlState{LastID: 6, TotalCollected: 6, RoundCount: 3}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_id":6,"total_collected":6,"round_count":3}`, string(raw))
}

func TestCursorStoreCorrupt(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, local.DefaultStateFile), []byte("["), 0o600))

	store, err := local.NewCursorStore(local.Config{Dir: dir})
	require.NoError(t, err)
	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, crawler.ErrStateNotFound)
}
