package cuckoodex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cuckoodex/internal/page"
	"github.com/hupe1980/cuckoodex/testutil"
)

func keyColumns() []Column {
	return []Column{{Name: "k"}}
}

func createIndex(t *testing.T, optFns ...Option) (*Index, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "idx.ck")
	idx, err := Create(path, keyColumns(), optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return idx, path
}

func TestCreateAndReopen(t *testing.T) {
	idx, path := createIndex(t, WithBitsPerTag(16), WithMaxKicks(100))

	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, 7, []Value{testutil.Key(7)}))
	require.NoError(t, idx.Close())

	idx2, err := Open(path, keyColumns())
	require.NoError(t, err)
	defer idx2.Close()

	stats, err := idx2.Stats()
	require.NoError(t, err)
	assert.Equal(t, 16, stats.BitsPerTag)
	assert.Equal(t, DefaultTagsPerBucket, stats.TagsPerBucket)
	assert.Equal(t, 100, stats.MaxKicks)
	assert.Equal(t, int64(1), stats.NumTuples)

	sc := idx2.NewScanner()
	sc.Rescan([]Value{testutil.Key(7)})
	bm, _, err := sc.Bitmap(ctx)
	require.NoError(t, err)
	assert.True(t, bm.Contains(7))
}

func TestCreateRejectsExistingData(t *testing.T) {
	idx, path := createIndex(t)
	require.NoError(t, idx.Close())

	_, err := Create(path, keyColumns())
	require.ErrorIs(t, err, ErrIndexNotEmpty)
}

func TestOpenRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-index")
	require.NoError(t, os.WriteFile(path, make([]byte, page.Size), 0o644))

	_, err := Open(path, keyColumns())
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestOpenRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(path, keyColumns())
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestPersistedSettingsWin(t *testing.T) {
	idx, path := createIndex(t, WithBitsPerTag(8))
	require.NoError(t, idx.Close())

	// Conflicting options passed at open time are ignored.
	idx2, err := Open(path, keyColumns(), WithBitsPerTag(20))
	require.NoError(t, err)
	defer idx2.Close()

	stats, err := idx2.Stats()
	require.NoError(t, err)
	assert.Equal(t, 8, stats.BitsPerTag)
}

func TestNoColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.ck")

	_, err := Create(path, nil)
	require.ErrorIs(t, err, ErrNoColumns)

	_, err = Open(path, nil)
	require.ErrorIs(t, err, ErrNoColumns)
}

func TestClosedIndexRejectsOperations(t *testing.T) {
	idx, _ := createIndex(t)
	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close()) // idempotent

	ctx := context.Background()

	err := idx.Insert(ctx, 1, []Value{testutil.Key(1)})
	require.ErrorIs(t, err, ErrClosed)

	_, err = idx.Build(ctx, NewSliceSource(nil))
	require.ErrorIs(t, err, ErrClosed)

	sc := idx.NewScanner()
	sc.Rescan([]Value{testutil.Key(1)})
	_, _, err = sc.Bitmap(ctx)
	require.ErrorIs(t, err, ErrClosed)

	_, err = idx.BulkDelete(ctx, func(RowID) bool { return false })
	require.ErrorIs(t, err, ErrClosed)

	_, err = idx.Stats()
	require.ErrorIs(t, err, ErrClosed)
}

func TestColumnMismatch(t *testing.T) {
	idx, _ := createIndex(t)

	err := idx.Insert(context.Background(), 1, []Value{testutil.Key(1), testutil.Key(2)})
	var cm *ErrColumnMismatch
	require.ErrorAs(t, err, &cm)
	assert.Equal(t, 1, cm.Expected)
	assert.Equal(t, 2, cm.Actual)
}

func TestMetricsRecorded(t *testing.T) {
	mc := &BasicMetricsCollector{}
	idx, _ := createIndex(t, WithMetricsCollector(mc))

	ctx := context.Background()
	require.NoError(t, idx.Insert(ctx, 1, []Value{testutil.Key(1)}))

	sc := idx.NewScanner()
	sc.Rescan([]Value{testutil.Key(1)})
	_, _, err := sc.Bitmap(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1), mc.InsertCount.Load())
	assert.Equal(t, int64(1), mc.ScanCount.Load())
	assert.Zero(t, mc.InsertErrors.Load())
}
