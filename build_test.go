package cuckoodex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cuckoodex/internal/page"
	"github.com/hupe1980/cuckoodex/testutil"
)

func buildRows(n int) []Row {
	rows := make([]Row, n)
	for k := range rows {
		rows[k] = Row{ID: RowID(k + 1), Values: []Value{testutil.Key(uint64(k + 1))}}
	}

	return rows
}

func TestBuildPacksPagesDensely(t *testing.T) {
	idx, _ := createIndex(t)
	ctx := context.Background()

	// 3 full pages plus one remainder.
	n := 3*page.MaxTuples + 1
	res, err := idx.Build(ctx, NewSliceSource(buildRows(n)))
	require.NoError(t, err)
	assert.Equal(t, int64(n), res.Rows)
	assert.Equal(t, int64(n), res.Tuples)

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(n), stats.NumTuples)
	assert.Equal(t, uint32(5), stats.NumPages) // meta + 4 data pages
}

func TestBuildScanRoundtrip(t *testing.T) {
	idx, _ := createIndex(t)
	ctx := context.Background()

	_, err := idx.Build(ctx, NewSliceSource(buildRows(5000)))
	require.NoError(t, err)

	sc := idx.NewScanner()
	for row := uint64(1); row <= 5000; row += 113 {
		sc.Rescan([]Value{testutil.Key(row)})
		bm, _, err := sc.Bitmap(ctx)
		require.NoError(t, err)
		assert.True(t, bm.Contains(row), "row %d missing after build", row)
	}
}

func TestBuildRejectsNonEmptyIndex(t *testing.T) {
	idx, _ := createIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Insert(ctx, 1, []Value{testutil.Key(1)}))

	_, err := idx.Build(ctx, NewSliceSource(buildRows(10)))
	require.ErrorIs(t, err, ErrIndexNotEmpty)
}

func TestBuildEmptySource(t *testing.T) {
	idx, _ := createIndex(t)

	res, err := idx.Build(context.Background(), NewSliceSource(nil))
	require.NoError(t, err)
	assert.Zero(t, res.Rows)

	stats, err := idx.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.NumTuples)
}

func TestBuildThenInsert(t *testing.T) {
	idx, _ := createIndex(t)
	ctx := context.Background()

	_, err := idx.Build(ctx, NewSliceSource(buildRows(page.MaxTuples)))
	require.NoError(t, err)

	// Built pages are full, so the insert spills to a new page.
	require.NoError(t, idx.Insert(ctx, 99999, []Value{testutil.Key(99999)}))

	sc := idx.NewScanner()
	sc.Rescan([]Value{testutil.Key(99999)})
	bm, _, err := sc.Bitmap(ctx)
	require.NoError(t, err)
	assert.True(t, bm.Contains(99999))
}
