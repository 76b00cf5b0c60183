package cuckoodex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateFalsePositiveRate(t *testing.T) {
	tests := []struct {
		name string
		bits int
		tags int
		want float64
	}{
		{name: "defaults", bits: 12, tags: 4, want: 8.0 / 4096},
		{name: "wide tags", bits: 16, tags: 4, want: 8.0 / 65536},
		{name: "narrow tags clamp high", bits: 2, tags: 4, want: 1.0},
		{name: "clamp low", bits: 32, tags: 2, want: 0.0001},
		{name: "bits floor", bits: 0, tags: 1, want: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, EstimateFalsePositiveRate(tt.bits, tt.tags), 1e-12)
		})
	}
}

func TestCostHint(t *testing.T) {
	idx, _ := createIndex(t)

	_, err := idx.Build(context.Background(), NewSliceSource(buildRows(1000)))
	require.NoError(t, err)

	hint, err := idx.CostHint()
	require.NoError(t, err)
	assert.Equal(t, int64(1000), hint.NumTuples)
	assert.Equal(t, uint32(3), hint.NumPages)
	assert.InDelta(t, 8.0/4096, hint.Selectivity, 1e-12)
}
