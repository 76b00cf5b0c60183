package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaAlloc(t *testing.T) {
	a := Acquire()
	defer a.Release()

	b1 := a.Alloc(16)
	require.Len(t, b1, 16)

	b1[0] = 0xAA

	b2 := a.Alloc(16)
	require.Len(t, b2, 16)

	// Allocations must not alias.
	b2[0] = 0xBB
	assert.Equal(t, byte(0xAA), b1[0])
}

func TestArenaAllocZeroed(t *testing.T) {
	a := Acquire()
	b := a.Alloc(64)
	for i := range b {
		b[i] = 0xFF
	}
	a.Release()

	a = Acquire()
	defer a.Release()

	b = a.Alloc(64)
	for _, v := range b {
		require.Zero(t, v)
	}
}

func TestArenaChunkGrowth(t *testing.T) {
	a := Acquire()
	defer a.Release()

	// Force several chunk rollovers.
	for i := 0; i < 64; i++ {
		b := a.Alloc(8192)
		require.Len(t, b, 8192)
	}
}

func TestArenaOversized(t *testing.T) {
	a := Acquire()
	defer a.Release()

	b := a.Alloc(chunkSize + 1)
	require.Len(t, b, chunkSize+1)
}
