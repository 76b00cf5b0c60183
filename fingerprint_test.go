package cuckoodex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cuckoodex/testutil"
)

func TestFingerprintDeterministic(t *testing.T) {
	fp := newFingerprinter([]Column{{Name: "a"}, {Name: "b"}}, 12)

	values := []Value{[]byte("hello"), []byte("world")}
	first := fp.compute(values)
	for k := 0; k < 10; k++ {
		assert.Equal(t, first, fp.compute(values))
	}
}

func TestFingerprintWithinTagWidth(t *testing.T) {
	rng := testutil.NewRNG(1)

	for _, bits := range []uint32{4, 8, 12, 16, 32} {
		fp := newFingerprinter([]Column{{Name: "k"}}, bits)
		mask := uint64(1)<<bits - 1
		for k := 0; k < 1000; k++ {
			got := fp.compute([]Value{testutil.Key(rng.Uint64())})
			assert.NotZero(t, got)
			assert.LessOrEqual(t, uint64(got), mask)
		}
	}
}

func TestFingerprintSkipsNulls(t *testing.T) {
	fp := newFingerprinter([]Column{{Name: "a"}, {Name: "b"}}, 12)

	// A NULL column contributes nothing, so the result matches an
	// index over the remaining column alone.
	single := newFingerprinter([]Column{{Name: "a"}}, 12)
	assert.Equal(t, single.compute([]Value{[]byte("x")}), fp.compute([]Value{[]byte("x"), nil}))

	// All-NULL rows collapse to the minimal fingerprint.
	assert.Equal(t, uint32(1), fp.compute([]Value{nil, nil}))
}

func TestFingerprintCollationChangesHash(t *testing.T) {
	plain := newFingerprinter([]Column{{Name: "k"}}, 32)
	collated := newFingerprinter([]Column{{Name: "k", Collation: "de_DE"}}, 32)

	v := []Value{[]byte("strasse")}
	assert.NotEqual(t, plain.compute(v), collated.compute(v))
}

func TestFingerprintCustomHash(t *testing.T) {
	calls := 0
	fp := newFingerprinter([]Column{{
		Name: "k",
		Hash: func(value []byte) uint32 {
			calls++
			return uint32(len(value))
		},
	}}, 12)

	got := fp.compute([]Value{[]byte("abc")})
	require.Equal(t, 1, calls)

	// 3 mixed by the murmur constant and masked.
	h := uint32(3)
	h *= 0x5bd1e995
	h ^= h >> 15
	want := h & 0xFFF
	if want == 0 {
		want = 1
	}
	assert.Equal(t, want, got)
}
