package cuckoodex

import (
	"github.com/cespare/xxhash/v2"
)

// RowID is an opaque row locator supplied by the caller. The index
// stores and returns it without interpreting it.
type RowID uint64

// Value is one indexed column value. A nil Value is SQL NULL: it does
// not contribute to the fingerprint, and a NULL scan key matches
// nothing.
type Value []byte

// HashFunc hashes one column value. Implementations must be pure:
// equal input bytes produce equal hashes across processes.
type HashFunc func(value []byte) uint32

// Column describes one indexed column.
type Column struct {
	// Name identifies the column, for diagnostics only.
	Name string

	// Hash overrides the default value hash. Nil uses xxhash.
	Hash HashFunc

	// Collation is folded into the default hash so values that are
	// equal under the collation can share a normalized encoding per
	// collation without colliding across collations. Ignored when
	// Hash is set.
	Collation string
}

func (c Column) hashValue(v Value) uint32 {
	if c.Hash != nil {
		return c.Hash(v)
	}

	d := xxhash.New()
	if c.Collation != "" {
		_, _ = d.WriteString(c.Collation)
		_, _ = d.Write([]byte{0})
	}
	_, _ = d.Write(v)
	h := d.Sum64()

	return uint32(h ^ h>>32) //nolint:gosec // intentional fold to 32 bits
}

// fingerprinter derives tag fingerprints from column values.
type fingerprinter struct {
	columns []Column
	tagMask uint32
}

func newFingerprinter(columns []Column, bitsPerTag uint32) fingerprinter {
	return fingerprinter{
		columns: columns,
		tagMask: uint32((uint64(1) << bitsPerTag) - 1), //nolint:gosec // bitsPerTag <= 32
	}
}

// compute combines the per-column hashes into a fingerprint. NULL
// values are skipped; the result is masked to the tag width and never
// zero, so stored fingerprints are distinguishable from empty slots.
func (f fingerprinter) compute(values []Value) uint32 {
	var h uint32
	for i, c := range f.columns {
		if values[i] == nil {
			continue
		}

		h ^= c.hashValue(values[i])
		h *= 0x5bd1e995 // MurmurHash2 mixing constant
		h ^= h >> 15
	}

	fp := h & f.tagMask
	if fp == 0 {
		fp = 1
	}

	return fp
}
