// Package page defines the fixed-size on-disk page layout used by the
// cuckoo fingerprint index: a small header, a dense tuple array, and a
// trailing opaque area holding the live-tuple count and page flags.
//
// All fields are reached through bounds-checked views instead of raw
// offset arithmetic, so a corrupt length surfaces as an error at view
// construction rather than as an out-of-range slice access later.
//
// Layout:
//
//	┌──────────┬───────────────────────────────┬──────────┬──────────┐
//	│ header   │ tuple array (dense)           │ free     │ opaque   │
//	│ 8 bytes  │ count × 12 bytes              │ space    │ 8 bytes  │
//	└──────────┴───────────────────────────────┴──────────┴──────────┘
//
// Header: lower u16 (end of tuple array), upper u16 (start of opaque),
// checksum u32. Opaque: count u16, flags u16, padding u16, page id u16.
package page

import (
	"encoding/binary"
	"fmt"
)

const (
	// Size is the fixed page size in bytes.
	Size = 8192

	// HeaderSize is the page header length.
	HeaderSize = 8

	// OpaqueSize is the trailing opaque area length.
	OpaqueSize = 8

	// TupleSize is the encoded size of one fingerprint tuple:
	// row locator u64 + fingerprint u32.
	TupleSize = 12

	// ID identifies cuckoo index pages for inspection tools.
	ID = 0xFF84
)

// Page flags stored in the opaque area.
const (
	// FlagMeta marks the metapage.
	FlagMeta uint16 = 1 << 0

	// FlagDeleted marks a reusable page whose content is stale.
	// Deleted pages keep their bytes; reuse re-initializes them.
	FlagDeleted uint16 = 1 << 1
)

// MaxTuples is the number of tuples a data page can hold.
const MaxTuples = (Size - HeaderSize - OpaqueSize) / TupleSize

// Header field offsets.
const (
	offLower    = 0
	offUpper    = 2
	offChecksum = 4
)

// Opaque field offsets, relative to the start of the opaque area.
const (
	offCount = 0
	offFlags = 2
	offID    = 6
)

// Tuple is one index entry: an opaque row locator plus the cuckoo
// fingerprint derived from the indexed column values.
type Tuple struct {
	Row         uint64
	Fingerprint uint32
}

// View is a bounds-checked window over one page image.
type View struct {
	buf []byte
}

// NewView wraps a page image. The buffer must be exactly Size bytes.
func NewView(buf []byte) (View, error) {
	if len(buf) != Size {
		return View{}, fmt.Errorf("page: bad page image size %d, want %d", len(buf), Size)
	}
	return View{buf: buf}, nil
}

// Init formats the page as an empty cuckoo page with the given flags.
func Init(buf []byte, flags uint16) (View, error) {
	v, err := NewView(buf)
	if err != nil {
		return View{}, err
	}
	clear(v.buf)
	binary.LittleEndian.PutUint16(v.buf[offLower:], HeaderSize)
	binary.LittleEndian.PutUint16(v.buf[offUpper:], Size-OpaqueSize)
	o := v.opaque()
	binary.LittleEndian.PutUint16(o[offFlags:], flags)
	binary.LittleEndian.PutUint16(o[offID:], ID)
	return v, nil
}

func (v View) opaque() []byte {
	return v.buf[Size-OpaqueSize:]
}

// Bytes returns the underlying page image.
func (v View) Bytes() []byte { return v.buf }

// IsNew reports whether the page has never been initialized
// (an all-zero image straight from file extension).
func (v View) IsNew() bool {
	return binary.LittleEndian.Uint16(v.opaque()[offID:]) == 0
}

// Count returns the number of live tuples on the page.
func (v View) Count() int {
	return int(binary.LittleEndian.Uint16(v.opaque()[offCount:]))
}

func (v View) setCount(n int) {
	binary.LittleEndian.PutUint16(v.opaque()[offCount:], uint16(n)) //nolint:gosec // n <= MaxTuples
	binary.LittleEndian.PutUint16(v.buf[offLower:], uint16(HeaderSize+n*TupleSize))
}

// Flags returns the page flags.
func (v View) Flags() uint16 {
	return binary.LittleEndian.Uint16(v.opaque()[offFlags:])
}

// IsMeta reports whether the page is the metapage.
func (v View) IsMeta() bool { return v.Flags()&FlagMeta != 0 }

// IsDeleted reports whether the page is flagged reusable.
func (v View) IsDeleted() bool { return v.Flags()&FlagDeleted != 0 }

// SetDeleted flags the page as deleted. Content is left as-is; the
// next reuse must re-run Init.
func (v View) SetDeleted() {
	o := v.opaque()
	binary.LittleEndian.PutUint16(o[offFlags:], v.Flags()|FlagDeleted)
}

// Checksum returns the stored page checksum.
func (v View) Checksum() uint32 {
	return binary.LittleEndian.Uint32(v.buf[offChecksum:])
}

// SetChecksum stores the page checksum.
func (v View) SetChecksum(sum uint32) {
	binary.LittleEndian.PutUint32(v.buf[offChecksum:], sum)
}

// FreeSpace returns the number of unused bytes between the tuple array
// and the opaque area.
func (v View) FreeSpace() int {
	return Size - HeaderSize - OpaqueSize - v.Count()*TupleSize
}

// Tuple returns the i-th tuple. ok is false when i is out of range.
func (v View) Tuple(i int) (t Tuple, ok bool) {
	if i < 0 || i >= v.Count() {
		return Tuple{}, false
	}
	off := HeaderSize + i*TupleSize
	t.Row = binary.LittleEndian.Uint64(v.buf[off:])
	t.Fingerprint = binary.LittleEndian.Uint32(v.buf[off+8:])
	return t, true
}

// AppendTuple appends one tuple to the dense array. It reports false,
// leaving the page unchanged, when no free space remains.
func (v View) AppendTuple(t Tuple) bool {
	n := v.Count()
	if v.FreeSpace() < TupleSize {
		return false
	}
	off := HeaderSize + n*TupleSize
	binary.LittleEndian.PutUint64(v.buf[off:], t.Row)
	binary.LittleEndian.PutUint32(v.buf[off+8:], t.Fingerprint)
	v.setCount(n + 1)
	return true
}

// WriteTuple overwrites slot i. Used by compaction to slide survivors
// toward the front of the page. i must be < MaxTuples.
func (v View) WriteTuple(i int, t Tuple) error {
	if i < 0 || i >= MaxTuples {
		return fmt.Errorf("page: tuple slot %d out of range", i)
	}
	off := HeaderSize + i*TupleSize
	binary.LittleEndian.PutUint64(v.buf[off:], t.Row)
	binary.LittleEndian.PutUint32(v.buf[off+8:], t.Fingerprint)
	return nil
}

// Truncate shrinks the tuple array to n entries. Bytes past the new
// end are left in place; they are unreachable through the view.
func (v View) Truncate(n int) error {
	if n < 0 || n > v.Count() {
		return fmt.Errorf("page: truncate to %d with count %d", n, v.Count())
	}
	v.setCount(n)
	return nil
}
