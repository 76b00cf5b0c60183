// Package arena provides operation-scoped scratch memory.
//
// Index operations draft page images and fingerprint scratch in an
// arena acquired at operation entry and released on every exit path.
// Allocation is a bump of an offset; Release returns the whole arena
// to a pool, so per-operation garbage stays off the heap profile.
package arena

import "sync"

// chunkSize fits a handful of page images plus small scratch.
const chunkSize = 64 << 10

// Arena is a bump allocator over pooled chunks. Not safe for
// concurrent use; each operation owns its own arena.
type Arena struct {
	chunks [][]byte // bump chunks, last one is current
	big    [][]byte // oversized one-off allocations, dropped on Release
	off    int
}

var pool = sync.Pool{
	New: func() any {
		return &Arena{chunks: [][]byte{make([]byte, chunkSize)}}
	},
}

// Acquire returns an empty arena from the pool.
func Acquire() *Arena {
	return pool.Get().(*Arena)
}

// Release resets the arena and returns it to the pool. The caller
// must not touch previously allocated slices afterwards.
func (a *Arena) Release() {
	a.chunks = a.chunks[:1]
	a.big = nil
	a.off = 0
	pool.Put(a)
}

// Alloc returns a zeroed slice of n bytes backed by the arena.
func (a *Arena) Alloc(n int) []byte {
	if n > chunkSize {
		b := make([]byte, n)
		a.big = append(a.big, b)
		return b
	}
	cur := a.chunks[len(a.chunks)-1]
	if a.off+n > len(cur) {
		cur = make([]byte, chunkSize)
		a.chunks = append(a.chunks, cur)
		a.off = 0
	}
	b := cur[a.off : a.off+n : a.off+n]
	a.off += n
	clear(b)
	return b
}
