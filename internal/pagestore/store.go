// Package pagestore persists fixed-size index pages in a single file
// with a write-through in-memory cache, a per-page lock table, and
// atomic multi-page mutations through a checksummed redo journal.
//
// Concurrency contract: callers lock pages through the store before
// reading or drafting them, and hold at most two page locks at a time
// (metapage plus one data page). The store itself never takes page
// locks on behalf of a caller.
package pagestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/cuckoodex/internal/fs"
	"github.com/hupe1980/cuckoodex/internal/hash"
	"github.com/hupe1980/cuckoodex/internal/page"
)

// ErrChecksum reports a page image whose stored checksum does not
// match its content.
var ErrChecksum = errors.New("pagestore: page checksum mismatch")

// Store is a file-backed page store. All pages are cached in memory;
// the cache is write-through, so the file lags only by mutations whose
// journal has been synced but not yet applied.
type Store struct {
	fsys    fs.FileSystem
	file    fs.File
	path    string
	journal string

	mu     sync.RWMutex // guards cache and npages
	cache  map[uint32][]byte
	npages uint32

	lt lockTable

	freeMu sync.Mutex
	free   *roaring.Bitmap

	commitMu sync.Mutex // serializes journal commits
}

// Open opens (or creates) the page file at path, replaying a pending
// redo journal first. A nil fsys falls back to the local filesystem.
func Open(path string, fsys fs.FileSystem) (*Store, error) {
	if fsys == nil {
		fsys = fs.Default
	}

	s := &Store{
		fsys:    fsys,
		path:    path,
		journal: path + ".journal",
		cache:   make(map[uint32][]byte),
		free:    roaring.New(),
	}

	if err := s.replayJournal(); err != nil {
		return nil, err
	}

	file, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pagestore: open %s: %w", path, err)
	}
	s.file = file

	if err := s.load(); err != nil {
		_ = file.Close()
		return nil, err
	}

	return s, nil
}

// load reads every page into the cache, verifying checksums.
func (s *Store) load() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("pagestore: stat: %w", err)
	}
	if info.Size()%page.Size != 0 {
		return fmt.Errorf("pagestore: file size %d not a page multiple", info.Size())
	}

	n := uint32(info.Size() / page.Size) //nolint:gosec // size bounded by page count
	for pageNo := uint32(0); pageNo < n; pageNo++ {
		img := make([]byte, page.Size)
		if _, err := s.file.ReadAt(img, int64(pageNo)*page.Size); err != nil {
			return fmt.Errorf("pagestore: read page %d: %w", pageNo, err)
		}
		v, err := page.NewView(img)
		if err != nil {
			return err
		}
		if !v.IsNew() && v.Checksum() != 0 && v.Checksum() != pageChecksum(img) {
			return fmt.Errorf("%w: page %d", ErrChecksum, pageNo)
		}
		s.cache[pageNo] = img
	}
	s.npages = n

	return nil
}

// NumPages returns the current page count, metapage included.
func (s *Store) NumPages() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.npages
}

// Read returns the cached image of pageNo. The caller must hold the
// page lock, must not modify the slice, and must not retain it past
// unlock; mutations go through Begin/Register instead.
func (s *Store) Read(pageNo uint32) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	img, ok := s.cache[pageNo]
	if !ok {
		return nil, fmt.Errorf("pagestore: page %d out of range", pageNo)
	}

	return img, nil
}

// Lock acquires the exclusive lock on pageNo.
func (s *Store) Lock(pageNo uint32) { s.lt.get(pageNo).Lock() }

// TryLock attempts the exclusive lock on pageNo without blocking.
func (s *Store) TryLock(pageNo uint32) bool { return s.lt.get(pageNo).TryLock() }

// Unlock releases the exclusive lock on pageNo.
func (s *Store) Unlock(pageNo uint32) { s.lt.get(pageNo).Unlock() }

// RLock acquires the shared lock on pageNo.
func (s *Store) RLock(pageNo uint32) { s.lt.get(pageNo).RLock() }

// RUnlock releases the shared lock on pageNo.
func (s *Store) RUnlock(pageNo uint32) { s.lt.get(pageNo).RUnlock() }

// RecordFree registers pageNo as a reuse candidate.
func (s *Store) RecordFree(pageNo uint32) {
	s.freeMu.Lock()
	defer s.freeMu.Unlock()

	s.free.Add(pageNo)
}

// TakeFree removes and returns a reuse candidate, if any.
func (s *Store) TakeFree() (uint32, bool) {
	s.freeMu.Lock()
	defer s.freeMu.Unlock()

	if s.free.IsEmpty() {
		return 0, false
	}
	pageNo := s.free.Minimum()
	s.free.Remove(pageNo)

	return pageNo, true
}

// FreeCount returns the number of registered reuse candidates.
func (s *Store) FreeCount() uint64 {
	s.freeMu.Lock()
	defer s.freeMu.Unlock()

	return s.free.GetCardinality()
}

// Allocate returns a usable page with its exclusive lock held. Reuse
// candidates are tried under a conditional lock first; a candidate
// that is contended or turns out to be live is skipped. When no
// candidate works the file is extended by one zeroed page.
func (s *Store) Allocate() (uint32, error) {
	for {
		pageNo, ok := s.TakeFree()
		if !ok {
			break
		}
		if !s.TryLock(pageNo) {
			continue
		}
		img, err := s.Read(pageNo)
		if err != nil {
			s.Unlock(pageNo)
			return 0, err
		}
		v, err := page.NewView(img)
		if err != nil {
			s.Unlock(pageNo)
			return 0, err
		}
		if v.IsNew() || v.IsDeleted() {
			return pageNo, nil
		}
		s.Unlock(pageNo)
	}

	return s.extend()
}

// extend appends one zeroed page and returns it exclusively locked.
func (s *Store) extend() (uint32, error) {
	s.mu.Lock()
	pageNo := s.npages
	img := make([]byte, page.Size)
	if _, err := s.file.WriteAt(img, int64(pageNo)*page.Size); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("pagestore: extend to page %d: %w", pageNo, err)
	}
	s.cache[pageNo] = img
	s.npages = pageNo + 1
	s.mu.Unlock()

	s.Lock(pageNo)

	return pageNo, nil
}

// Sync flushes the data file.
func (s *Store) Sync() error {
	return s.file.Sync()
}

// Close syncs and closes the data file.
func (s *Store) Close() error {
	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return err
	}

	return s.file.Close()
}

// pageChecksum computes the page checksum with the checksum field
// treated as zero.
func pageChecksum(img []byte) uint32 {
	var zeros [4]byte
	h := hash.NewCRC32C()
	_, _ = h.Write(img[:4])
	_, _ = h.Write(zeros[:])
	_, _ = h.Write(img[8:])

	return h.Sum32()
}

// lockTable hands out one RWMutex per page number, lazily.
type lockTable struct {
	mu    sync.Mutex
	locks map[uint32]*sync.RWMutex
}

func (lt *lockTable) get(pageNo uint32) *sync.RWMutex {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if lt.locks == nil {
		lt.locks = make(map[uint32]*sync.RWMutex)
	}
	l, ok := lt.locks[pageNo]
	if !ok {
		l = &sync.RWMutex{}
		lt.locks[pageNo] = l
	}

	return l
}

var _ io.Closer = (*Store)(nil)
