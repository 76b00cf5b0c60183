package pagestore

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/cuckoodex/internal/fs"
	"github.com/hupe1980/cuckoodex/internal/hash"
	"github.com/hupe1980/cuckoodex/internal/page"
)

func tempStore(t *testing.T, fsys fs.FileSystem) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "idx.ck")
	s, err := Open(path, fsys)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func commitTuple(t *testing.T, s *Store, pageNo uint32, tuple page.Tuple) {
	t.Helper()

	s.Lock(pageNo)
	defer s.Unlock(pageNo)

	m := s.Begin()
	draft, err := m.Register(pageNo)
	require.NoError(t, err)

	v, err := page.Init(draft, 0)
	require.NoError(t, err)
	require.True(t, v.AppendTuple(tuple))

	require.NoError(t, m.Commit())
}

func TestStoreOpenEmpty(t *testing.T) {
	s, _ := tempStore(t, nil)
	assert.Equal(t, uint32(0), s.NumPages())
}

func TestMutationCommitAndReload(t *testing.T) {
	s, path := tempStore(t, nil)

	pageNo, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(pageNo)
	require.Equal(t, uint32(0), pageNo)

	want := page.Tuple{Row: 42, Fingerprint: 0xABC}
	commitTuple(t, s, pageNo, want)
	require.NoError(t, s.Close())

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	img, err := s2.Read(pageNo)
	require.NoError(t, err)
	v, err := page.NewView(img)
	require.NoError(t, err)

	got, ok := v.Tuple(0)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestMutationAbortLeavesBytesUnchanged(t *testing.T) {
	s, _ := tempStore(t, nil)

	pageNo, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(pageNo)
	commitTuple(t, s, pageNo, page.Tuple{Row: 1, Fingerprint: 2})

	before, err := s.Read(pageNo)
	require.NoError(t, err)
	snapshot := make([]byte, len(before))
	copy(snapshot, before)

	s.Lock(pageNo)
	m := s.Begin()
	draft, err := m.Register(pageNo)
	require.NoError(t, err)
	v, err := page.NewView(draft)
	require.NoError(t, err)
	require.True(t, v.AppendTuple(page.Tuple{Row: 99, Fingerprint: 99}))
	m.Abort()
	s.Unlock(pageNo)

	after, err := s.Read(pageNo)
	require.NoError(t, err)
	assert.Equal(t, snapshot, after)
}

func TestAllocateReusesDeletedPage(t *testing.T) {
	s, _ := tempStore(t, nil)

	p0, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(p0)
	p1, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(p1)
	require.Equal(t, uint32(1), p1)

	// Flag page 1 deleted and record it as reusable.
	s.Lock(p1)
	m := s.Begin()
	draft, err := m.Register(p1)
	require.NoError(t, err)
	v, err := page.Init(draft, 0)
	require.NoError(t, err)
	v.SetDeleted()
	require.NoError(t, m.Commit())
	s.Unlock(p1)
	s.RecordFree(p1)

	got, err := s.Allocate()
	require.NoError(t, err)
	defer s.Unlock(got)
	assert.Equal(t, p1, got)
	assert.Equal(t, uint32(2), s.NumPages())
}

func TestAllocateSkipsLiveCandidate(t *testing.T) {
	s, _ := tempStore(t, nil)

	p0, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(p0)
	commitTuple(t, s, p0, page.Tuple{Row: 7, Fingerprint: 7})

	// A live page recorded as free must not be handed out.
	s.RecordFree(p0)

	got, err := s.Allocate()
	require.NoError(t, err)
	defer s.Unlock(got)
	assert.Equal(t, uint32(1), got)
}

func TestJournalReplayAppliesCommittedImages(t *testing.T) {
	s, path := tempStore(t, nil)

	pageNo, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(pageNo)
	commitTuple(t, s, pageNo, page.Tuple{Row: 1, Fingerprint: 1})
	require.NoError(t, s.Close())

	// Craft a complete journal holding a newer image of page 0,
	// simulating a crash between journal sync and page apply.
	img := make([]byte, page.Size)
	v, err := page.Init(img, 0)
	require.NoError(t, err)
	require.True(t, v.AppendTuple(page.Tuple{Row: 2, Fingerprint: 2}))

	buf := make([]byte, journalHeaderSize+frameSize)
	binary.LittleEndian.PutUint32(buf[0:], journalMagic)
	binary.LittleEndian.PutUint32(buf[4:], 1)
	binary.LittleEndian.PutUint32(buf[journalHeaderSize:], pageNo)
	copy(buf[journalHeaderSize+4:], img)
	crc := hash.CRC32C(buf[journalHeaderSize : journalHeaderSize+4+page.Size])
	binary.LittleEndian.PutUint32(buf[journalHeaderSize+4+page.Size:], crc)
	require.NoError(t, os.WriteFile(path+".journal", buf, 0o644))

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Read(pageNo)
	require.NoError(t, err)
	v2, err := page.NewView(got)
	require.NoError(t, err)
	tup, ok := v2.Tuple(0)
	require.True(t, ok)
	assert.Equal(t, uint64(2), tup.Row)

	_, err = os.Stat(path + ".journal")
	assert.True(t, os.IsNotExist(err))
}

func TestTornJournalDiscarded(t *testing.T) {
	s, path := tempStore(t, nil)

	pageNo, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(pageNo)
	want := page.Tuple{Row: 5, Fingerprint: 5}
	commitTuple(t, s, pageNo, want)
	require.NoError(t, s.Close())

	// A truncated journal must be ignored, not applied.
	require.NoError(t, os.WriteFile(path+".journal", []byte("CKJ1 torn"), 0o644))

	s2, err := Open(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	img, err := s2.Read(pageNo)
	require.NoError(t, err)
	v, err := page.NewView(img)
	require.NoError(t, err)
	got, ok := v.Tuple(0)
	require.True(t, ok)
	assert.Equal(t, want, got)

	_, err = os.Stat(path + ".journal")
	assert.True(t, os.IsNotExist(err))
}

func TestJournalWriteFailureLeavesPagesUntouched(t *testing.T) {
	ffs := fs.NewFaultyFS(nil)
	s, _ := tempStore(t, ffs)

	pageNo, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(pageNo)
	want := page.Tuple{Row: 3, Fingerprint: 3}
	commitTuple(t, s, pageNo, want)

	ffs.AddRule(".journal", fs.Fault{FailOnWrite: true})

	s.Lock(pageNo)
	m := s.Begin()
	draft, err := m.Register(pageNo)
	require.NoError(t, err)
	v, err := page.NewView(draft)
	require.NoError(t, err)
	require.True(t, v.AppendTuple(page.Tuple{Row: 4, Fingerprint: 4}))
	require.ErrorIs(t, m.Commit(), fs.ErrInjected)
	s.Unlock(pageNo)

	img, err := s.Read(pageNo)
	require.NoError(t, err)
	v2, err := page.NewView(img)
	require.NoError(t, err)
	require.Equal(t, 1, v2.Count())
	got, ok := v2.Tuple(0)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestChecksumMismatchDetected(t *testing.T) {
	s, path := tempStore(t, nil)

	pageNo, err := s.Allocate()
	require.NoError(t, err)
	s.Unlock(pageNo)
	commitTuple(t, s, pageNo, page.Tuple{Row: 9, Fingerprint: 9})
	require.NoError(t, s.Close())

	// Flip a tuple byte without fixing the checksum.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[page.HeaderSize] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Open(path, nil)
	require.ErrorIs(t, err, ErrChecksum)
}
