package pagestore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/hupe1980/cuckoodex/internal/hash"
	"github.com/hupe1980/cuckoodex/internal/page"
)

// journalMagic marks a redo journal produced by this store.
const journalMagic = 0x434B4A31 // "CKJ1"

const (
	journalHeaderSize = 8                   // magic u32 + frame count u32
	frameSize         = 4 + page.Size + 4   // page number + image + crc
)

// Mutation drafts changes to one or more pages and applies them
// atomically: either every registered image reaches the file, or none
// does. The caller must hold the exclusive lock on every registered
// page until Commit or Abort returns.
type Mutation struct {
	s      *Store
	order  []uint32
	drafts map[uint32][]byte
	done   bool
}

// Begin starts an empty mutation.
func (s *Store) Begin() *Mutation {
	return &Mutation{s: s, drafts: make(map[uint32][]byte)}
}

// Register adds pageNo to the mutation and returns a draft image
// seeded with the page's current content. Mutating the draft does not
// touch the store until Commit.
func (m *Mutation) Register(pageNo uint32) ([]byte, error) {
	if m.done {
		return nil, fmt.Errorf("pagestore: mutation already finished")
	}
	if draft, ok := m.drafts[pageNo]; ok {
		return draft, nil
	}

	img, err := m.s.Read(pageNo)
	if err != nil {
		return nil, err
	}
	draft := make([]byte, page.Size)
	copy(draft, img)

	m.order = append(m.order, pageNo)
	m.drafts[pageNo] = draft

	return draft, nil
}

// Abort discards all drafts. Persisted bytes are left untouched.
func (m *Mutation) Abort() {
	m.done = true
	m.drafts = nil
	m.order = nil
}

// Commit makes every draft durable. The redo journal is written and
// synced before any page is touched, so a crash mid-apply replays to
// the committed state on the next Open.
func (m *Mutation) Commit() error {
	if m.done {
		return fmt.Errorf("pagestore: mutation already finished")
	}
	m.done = true

	if len(m.order) == 0 {
		return nil
	}

	for _, draft := range m.drafts {
		v, err := page.NewView(draft)
		if err != nil {
			return err
		}
		v.SetChecksum(0)
		v.SetChecksum(pageChecksum(draft))
	}

	m.s.commitMu.Lock()
	defer m.s.commitMu.Unlock()

	if err := m.writeJournal(); err != nil {
		return err
	}

	for _, pageNo := range m.order {
		draft := m.drafts[pageNo]

		m.s.mu.Lock()
		img := m.s.cache[pageNo]
		copy(img, draft)
		m.s.mu.Unlock()

		if _, err := m.s.file.WriteAt(draft, int64(pageNo)*page.Size); err != nil {
			return fmt.Errorf("pagestore: apply page %d: %w", pageNo, err)
		}
	}
	if err := m.s.file.Sync(); err != nil {
		return fmt.Errorf("pagestore: sync after apply: %w", err)
	}

	// Pages are durable; retire the journal.
	return m.s.fsys.Remove(m.s.journal)
}

func (m *Mutation) writeJournal() error {
	jf, err := m.s.fsys.OpenFile(m.s.journal, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("pagestore: create journal: %w", err)
	}

	var header [journalHeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:], journalMagic)
	binary.LittleEndian.PutUint32(header[4:], uint32(len(m.order))) //nolint:gosec // few pages per mutation

	if _, err := jf.Write(header[:]); err != nil {
		_ = jf.Close()
		return fmt.Errorf("pagestore: write journal: %w", err)
	}

	frame := make([]byte, frameSize)
	for _, pageNo := range m.order {
		binary.LittleEndian.PutUint32(frame[0:], pageNo)
		copy(frame[4:], m.drafts[pageNo])
		crc := hash.CRC32C(frame[:4+page.Size])
		binary.LittleEndian.PutUint32(frame[4+page.Size:], crc)
		if _, err := jf.Write(frame); err != nil {
			_ = jf.Close()
			return fmt.Errorf("pagestore: write journal: %w", err)
		}
	}

	if err := jf.Sync(); err != nil {
		_ = jf.Close()
		return fmt.Errorf("pagestore: sync journal: %w", err)
	}

	return jf.Close()
}

// replayJournal applies a complete pending journal to the data file
// and discards torn ones. Runs before the cache is loaded.
func (s *Store) replayJournal() error {
	info, err := s.fsys.Stat(s.journal)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("pagestore: stat journal: %w", err)
	}

	drop := func() error {
		return s.fsys.Remove(s.journal)
	}

	if info.Size() < journalHeaderSize {
		return drop()
	}

	jf, err := s.fsys.OpenFile(s.journal, os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("pagestore: open journal: %w", err)
	}

	var header [journalHeaderSize]byte
	if _, err := jf.ReadAt(header[:], 0); err != nil {
		_ = jf.Close()
		return drop()
	}
	if binary.LittleEndian.Uint32(header[0:]) != journalMagic {
		_ = jf.Close()
		return drop()
	}

	count := int(binary.LittleEndian.Uint32(header[4:]))
	if info.Size() != int64(journalHeaderSize)+int64(count)*frameSize {
		_ = jf.Close()
		return drop()
	}

	type redo struct {
		pageNo uint32
		img    []byte
	}
	redos := make([]redo, 0, count)

	frame := make([]byte, frameSize)
	for i := 0; i < count; i++ {
		off := int64(journalHeaderSize) + int64(i)*frameSize
		if _, err := jf.ReadAt(frame, off); err != nil {
			_ = jf.Close()
			return drop()
		}
		crc := binary.LittleEndian.Uint32(frame[4+page.Size:])
		if crc != hash.CRC32C(frame[:4+page.Size]) {
			_ = jf.Close()
			return drop()
		}
		img := make([]byte, page.Size)
		copy(img, frame[4:])
		redos = append(redos, redo{pageNo: binary.LittleEndian.Uint32(frame[0:]), img: img})
	}
	_ = jf.Close()

	df, err := s.fsys.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("pagestore: open for replay: %w", err)
	}
	for _, r := range redos {
		if _, err := df.WriteAt(r.img, int64(r.pageNo)*page.Size); err != nil {
			_ = df.Close()
			return fmt.Errorf("pagestore: replay page %d: %w", r.pageNo, err)
		}
	}
	if err := df.Sync(); err != nil {
		_ = df.Close()
		return fmt.Errorf("pagestore: sync replay: %w", err)
	}
	if err := df.Close(); err != nil {
		return err
	}

	return drop()
}
