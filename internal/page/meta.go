package page

import (
	"encoding/binary"
	"fmt"
)

// Magic validates that page 0 belongs to a cuckoo fingerprint index.
const Magic = 0xC0C000CF

// MetaBlock is the page number of the metapage.
const MetaBlock = 0

// HeadBlock is the first data page number.
const HeadBlock = 1

// Settings is the immutable option record persisted in the metapage.
// Any change requires a full rebuild of the index.
type Settings struct {
	BitsPerTag    uint32
	TagsPerBucket uint32
	MaxKicks      uint32
}

// Metapage content layout, relative to HeaderSize:
// magic u32, ring start u16, ring end u16, settings 3×u32,
// then the free-list array of u32 page numbers filling the rest.
const (
	metaOffMagic    = HeaderSize
	metaOffStart    = metaOffMagic + 4
	metaOffEnd      = metaOffStart + 2
	metaOffSettings = metaOffEnd + 2
	metaOffFreeList = metaOffSettings + 12
)

// FreeListCap is the fixed capacity of the metapage free-list ring,
// sized to fill the remaining metapage space.
const FreeListCap = (Size - OpaqueSize - metaOffFreeList) / 4

// MetaView is a bounds-checked window over the metapage image.
type MetaView struct {
	View
}

// InitMeta formats buf as an empty metapage carrying the given settings.
func InitMeta(buf []byte, s Settings) (MetaView, error) {
	v, err := Init(buf, FlagMeta)
	if err != nil {
		return MetaView{}, err
	}
	m := MetaView{View: v}
	binary.LittleEndian.PutUint32(m.buf[metaOffMagic:], Magic)
	m.SetSettings(s)
	return m, nil
}

// NewMetaView wraps a metapage image, validating the magic constant.
func NewMetaView(buf []byte) (MetaView, error) {
	v, err := NewView(buf)
	if err != nil {
		return MetaView{}, err
	}
	m := MetaView{View: v}
	if !m.IsMeta() || m.Magic() != Magic {
		return MetaView{}, fmt.Errorf("page: not a cuckoo index metapage")
	}
	return m, nil
}

// Magic returns the stored magic constant.
func (m MetaView) Magic() uint32 {
	return binary.LittleEndian.Uint32(m.buf[metaOffMagic:])
}

// Settings returns the persisted option record.
func (m MetaView) Settings() Settings {
	return Settings{
		BitsPerTag:    binary.LittleEndian.Uint32(m.buf[metaOffSettings:]),
		TagsPerBucket: binary.LittleEndian.Uint32(m.buf[metaOffSettings+4:]),
		MaxKicks:      binary.LittleEndian.Uint32(m.buf[metaOffSettings+8:]),
	}
}

// SetSettings stores the option record.
func (m MetaView) SetSettings(s Settings) {
	binary.LittleEndian.PutUint32(m.buf[metaOffSettings:], s.BitsPerTag)
	binary.LittleEndian.PutUint32(m.buf[metaOffSettings+4:], s.TagsPerBucket)
	binary.LittleEndian.PutUint32(m.buf[metaOffSettings+8:], s.MaxKicks)
}

// FreeStart returns the index of the first valid free-list entry.
func (m MetaView) FreeStart() int {
	return int(binary.LittleEndian.Uint16(m.buf[metaOffStart:]))
}

// SetFreeStart stores the free-list start index.
func (m MetaView) SetFreeStart(i int) error {
	if i < 0 || i > FreeListCap {
		return fmt.Errorf("page: free-list start %d out of range", i)
	}
	binary.LittleEndian.PutUint16(m.buf[metaOffStart:], uint16(i)) //nolint:gosec // bounds checked
	return nil
}

// FreeEnd returns the index one past the last valid free-list entry.
func (m MetaView) FreeEnd() int {
	return int(binary.LittleEndian.Uint16(m.buf[metaOffEnd:]))
}

// SetFreeEnd stores the free-list end index.
func (m MetaView) SetFreeEnd(i int) error {
	if i < 0 || i > FreeListCap {
		return fmt.Errorf("page: free-list end %d out of range", i)
	}
	binary.LittleEndian.PutUint16(m.buf[metaOffEnd:], uint16(i)) //nolint:gosec // bounds checked
	return nil
}

// FreeAt returns the page number stored in free-list slot i.
func (m MetaView) FreeAt(i int) (uint32, error) {
	if i < 0 || i >= FreeListCap {
		return 0, fmt.Errorf("page: free-list slot %d out of range", i)
	}
	return binary.LittleEndian.Uint32(m.buf[metaOffFreeList+4*i:]), nil
}

// SetFreeList overwrites the free-list with exactly the given pages and
// resets the ring to [0, len(pages)). Callers must keep len(pages)
// within FreeListCap.
func (m MetaView) SetFreeList(pages []uint32) error {
	if len(pages) > FreeListCap {
		return fmt.Errorf("page: free-list overflow: %d entries, cap %d", len(pages), FreeListCap)
	}
	for i, p := range pages {
		binary.LittleEndian.PutUint32(m.buf[metaOffFreeList+4*i:], p)
	}
	if err := m.SetFreeStart(0); err != nil {
		return err
	}
	return m.SetFreeEnd(len(pages))
}
