// Package cuckoodex implements a probabilistic secondary equality
// index over opaque row locators, modeled on a cuckoo filter: the
// index stores short fingerprints of the indexed column values instead
// of the values themselves. Lookups return a superset of the true
// matches; callers revalidate candidate rows against their row store.
// There are no false negatives for inserted rows.
package cuckoodex

import (
	"sync/atomic"

	"github.com/hupe1980/cuckoodex/internal/page"
	"github.com/hupe1980/cuckoodex/internal/pagestore"
)

// Index is a cuckoo fingerprint index backed by a single page file.
// Safe for concurrent use.
type Index struct {
	path     string
	columns  []Column
	opts     options
	settings page.Settings
	fp       fingerprinter
	store    *pagestore.Store
	logger   *Logger
	closed   atomic.Bool
}

// Create initializes a new index at path. The file must not already
// contain pages; ErrIndexNotEmpty is returned when it does.
func Create(path string, columns []Column, optFns ...Option) (*Index, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	o := applyOptions(optFns)
	settings, err := validateSettings(o)
	if err != nil {
		return nil, err
	}

	store, err := pagestore.Open(path, o.fsys)
	if err != nil {
		return nil, translateError(err)
	}

	if store.NumPages() != 0 {
		_ = store.Close()
		return nil, ErrIndexNotEmpty
	}

	blkno, err := store.Allocate()
	if err != nil {
		_ = store.Close()
		return nil, translateError(err)
	}

	m := store.Begin()
	draft, err := m.Register(blkno)
	if err == nil {
		_, err = page.InitMeta(draft, settings)
	}
	if err == nil {
		err = m.Commit()
	} else {
		m.Abort()
	}
	store.Unlock(blkno)
	if err != nil {
		_ = store.Close()
		return nil, translateError(err)
	}

	return newIndex(path, columns, o, settings, store), nil
}

// Open opens an existing index at path. The persisted option record
// takes precedence over option values passed here. ErrBadMagic is
// returned when the file is not a cuckoo index.
func Open(path string, columns []Column, optFns ...Option) (*Index, error) {
	if len(columns) == 0 {
		return nil, ErrNoColumns
	}

	o := applyOptions(optFns)

	store, err := pagestore.Open(path, o.fsys)
	if err != nil {
		return nil, translateError(err)
	}

	if store.NumPages() == 0 {
		_ = store.Close()
		return nil, ErrBadMagic
	}

	img, err := store.Read(page.MetaBlock)
	if err != nil {
		_ = store.Close()
		return nil, translateError(err)
	}
	mv, err := page.NewMetaView(img)
	if err != nil {
		_ = store.Close()
		return nil, ErrBadMagic
	}
	settings := mv.Settings()

	// Seed the reuse registry from pages flagged free on disk.
	for blkno := uint32(page.HeadBlock); blkno < store.NumPages(); blkno++ {
		pimg, err := store.Read(blkno)
		if err != nil {
			_ = store.Close()
			return nil, translateError(err)
		}
		v, err := page.NewView(pimg)
		if err != nil {
			_ = store.Close()
			return nil, translateError(err)
		}
		if v.IsNew() || v.IsDeleted() {
			store.RecordFree(blkno)
		}
	}

	return newIndex(path, columns, o, settings, store), nil
}

func newIndex(path string, columns []Column, o options, settings page.Settings, store *pagestore.Store) *Index {
	return &Index{
		path:     path,
		columns:  columns,
		opts:     o,
		settings: settings,
		fp:       newFingerprinter(columns, settings.BitsPerTag),
		store:    store,
		logger:   o.logger.WithPath(path),
	}
}

// Path returns the index file path.
func (i *Index) Path() string { return i.path }

// Close syncs and closes the index. Further operations return
// ErrClosed.
func (i *Index) Close() error {
	if i.closed.Swap(true) {
		return nil
	}

	return translateError(i.store.Close())
}

func (i *Index) checkOpen() error {
	if i.closed.Load() {
		return ErrClosed
	}

	return nil
}

func (i *Index) checkValues(values []Value) error {
	if len(values) != len(i.columns) {
		return &ErrColumnMismatch{Expected: len(i.columns), Actual: len(values)}
	}

	return nil
}

// metaView wraps the cached metapage image. The caller must hold the
// metapage lock.
func (i *Index) metaView() (page.MetaView, error) {
	img, err := i.store.Read(page.MetaBlock)
	if err != nil {
		return page.MetaView{}, err
	}

	return page.NewMetaView(img)
}

// dataView wraps the cached image of a data page. The caller must hold
// the page lock.
func (i *Index) dataView(blkno uint32) (page.View, error) {
	img, err := i.store.Read(blkno)
	if err != nil {
		return page.View{}, err
	}

	return page.NewView(img)
}

// IndexStats is a point-in-time snapshot of index shape and size.
type IndexStats struct {
	NumPages      uint32
	FreePages     uint32
	NumTuples     int64
	BitsPerTag    int
	TagsPerBucket int
	MaxKicks      int
}

// Stats sweeps the index under shared locks and returns its current
// shape.
func (i *Index) Stats() (IndexStats, error) {
	if err := i.checkOpen(); err != nil {
		return IndexStats{}, err
	}

	stats := IndexStats{
		NumPages:      i.store.NumPages(),
		BitsPerTag:    int(i.settings.BitsPerTag),
		TagsPerBucket: int(i.settings.TagsPerBucket),
		MaxKicks:      int(i.settings.MaxKicks),
	}

	for blkno := uint32(page.HeadBlock); blkno < stats.NumPages; blkno++ {
		i.store.RLock(blkno)
		v, err := i.dataView(blkno)
		if err != nil {
			i.store.RUnlock(blkno)
			return IndexStats{}, translateError(err)
		}
		if v.IsNew() || v.IsDeleted() {
			stats.FreePages++
		} else {
			stats.NumTuples += int64(v.Count())
		}
		i.store.RUnlock(blkno)
	}

	return stats, nil
}
