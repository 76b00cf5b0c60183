package cuckoodex

import (
	"context"
	"time"

	"github.com/hupe1980/cuckoodex/internal/page"
)

const invalidBlock = ^uint32(0)

// Insert adds one tuple for row. NULL values do not contribute to the
// fingerprint; a row whose values are all NULL is still indexed under
// the minimal fingerprint.
//
// The fast path appends to the current not-full page with only a
// shared metapage lock. When that page is full the slow path walks the
// remaining not-full pages under an exclusive metapage lock, and
// allocates a fresh page as a last resort.
func (i *Index) Insert(ctx context.Context, row RowID, values []Value) (err error) {
	start := time.Now()
	defer func() {
		i.opts.metricsCollector.RecordInsert(time.Since(start), err)
		i.logger.LogInsert(ctx, uint64(row), err)
	}()

	if err = i.checkOpen(); err != nil {
		return err
	}
	if err = i.checkValues(values); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}

	tuple := page.Tuple{Row: uint64(row), Fingerprint: i.fp.compute(values)}

	done, tried, err := i.insertFast(tuple)
	if done || err != nil {
		return translateError(err)
	}

	return translateError(i.insertSlow(tuple, tried))
}

// insertFast tries the head of the not-full ring without touching the
// metapage. tried reports the page that was attempted, so the slow
// path can skip it.
func (i *Index) insertFast(t page.Tuple) (done bool, tried uint32, err error) {
	s := i.store

	s.RLock(page.MetaBlock)
	mv, err := i.metaView()
	if err != nil {
		s.RUnlock(page.MetaBlock)
		return false, invalidBlock, err
	}
	if mv.FreeStart() >= mv.FreeEnd() {
		s.RUnlock(page.MetaBlock)
		return false, invalidBlock, nil
	}
	blkno, err := mv.FreeAt(mv.FreeStart())
	s.RUnlock(page.MetaBlock)
	if err != nil {
		return false, invalidBlock, err
	}

	s.Lock(blkno)
	defer s.Unlock(blkno)

	m := s.Begin()
	draft, err := m.Register(blkno)
	if err != nil {
		m.Abort()
		return false, invalidBlock, err
	}
	v, err := page.NewView(draft)
	if err != nil {
		m.Abort()
		return false, invalidBlock, err
	}

	// Ring entries may point at recently recycled pages.
	if v.IsNew() || v.IsDeleted() {
		if v, err = page.Init(draft, 0); err != nil {
			m.Abort()
			return false, invalidBlock, err
		}
	}

	if v.AppendTuple(t) {
		return true, blkno, m.Commit()
	}

	m.Abort()

	return false, blkno, nil
}

// insertSlow walks the not-full ring under an exclusive metapage lock,
// advancing the ring start past exhausted entries. When the ring runs
// out it allocates a page and resets the ring to just that page.
func (i *Index) insertSlow(t page.Tuple, tried uint32) error {
	s := i.store

	s.Lock(page.MetaBlock)
	defer s.Unlock(page.MetaBlock)

	cur, err := i.metaView()
	if err != nil {
		return err
	}
	n := cur.FreeStart()
	if n < cur.FreeEnd() {
		if first, ferr := cur.FreeAt(n); ferr == nil && first == tried {
			n++
		}
	}

	for {
		m := s.Begin()
		metaDraft, err := m.Register(page.MetaBlock)
		if err != nil {
			m.Abort()
			return err
		}
		mv, err := page.NewMetaView(metaDraft)
		if err != nil {
			m.Abort()
			return err
		}

		if n >= mv.FreeEnd() {
			blkno, err := s.Allocate()
			if err != nil {
				m.Abort()
				return err
			}
			draft, err := m.Register(blkno)
			if err != nil {
				m.Abort()
				s.Unlock(blkno)
				return err
			}
			v, err := page.Init(draft, 0)
			if err != nil {
				m.Abort()
				s.Unlock(blkno)
				return err
			}
			if !v.AppendTuple(t) {
				m.Abort()
				s.Unlock(blkno)
				return ErrEmptyPageReject
			}
			if err := mv.SetFreeList([]uint32{blkno}); err != nil {
				m.Abort()
				s.Unlock(blkno)
				return err
			}
			err = m.Commit()
			s.Unlock(blkno)
			return err
		}

		blkno, err := mv.FreeAt(n)
		if err != nil {
			m.Abort()
			return err
		}

		s.Lock(blkno)
		draft, err := m.Register(blkno)
		if err != nil {
			m.Abort()
			s.Unlock(blkno)
			return err
		}
		v, err := page.NewView(draft)
		if err != nil {
			m.Abort()
			s.Unlock(blkno)
			return err
		}
		if v.IsNew() || v.IsDeleted() {
			if v, err = page.Init(draft, 0); err != nil {
				m.Abort()
				s.Unlock(blkno)
				return err
			}
		}

		if v.AppendTuple(t) {
			if err := mv.SetFreeStart(n); err != nil {
				m.Abort()
				s.Unlock(blkno)
				return err
			}
			err = m.Commit()
			s.Unlock(blkno)
			return err
		}

		m.Abort()
		s.Unlock(blkno)
		n++
	}
}
