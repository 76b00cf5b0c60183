package cuckoodex

import (
	"context"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/cuckoodex/internal/arena"
	"github.com/hupe1980/cuckoodex/internal/page"
)

// Scanner runs equality lookups against the index. The search
// fingerprint is computed once per key and cached until Rescan.
// A Scanner is not safe for concurrent use; create one per goroutine.
type Scanner struct {
	idx         *Index
	values      []Value
	fingerprint uint32
	valid       bool
	null        bool
}

// NewScanner creates a scanner with no key; call Rescan before Bitmap.
func (i *Index) NewScanner() *Scanner {
	return &Scanner{idx: i}
}

// Rescan resets the scanner to a new key and invalidates the cached
// fingerprint. A nil value in the key means SQL NULL: equality is
// strict, so the scan returns no matches for the scanner's lifetime
// until the next Rescan.
func (s *Scanner) Rescan(values []Value) {
	s.values = values
	s.valid = false
}

// Bitmap sweeps every data page under shared locks and returns the row
// locators whose stored fingerprint matches the key, as a bitmap plus
// the candidate count. The result is a superset of the true matches;
// callers revalidate each row.
func (s *Scanner) Bitmap(ctx context.Context) (bm *roaring64.Bitmap, ntids int64, err error) {
	i := s.idx
	start := time.Now()
	defer func() {
		i.opts.metricsCollector.RecordScan(ntids, time.Since(start), err)
		i.logger.LogScan(ctx, ntids, time.Since(start), err)
	}()

	if err = i.checkOpen(); err != nil {
		return nil, 0, err
	}
	if err = i.checkValues(s.values); err != nil {
		return nil, 0, err
	}

	if !s.valid {
		s.null = false
		for _, v := range s.values {
			if v == nil {
				s.null = true
				break
			}
		}
		if !s.null {
			s.fingerprint = i.fp.compute(s.values)
		}
		s.valid = true
	}

	bm = roaring64.New()
	if s.null {
		return bm, 0, nil
	}

	ar := arena.Acquire()
	defer ar.Release()
	buf := ar.Alloc(page.Size)

	// Copy each page out under its shared lock, then match against
	// the copy so the lock is held only for the memcpy.
	npages := i.store.NumPages()
	for blkno := uint32(page.HeadBlock); blkno < npages; blkno++ {
		if err = ctx.Err(); err != nil {
			return nil, 0, err
		}

		i.store.RLock(blkno)
		img, rerr := i.store.Read(blkno)
		if rerr != nil {
			i.store.RUnlock(blkno)
			err = translateError(rerr)
			return nil, 0, err
		}
		copy(buf, img)
		i.store.RUnlock(blkno)

		v, verr := page.NewView(buf)
		if verr != nil {
			err = verr
			return nil, 0, err
		}
		if v.IsNew() || v.IsDeleted() {
			continue
		}

		for j := 0; j < v.Count(); j++ {
			t, ok := v.Tuple(j)
			if !ok {
				break
			}
			if t.Fingerprint == s.fingerprint {
				bm.Add(t.Row)
				ntids++
			}
		}
	}

	return bm, ntids, nil
}
