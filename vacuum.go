package cuckoodex

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hupe1980/cuckoodex/internal/page"
)

// LivenessFunc reports whether the row behind a locator is dead and
// its index tuples should be removed.
type LivenessFunc func(row RowID) bool

// DeleteStats reports the outcome of a BulkDelete pass.
type DeleteStats struct {
	TuplesRemoved int64
}

// CleanupStats reports the index shape after a cleanup pass.
type CleanupStats struct {
	NumPages  uint32
	PagesFree uint32
	NumTuples int64
}

func (i *Index) vacuumLimiter() *rate.Limiter {
	if i.opts.vacuumPagesPerSec <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(i.opts.vacuumPagesPerSec), 1)
}

// BulkDelete removes every tuple whose row dead reports as dead,
// compacting survivors toward the front of each page. Pages left empty
// are flagged deleted for reuse, and the metapage's not-full ring is
// rebuilt from pages that still have room.
func (i *Index) BulkDelete(ctx context.Context, dead LivenessFunc) (stats *DeleteStats, err error) {
	start := time.Now()
	defer func() {
		var removed int64
		if stats != nil {
			removed = stats.TuplesRemoved
		}
		i.opts.metricsCollector.RecordVacuum(removed, time.Since(start), err)
		i.logger.LogVacuum(ctx, removed, time.Since(start), err)
	}()

	if err = i.checkOpen(); err != nil {
		return nil, err
	}

	stats = &DeleteStats{}
	limiter := i.vacuumLimiter()
	s := i.store

	var notFull []uint32

	// Pages added concurrently cannot hold tuples we need to remove.
	npages := s.NumPages()
	for blkno := uint32(page.HeadBlock); blkno < npages; blkno++ {
		if limiter != nil {
			if err = limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else if err = ctx.Err(); err != nil {
			return nil, err
		}

		s.Lock(blkno)

		m := s.Begin()
		draft, rerr := m.Register(blkno)
		if rerr != nil {
			m.Abort()
			s.Unlock(blkno)
			err = translateError(rerr)
			return nil, err
		}
		v, verr := page.NewView(draft)
		if verr != nil {
			m.Abort()
			s.Unlock(blkno)
			err = verr
			return nil, err
		}
		if v.IsNew() || v.IsDeleted() {
			m.Abort()
			s.Unlock(blkno)
			continue
		}

		// Slide survivors over removed tuples.
		n := v.Count()
		write := 0
		for j := 0; j < n; j++ {
			t, _ := v.Tuple(j)
			if dead(RowID(t.Row)) {
				stats.TuplesRemoved++
				continue
			}
			if write != j {
				if err = v.WriteTuple(write, t); err != nil {
					m.Abort()
					s.Unlock(blkno)
					return nil, err
				}
			}
			write++
		}

		if write != n {
			if err = v.Truncate(write); err != nil {
				m.Abort()
				s.Unlock(blkno)
				return nil, err
			}
			if write == 0 {
				v.SetDeleted()
			}
			if err = m.Commit(); err != nil {
				s.Unlock(blkno)
				err = translateError(err)
				return nil, err
			}
		} else {
			// Nothing removed: leave the page bytes untouched.
			m.Abort()
		}

		if write != 0 && write < page.MaxTuples && len(notFull) < page.FreeListCap {
			notFull = append(notFull, blkno)
		}

		s.Unlock(blkno)
	}

	// Republish the not-full ring. It may be slightly stale by the
	// time inserts read it; they cope.
	s.Lock(page.MetaBlock)
	m := s.Begin()
	metaDraft, rerr := m.Register(page.MetaBlock)
	if rerr != nil {
		m.Abort()
		s.Unlock(page.MetaBlock)
		err = translateError(rerr)
		return nil, err
	}
	mv, verr := page.NewMetaView(metaDraft)
	if verr == nil {
		verr = mv.SetFreeList(notFull)
	}
	if verr != nil {
		m.Abort()
		s.Unlock(page.MetaBlock)
		err = verr
		return nil, err
	}
	err = translateError(m.Commit())
	s.Unlock(page.MetaBlock)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// Cleanup sweeps the index after a delete pass, tallying stats and
// feeding free pages back into the reuse registry. With statsOnly the
// sweep is skipped and nil stats are returned.
func (i *Index) Cleanup(ctx context.Context, statsOnly bool) (stats *CleanupStats, err error) {
	if err = i.checkOpen(); err != nil {
		return nil, err
	}
	if statsOnly {
		return nil, nil
	}

	start := time.Now()
	defer func() {
		i.opts.metricsCollector.RecordVacuum(0, time.Since(start), err)
		i.logger.LogVacuum(ctx, 0, time.Since(start), err)
	}()

	limiter := i.vacuumLimiter()
	s := i.store

	stats = &CleanupStats{NumPages: s.NumPages()}
	for blkno := uint32(page.HeadBlock); blkno < stats.NumPages; blkno++ {
		if limiter != nil {
			if err = limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else if err = ctx.Err(); err != nil {
			return nil, err
		}

		s.RLock(blkno)
		v, verr := i.dataView(blkno)
		if verr != nil {
			s.RUnlock(blkno)
			err = translateError(verr)
			return nil, err
		}
		if v.IsNew() || v.IsDeleted() {
			s.RecordFree(blkno)
			stats.PagesFree++
		} else {
			stats.NumTuples += int64(v.Count())
		}
		s.RUnlock(blkno)
	}

	return stats, nil
}
