package cuckoodex

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/hupe1980/cuckoodex/internal/arena"
	"github.com/hupe1980/cuckoodex/internal/page"
)

// RowSource yields the rows to index during a bulk build. Next returns
// io.EOF after the last row. Sources passed to BuildParallel must be
// safe for concurrent use.
type RowSource interface {
	Next(ctx context.Context) (RowID, []Value, error)
}

// Row pairs a row locator with its indexed column values.
type Row struct {
	ID     RowID
	Values []Value
}

// NewSliceSource returns a RowSource over rows. It is safe for
// concurrent use.
func NewSliceSource(rows []Row) RowSource {
	return &sliceSource{rows: rows}
}

type sliceSource struct {
	rows []Row
	next atomic.Int64
}

func (s *sliceSource) Next(ctx context.Context) (RowID, []Value, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	n := s.next.Add(1) - 1
	if n >= int64(len(s.rows)) {
		return 0, nil, io.EOF
	}

	return s.rows[n].ID, s.rows[n].Values, nil
}

// BuildResult reports what a bulk build scanned and wrote.
type BuildResult struct {
	// Rows is the number of source rows scanned.
	Rows int64

	// Tuples is the number of index tuples written.
	Tuples int64
}

// Build bulk-loads the index from src, packing tuples densely into
// pages through a cached page buffer. The index must not already
// contain data pages.
func (i *Index) Build(ctx context.Context, src RowSource) (res BuildResult, err error) {
	start := time.Now()
	defer func() {
		i.opts.metricsCollector.RecordBuild(res.Tuples, time.Since(start), err)
		i.logger.LogBuild(ctx, res.Tuples, 1, time.Since(start), err)
	}()

	if err = i.checkOpen(); err != nil {
		return res, err
	}
	if err = i.checkEmpty(); err != nil {
		return res, err
	}

	ar := arena.Acquire()
	defer ar.Release()

	buf := ar.Alloc(page.Size)
	v, err := page.Init(buf, 0)
	if err != nil {
		return res, err
	}

	for {
		row, values, nerr := src.Next(ctx)
		if errors.Is(nerr, io.EOF) {
			break
		}
		if nerr != nil {
			err = nerr
			return res, err
		}
		if err = i.checkValues(values); err != nil {
			return res, err
		}

		t := page.Tuple{Row: uint64(row), Fingerprint: i.fp.compute(values)}
		if !v.AppendTuple(t) {
			if err = i.flushBuildPage(buf); err != nil {
				return res, translateError(err)
			}
			if err = ctx.Err(); err != nil {
				return res, err
			}
			if v, err = page.Init(buf, 0); err != nil {
				return res, err
			}
			if !v.AppendTuple(t) {
				err = ErrEmptyPageReject
				return res, err
			}
		}

		res.Rows++
		res.Tuples++
	}

	if v.Count() > 0 {
		if err = i.flushBuildPage(buf); err != nil {
			return res, translateError(err)
		}
	}

	return res, nil
}

// checkEmpty rejects bulk builds over an index that already holds data
// pages.
func (i *Index) checkEmpty() error {
	if i.store.NumPages() > page.HeadBlock {
		return ErrIndexNotEmpty
	}

	return nil
}

// flushBuildPage writes the cached page buffer to a freshly allocated
// page.
func (i *Index) flushBuildPage(buf []byte) error {
	blkno, err := i.store.Allocate()
	if err != nil {
		return err
	}
	defer i.store.Unlock(blkno)

	m := i.store.Begin()
	draft, err := m.Register(blkno)
	if err != nil {
		m.Abort()
		return err
	}
	copy(draft, buf)

	return m.Commit()
}
