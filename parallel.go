package cuckoodex

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/cuckoodex/internal/arena"
	"github.com/hupe1980/cuckoodex/internal/page"
)

// workerBatch is the number of tuples a worker accumulates before
// handing them to the shared collector.
const workerBatch = 1024

// buildShared is the fan-in state workers feed. One mutex guards the
// collected tuples and the completion counter; the coordinator blocks
// on the condition variable until every participant reported done.
type buildShared struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tuples []page.Tuple
	rows   int64
	done   int
}

func (bs *buildShared) collect(batch []page.Tuple, rows int64) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.tuples = append(bs.tuples, batch...)
	bs.rows += rows
}

func (bs *buildShared) finish() {
	bs.mu.Lock()
	bs.done++
	bs.mu.Unlock()
	bs.cond.Signal()
}

// BuildParallel bulk-loads the index from src using the given number
// of worker goroutines sharing one scan. Workers compute fingerprints
// and feed a shared collector; the coordinator waits for all of them,
// then packs the collected tuples into pages the same way Build does.
// workers <= 0 degenerates to the serial build.
func (i *Index) BuildParallel(ctx context.Context, src RowSource, workers int) (res BuildResult, err error) {
	if workers <= 0 {
		return i.Build(ctx, src)
	}

	start := time.Now()
	defer func() {
		i.opts.metricsCollector.RecordBuild(res.Tuples, time.Since(start), err)
		i.logger.LogBuild(ctx, res.Tuples, workers, time.Since(start), err)
	}()

	if err = i.checkOpen(); err != nil {
		return res, err
	}
	if err = i.checkEmpty(); err != nil {
		return res, err
	}

	shared := &buildShared{}
	shared.cond = sync.NewCond(&shared.mu)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			defer shared.finish()
			return i.buildWorker(gctx, src, shared)
		})
	}

	// Wait for every participant before merging, then surface the
	// first worker error, if any.
	shared.mu.Lock()
	for shared.done < workers {
		shared.cond.Wait()
	}
	shared.mu.Unlock()
	if err = g.Wait(); err != nil {
		return res, translateError(err)
	}

	res.Rows = shared.rows
	res.Tuples = int64(len(shared.tuples))

	return res, translateError(i.packTuples(ctx, shared.tuples))
}

// buildWorker drains its share of the scan, batching tuples into the
// collector to keep lock traffic low.
func (i *Index) buildWorker(ctx context.Context, src RowSource, shared *buildShared) error {
	batch := make([]page.Tuple, 0, workerBatch)

	flush := func() {
		if len(batch) > 0 {
			shared.collect(batch, int64(len(batch)))
			batch = batch[:0]
		}
	}

	for {
		row, values, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			flush()
			return nil
		}
		if err != nil {
			flush()
			return err
		}
		if err := i.checkValues(values); err != nil {
			return err
		}

		batch = append(batch, page.Tuple{Row: uint64(row), Fingerprint: i.fp.compute(values)})
		if len(batch) == workerBatch {
			flush()
		}
	}
}

// packTuples writes the merged tuple stream through the cached-page
// path.
func (i *Index) packTuples(ctx context.Context, tuples []page.Tuple) error {
	if len(tuples) == 0 {
		return nil
	}

	ar := arena.Acquire()
	defer ar.Release()

	buf := ar.Alloc(page.Size)
	v, err := page.Init(buf, 0)
	if err != nil {
		return err
	}

	for _, t := range tuples {
		if !v.AppendTuple(t) {
			if err := i.flushBuildPage(buf); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if v, err = page.Init(buf, 0); err != nil {
				return err
			}
			if !v.AppendTuple(t) {
				return ErrEmptyPageReject
			}
		}
	}
	if v.Count() > 0 {
		return i.flushBuildPage(buf)
	}

	return nil
}
