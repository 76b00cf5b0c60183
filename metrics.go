package cuckoodex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational
// metrics. Implement it to integrate with monitoring systems like
// Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordBuild is called after each bulk build. tuples is the
	// number of index tuples written.
	RecordBuild(tuples int64, duration time.Duration, err error)

	// RecordScan is called after each bitmap scan. matches is the
	// number of candidate rows returned, false positives included.
	RecordScan(matches int64, duration time.Duration, err error)

	// RecordVacuum is called after each bulk delete pass.
	RecordVacuum(removed int64, duration time.Duration, err error)

	// RecordArchive is called after each archive or restore.
	RecordArchive(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)        {}
func (NoopMetricsCollector) RecordBuild(int64, time.Duration, error)  {}
func (NoopMetricsCollector) RecordScan(int64, time.Duration, error)   {}
func (NoopMetricsCollector) RecordVacuum(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordArchive(time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external
// dependencies.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	BuildCount       atomic.Int64
	BuildErrors      atomic.Int64
	BuildTuples      atomic.Int64
	ScanCount        atomic.Int64
	ScanErrors       atomic.Int64
	ScanMatches      atomic.Int64
	ScanTotalNanos   atomic.Int64
	VacuumCount      atomic.Int64
	VacuumErrors     atomic.Int64
	VacuumRemoved    atomic.Int64
	ArchiveCount     atomic.Int64
	ArchiveErrors    atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(tuples int64, duration time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTuples.Add(tuples)
	if err != nil {
		b.BuildErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(matches int64, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanMatches.Add(matches)
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// RecordVacuum implements MetricsCollector.
func (b *BasicMetricsCollector) RecordVacuum(removed int64, duration time.Duration, err error) {
	b.VacuumCount.Add(1)
	b.VacuumRemoved.Add(removed)
	if err != nil {
		b.VacuumErrors.Add(1)
	}
}

// RecordArchive implements MetricsCollector.
func (b *BasicMetricsCollector) RecordArchive(duration time.Duration, err error) {
	b.ArchiveCount.Add(1)
	if err != nil {
		b.ArchiveErrors.Add(1)
	}
}

var _ MetricsCollector = (*BasicMetricsCollector)(nil)
