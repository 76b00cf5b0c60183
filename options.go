package cuckoodex

import (
	"github.com/hupe1980/cuckoodex/internal/fs"
)

type options struct {
	bitsPerTag        int
	tagsPerBucket     int
	maxKicks          int
	logger            *Logger
	metricsCollector  MetricsCollector
	fsys              fs.FileSystem
	vacuumPagesPerSec float64
}

// Option configures index constructor behavior.
type Option func(*options)

func defaultOptions() options {
	return options{
		bitsPerTag:       DefaultBitsPerTag,
		tagsPerBucket:    DefaultTagsPerBucket,
		maxKicks:         DefaultMaxKicks,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fsys:             fs.Default,
	}
}

func applyOptions(optFns []Option) options {
	o := defaultOptions()
	for _, fn := range optFns {
		fn(&o)
	}
	return o
}

// WithBitsPerTag configures the fingerprint width in bits.
// Higher values lower the false positive rate and raise storage cost
// per distinct fingerprint value. Changing it requires a rebuild.
func WithBitsPerTag(bits int) Option {
	return func(o *options) {
		o.bitsPerTag = bits
	}
}

// WithTagsPerBucket configures the nominal bucket width. The value is
// validated and persisted for compatibility and cost estimation.
func WithTagsPerBucket(tags int) Option {
	return func(o *options) {
		o.tagsPerBucket = tags
	}
}

// WithMaxKicks configures the relocation bound. The value is validated
// and persisted for compatibility.
func WithMaxKicks(kicks int) Option {
	return func(o *options) {
		o.maxKicks = kicks
	}
}

// WithLogger configures structured logging. Nil restores the no-op
// logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures metrics collection. Nil restores the
// no-op collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithFileSystem overrides the filesystem used for the page file and
// its journal. Intended for tests and fault injection.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		if fsys == nil {
			fsys = fs.Default
		}
		o.fsys = fsys
	}
}

// WithVacuumRateLimit throttles vacuum passes to roughly pagesPerSec
// page visits per second. Zero disables throttling.
func WithVacuumRateLimit(pagesPerSec float64) Option {
	return func(o *options) {
		o.vacuumPagesPerSec = pagesPerSec
	}
}
