package suffixmerge

import "runtime"

const (
	// DefaultOverlap is the number of bytes each fragment but the last shares
	// with the start of the following fragment. Parts must be built with at
	// least this much overlap for a merge using it to be correct.
	DefaultOverlap = 100000

	// DefaultThreads is the number of merge partitions.
	DefaultThreads = 8

	defaultMatchProbe = 50_000_000
	defaultLongMatch  = 5_000_000
)

type options struct {
	logger      *Logger
	overlap     int
	threads     int
	concat      bool
	minWidth    int
	jobs        int
	concurrency int
	tmpDir      string
	matchProbe  int
	longMatch   int
}

func defaultOptions() options {
	return options{
		logger:     NoopLogger(),
		overlap:    DefaultOverlap,
		threads:    DefaultThreads,
		matchProbe: defaultMatchProbe,
		longMatch:  defaultLongMatch,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Option configures MakeTable, MakePart, Merge and Build.
type Option func(*options)

// WithLogger sets the logger used for progress and advisory warnings.
// If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithOverlap sets the overlap margin shared by adjacent fragments.
func WithOverlap(n int) Option {
	return func(o *options) {
		o.overlap = n
	}
}

// WithThreads sets the number of merge partitions, one goroutine each.
func WithThreads(n int) Option {
	return func(o *options) {
		o.threads = n
	}
}

// WithConcat makes Merge concatenate the partition tables into
// <output>.table.bin and remove them afterwards.
func WithConcat(concat bool) Option {
	return func(o *options) {
		o.concat = concat
	}
}

// WithMinWidth forces MakePart to encode at least this many bytes per entry.
// Build uses it so that every part of a corpus shares one width.
func WithMinWidth(width int) Option {
	return func(o *options) {
		o.minWidth = width
	}
}

// WithJobs sets how many parts Build splits the corpus into. Zero picks a
// count from the corpus size.
func WithJobs(n int) Option {
	return func(o *options) {
		o.jobs = n
	}
}

// WithConcurrency bounds how many parts Build constructs at once.
// Zero picks a bound from the corpus size, capped at runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithTmpDir sets the directory Build uses for parts and merge output.
// Defaults to the directory holding the data file.
func WithTmpDir(dir string) Option {
	return func(o *options) {
		o.tmpDir = dir
	}
}

// WithLongMatchLimits overrides the probe bound and the warning threshold
// of the long-match detector.
func WithLongMatchLimits(probe, threshold int) Option {
	return func(o *options) {
		o.matchProbe = probe
		o.longMatch = threshold
	}
}

func (o options) buildConcurrency() int {
	if o.concurrency > 0 {
		return o.concurrency
	}
	return runtime.NumCPU()
}
