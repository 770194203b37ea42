package suffixmerge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// jobsFor picks how many parts to split a corpus of size bytes into, and
// how many of them to build at once. Every part in flight is held in memory
// whole, so the largest corpora build only 20 at a time.
func jobsFor(size int64) (jobs, concurrency int) {
	switch {
	case size > 10e9:
		return 100, 20
	case size > 1e9:
		return 96, 96
	case size > 10e6:
		return 4, 4
	default:
		return 1, 1
	}
}

// partPlan resolves the part count and build concurrency for a corpus of
// size bytes, honouring WithJobs and WithConcurrency.
func partPlan(size int64, o options) (jobs, concurrency int) {
	jobs, limit := jobsFor(size)
	if o.jobs > 0 {
		jobs, limit = o.jobs, o.jobs
	}
	if o.concurrency > 0 {
		return jobs, o.concurrency
	}
	return jobs, min(limit, runtime.NumCPU())
}

// splitRanges cuts [0, size) into at most jobs fragments of stride
// size/jobs, each extended by overlap bytes into the next. Splitting stops
// at the first fragment that reaches the end of the input.
func splitRanges(size int64, jobs int, overlap int) []Range {
	if int64(jobs) > size {
		jobs = int(max(size, 1))
	}
	stride := size / int64(jobs)
	var ranges []Range
	for i := 0; i < jobs; i++ {
		r := Range{Start: int64(i) * stride, End: min(int64(i+1)*stride+int64(overlap), size)}
		if i == jobs-1 {
			r.End = size
		}
		ranges = append(ranges, r)
		if r.End == size {
			break
		}
	}
	return ranges
}

// Build writes TablePath(path) for the file at path. Small inputs are built
// in one go with MakeTable. Larger ones are split into overlapping parts,
// each part is built separately (WithConcurrency at a time), and the parts
// are merged (WithThreads partitions) into the final table. Unless
// WithConcurrency says otherwise, at most min(parts, NumCPU) parts are built
// at once, and 20 for corpora over 10 GB.
//
// Parts that come out with a wrong size are rebuilt once before Build gives
// up. Intermediate files live in WithTmpDir and are removed on success.
func Build(ctx context.Context, path string, opts ...Option) (*TableInfo, error) {
	o := applyOptions(opts)
	start := time.Now()

	st, err := os.Stat(path)
	if err != nil {
		return nil, ioErr("stat", path, err)
	}
	size := st.Size()
	jobs, concurrency := partPlan(size, o)
	o.concurrency = concurrency
	ranges := splitRanges(size, jobs, o.overlap)
	if len(ranges) <= 1 {
		return makeWhole(path, o)
	}

	tmp := o.tmpDir
	if tmp == "" {
		tmp = filepath.Dir(path)
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, ioErr("mkdir", tmp, err)
	}
	base := filepath.Join(tmp, filepath.Base(path))

	// All parts share the width of the largest fragment so that they can be
	// merged together.
	var largest int64
	parts := make([]string, len(ranges))
	for i, r := range ranges {
		largest = max(largest, r.Len())
		parts[i] = PartPath(base, r.Start, r.End)
	}
	o.minWidth = max(o.minWidth, PointerWidth(uint64(largest)))
	o.logger.InfoContext(ctx, "making suffix array parts",
		"path", path,
		"size", size,
		"parts", len(ranges),
		"width", o.minWidth,
	)

	failed := buildParts(ctx, path, parts, ranges, allIndexes(len(ranges)), o)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range ranges {
		if checkPart(parts[i], ranges[i], o.minWidth) != nil {
			failed[i] = true
		}
	}
	if len(failed) > 0 {
		retry := make([]int, 0, len(failed))
		for i := range failed {
			retry = append(retry, i)
		}
		o.logger.WarnContext(ctx, "rerunning failed parts", "count", len(retry))
		if err := buildPartsStrict(ctx, path, parts, ranges, retry, o); err != nil {
			return nil, err
		}
		for _, i := range retry {
			if err := checkPart(parts[i], ranges[i], o.minWidth); err != nil {
				return nil, err
			}
		}
	}

	merged := base + ".merged"
	res, err := Merge(ctx, parts, merged,
		WithLogger(o.logger),
		WithOverlap(o.overlap),
		WithThreads(o.threads),
		WithConcat(true),
		WithLongMatchLimits(o.matchProbe, o.longMatch),
	)
	if err != nil {
		return nil, err
	}

	info := &TableInfo{
		TextPath:  path,
		TablePath: TablePath(path),
		Entries:   size,
		Width:     res.GlobalWidth,
	}
	if err := os.Rename(res.Table, info.TablePath); err != nil {
		return nil, ioErr("rename", res.Table, err)
	}
	if err := verifyTable(info.TablePath, size, res.GlobalWidth); err != nil {
		return nil, err
	}

	cleanup := []string{merged}
	for _, p := range parts {
		cleanup = append(cleanup, p, TablePath(p))
	}
	for _, p := range cleanup {
		if err := os.Remove(p); err != nil {
			return nil, ioErr("remove", p, err)
		}
	}
	o.logger.LogTableWritten(ctx, info.TablePath, info.Entries, info.Width, time.Since(start))
	return info, nil
}

func makeWhole(path string, o options) (*TableInfo, error) {
	text, err := LoadText(path)
	if err != nil {
		return nil, err
	}
	return makeTable(text, path, o)
}

func allIndexes(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// buildParts builds the selected parts and reports which of them failed.
// Failures are logged, not returned, so that they can be retried.
func buildParts(ctx context.Context, src string, parts []string, ranges []Range, which []int, o options) map[int]bool {
	var (
		mu     sync.Mutex
		failed = make(map[int]bool)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(o.buildConcurrency(), len(which)))
	for _, i := range which {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			r := ranges[i]
			if _, err := makePart(src, parts[i], r.Start, r.End, o); err != nil {
				o.logger.WarnContext(gctx, "part failed", "part", parts[i], "error", err)
				mu.Lock()
				failed[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return failed
}

// buildPartsStrict builds the selected parts and fails on the first error.
func buildPartsStrict(ctx context.Context, src string, parts []string, ranges []Range, which []int, o options) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(o.buildConcurrency(), len(which)))
	for _, i := range which {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := ranges[i]
			_, err := makePart(src, parts[i], r.Start, r.End, o)
			return err
		})
	}
	return g.Wait()
}

// checkPart verifies that a part and its table have the sizes implied by
// its range and width.
func checkPart(part string, r Range, width int) error {
	st, err := os.Stat(part)
	if err != nil {
		return ioErr("stat", part, err)
	}
	if st.Size() != r.Len() {
		return fmt.Errorf("%w: %s has %d bytes, want %d", ErrTableLength, part, st.Size(), r.Len())
	}
	return verifyTable(TablePath(part), r.Len(), width)
}

func verifyTable(path string, entries int64, width int) error {
	st, err := os.Stat(path)
	if err != nil {
		return ioErr("stat", path, err)
	}
	if st.Size() != entries*int64(width) {
		return fmt.Errorf("%w: %s has %d bytes, want %d entries of %d bytes", ErrTableLength, path, st.Size(), entries, width)
	}
	return nil
}
