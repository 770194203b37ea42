package suffixmerge

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
)

// Workers check for cancellation of the merge every this many entries.
const ctxCheckInterval = 1 << 16

// MergeResult describes the files written by Merge.
type MergeResult struct {
	// Text is the de-overlapped concatenation of the parts.
	Text string
	// Tables lists the per-partition tables in partition order. It is empty
	// when the tables were concatenated into Table.
	Tables []string
	// Table is the concatenated table, set only with WithConcat.
	Table string

	Width       int
	GlobalWidth int
	Partitions  []Partition
	Emitted     []int64
}

// Merge merges the partial suffix arrays of parts into the suffix array of
// their de-overlapped concatenation.
//
// Each part is a text file with its table at TablePath(part). Every part but
// the last must end with a copy of the first overlap bytes of the next part
// (see WithOverlap). The merged table is written as one file per partition,
// PartitionPath(output, i), at the width needed to address the whole output;
// concatenated in order they form the final table. The text is written to
// output.
//
// Each partition is merged by its own goroutine. The first failure cancels
// the rest and is returned.
func Merge(ctx context.Context, parts []string, output string, opts ...Option) (*MergeResult, error) {
	o := applyOptions(opts)
	if len(parts) == 0 {
		return nil, ErrNoParts
	}
	if o.threads < 1 {
		return nil, ErrInvalidThreads
	}

	start := time.Now()
	texts := make([][]byte, len(parts))
	for i, p := range parts {
		text, err := LoadText(p)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}

	m, err := newMerger(texts, parts, output, o)
	if err != nil {
		return nil, err
	}
	o.logger.InfoContext(ctx, "merging",
		"parts", len(parts),
		"threads", o.threads,
		"width", m.width,
		"global_width", m.globalWidth,
		"entries", m.total,
	)

	partitions, err := m.plan()
	if err != nil {
		return nil, err
	}

	emitted := make([]int64, len(partitions))
	tables := make([]string, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range partitions {
		tables[p.Index] = PartitionPath(output, p.Index)
		o.logger.LogPartition(gctx, p)
		g.Go(func() error {
			n, err := m.mergePartition(gctx, p)
			emitted[p.Index] = n
			o.logger.LogMergeDone(gctx, p.Index, n, err)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := writeMergedText(output, texts, o.overlap); err != nil {
		return nil, err
	}
	res := &MergeResult{
		Text:        output,
		Tables:      tables,
		Width:       m.width,
		GlobalWidth: m.globalWidth,
		Partitions:  partitions,
		Emitted:     emitted,
	}
	if o.concat {
		res.Table = TablePath(output)
		if err := ConcatTables(res.Table, tables); err != nil {
			return nil, err
		}
		for _, t := range tables {
			if err := os.Remove(t); err != nil {
				return nil, ioErr("remove", t, err)
			}
		}
		res.Tables = nil
	}
	o.logger.InfoContext(ctx, "merge finished",
		"output", output,
		"entries", m.total,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// merger holds the read-only state shared by all merge workers.
type merger struct {
	texts       [][]byte
	tables      []string
	output      string
	width       int
	globalWidth int
	// limits[j] is the first position of part j that lies in its overlap
	// margin; positions at or past it are emitted by part j+1 instead.
	limits []uint64
	// deltas[j] translates positions of part j into output positions.
	deltas []uint64
	total  uint64
	o      options
}

func newMerger(texts [][]byte, parts []string, output string, o options) (*merger, error) {
	if o.overlap < 0 {
		return nil, fmt.Errorf("%w: negative overlap %d", ErrInvalidRange, o.overlap)
	}
	m := &merger{
		texts:  texts,
		tables: make([]string, len(parts)),
		output: output,
		limits: make([]uint64, len(parts)),
		deltas: make([]uint64, len(parts)),
		o:      o,
	}
	for j, p := range parts {
		m.tables[j] = TablePath(p)
		st, err := os.Stat(m.tables[j])
		if err != nil {
			return nil, ioErr("stat", m.tables[j], err)
		}
		width, err := TableWidth(st.Size(), int64(len(texts[j])))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.tables[j], err)
		}
		if j == 0 {
			m.width = width
		} else if width != m.width {
			return nil, &WidthMismatchError{Path: m.tables[j], Expected: m.width, Actual: width}
		}

		limit := len(texts[j])
		if j < len(parts)-1 {
			if limit < o.overlap {
				return nil, fmt.Errorf("%w: %s has %d bytes, overlap is %d", ErrFragmentTooShort, p, limit, o.overlap)
			}
			limit -= o.overlap
		}
		m.deltas[j] = m.total
		m.limits[j] = uint64(limit)
		m.total += uint64(limit)
	}
	m.globalWidth = PointerWidth(m.total)
	return m, nil
}

func (m *merger) plan() ([]Partition, error) {
	tables := make([]*Table, len(m.tables))
	defer func() {
		for _, t := range tables {
			if t != nil {
				t.Close()
			}
		}
	}()
	for j, path := range m.tables {
		t, err := OpenTable(path, m.width)
		if err != nil {
			return nil, err
		}
		tables[j] = t
	}
	return PlanPartitions(m.texts, tables, m.o.threads)
}

// advance returns the next position of part j within its range that is not
// in the overlap margin. ok is false once the range or table is exhausted.
func (m *merger) advance(c *Cursor, j int, end int64) (pos uint64, ok bool, err error) {
	for c.Index() < end {
		pos, err = c.Next()
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, err
		}
		if pos < m.limits[j] {
			return pos, true, nil
		}
	}
	return 0, false, nil
}

func (m *merger) mergePartition(ctx context.Context, p Partition) (emitted int64, err error) {
	path := PartitionPath(m.output, p.Index)
	log := m.o.logger.WithPartition(p.Index)

	cursors := make([]*Cursor, len(p.Ranges))
	defer func() {
		for _, c := range cursors {
			if c != nil {
				c.Close()
			}
		}
	}()
	for j, r := range p.Ranges {
		c, err := OpenCursor(m.tables[j], r.Start, m.width)
		if err != nil {
			return 0, err
		}
		cursors[j] = c
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, ioErr("create", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = ioErr("close", path, cerr)
		}
	}()
	w := bufio.NewWriterSize(f, cursorBufferSize)

	h := mergeHeap{texts: m.texts, items: make([]mergeEntry, 0, len(cursors))}
	for j, c := range cursors {
		pos, ok, err := m.advance(c, j, p.Ranges[j].End)
		if err != nil {
			return 0, err
		}
		if ok {
			h.push(mergeEntry{source: j, position: pos})
		}
	}

	var (
		prev   []byte
		warned bool
		buf    = make([]byte, 0, 8)
	)
	for h.len() > 0 {
		e := h.pop()
		buf = AppendUint(buf[:0], e.position+m.deltas[e.source], m.globalWidth)
		if _, err := w.Write(buf); err != nil {
			return emitted, ioErr("write", path, err)
		}
		emitted++

		cur := m.texts[e.source][e.position:]
		if !warned && prev != nil {
			n, found := commonPrefix(prev, cur, m.o.matchProbe)
			switch {
			case !found:
				log.LogLongMatch(ctx, m.o.matchProbe, false)
				warned = true
			case n > m.o.longMatch:
				log.LogLongMatch(ctx, n, true)
				warned = true
			}
		}
		prev = cur

		if emitted%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return emitted, err
			}
		}

		pos, ok, err := m.advance(cursors[e.source], e.source, p.Ranges[e.source].End)
		if err != nil {
			return emitted, err
		}
		if ok {
			h.push(mergeEntry{source: e.source, position: pos})
		}
	}

	if err := w.Flush(); err != nil {
		return emitted, ioErr("write", path, err)
	}
	return emitted, nil
}

// mergeEntry is the head of one part in the merge heap. The suffix it
// stands for is texts[source][position:].
type mergeEntry struct {
	source   int
	position uint64
}

// mergeHeap is a min-heap of mergeEntry ordered by suffix content only.
type mergeHeap struct {
	texts [][]byte
	items []mergeEntry
}

func (h *mergeHeap) len() int { return len(h.items) }

func (h *mergeHeap) less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	return bytes.Compare(h.texts[a.source][a.position:], h.texts[b.source][b.position:]) < 0
}

func (h *mergeHeap) push(e mergeEntry) {
	h.items = append(h.items, e)
	h.siftUp(len(h.items) - 1)
}

func (h *mergeHeap) pop() mergeEntry {
	n := len(h.items)
	root := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if n-1 > 0 {
		h.siftDown(0)
	}
	return root
}

func (h *mergeHeap) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !h.less(i, p) {
			return
		}
		h.items[i], h.items[p] = h.items[p], h.items[i]
		i = p
	}
}

func (h *mergeHeap) siftDown(i int) {
	n := len(h.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && h.less(r, l) {
			best = r
		}
		if !h.less(best, i) {
			return
		}
		h.items[i], h.items[best] = h.items[best], h.items[i]
		i = best
	}
}

func writeMergedText(path string, texts [][]byte, overlap int) error {
	f, err := os.Create(path)
	if err != nil {
		return ioErr("create", path, err)
	}
	w := bufio.NewWriterSize(f, cursorBufferSize)
	for j, text := range texts {
		if j < len(texts)-1 {
			text = text[:len(text)-overlap]
		}
		if _, err := w.Write(text); err != nil {
			f.Close()
			return ioErr("write", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return ioErr("write", path, err)
	}
	return ioErr("close", path, f.Close())
}
