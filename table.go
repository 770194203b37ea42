package suffixmerge

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// Table gives random access to an on-disk suffix array. It is meant for
// bounded binary searches; sequential passes should use a Cursor.
//
// A Table holds no mutable state and is safe for concurrent use as long as
// the underlying io.ReaderAt is.
type Table struct {
	r      io.ReaderAt
	closer io.Closer
	path   string
	width  int
	n      int64
}

// NewTable wraps r, which holds size bytes of entries encoded at width.
func NewTable(r io.ReaderAt, size int64, width int) (*Table, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	if size%int64(width) != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of width %d", ErrTableLength, size, width)
	}
	return &Table{r: r, width: width, n: size / int64(width)}, nil
}

// OpenTable opens the table file at path, reading entries with positional
// reads.
func OpenTable(path string, width int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioErr("stat", path, err)
	}
	t, err := NewTable(f, st.Size(), width)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.closer, t.path = f, path
	return t, nil
}

// OpenMappedTable opens the table file at path through a read-only memory
// mapping. Lookups then avoid a system call each, which pays off for
// repeated searches over the same table.
func OpenMappedTable(path string, width int) (*Table, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, ioErr("mmap", path, err)
	}
	t, err := NewTable(m, int64(m.Len()), width)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.closer, t.path = m, path
	return t, nil
}

// TableWidth infers the pointer width of a table of tableSize bytes indexing
// a text of textLen bytes.
func TableWidth(tableSize, textLen int64) (int, error) {
	if textLen <= 0 || tableSize%textLen != 0 {
		return 0, fmt.Errorf("%w: table of %d bytes for text of %d bytes", ErrTableLength, tableSize, textLen)
	}
	width := int(tableSize / textLen)
	if err := checkWidth(width); err != nil {
		return 0, err
	}
	return width, nil
}

// Len returns the number of entries in the table.
func (t *Table) Len() int64 { return t.n }

// Width returns the pointer width of the table.
func (t *Table) Width() int { return t.width }

// Load returns entry i.
func (t *Table) Load(i int64) (uint64, error) {
	if i < 0 || i >= t.n {
		return 0, fmt.Errorf("%w: index %d out of range [0,%d)", ErrTableLength, i, t.n)
	}
	var buf [8]byte
	n, err := t.r.ReadAt(buf[:t.width], i*int64(t.width))
	if n < t.width {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return 0, ioErr("read", t.path, err)
	}
	return Uint(buf[:t.width]), nil
}

func (t *Table) suffix(text []byte, i int64) ([]byte, error) {
	p, err := t.Load(i)
	if err != nil {
		return nil, err
	}
	if p > uint64(len(text)) {
		return nil, fmt.Errorf("%w: entry %d points at %d past text of %d bytes", ErrTableLength, i, p, len(text))
	}
	return text[p:], nil
}

// search returns the first index in [lo, hi) whose suffix satisfies pred,
// or hi. pred must be monotone over the range.
func (t *Table) search(text []byte, lo, hi int64, pred func(suffix []byte) bool) (int64, error) {
	for lo < hi {
		mid := int64(uint64(lo+hi) >> 1)
		s, err := t.suffix(text, mid)
		if err != nil {
			return 0, err
		}
		if pred(s) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// Locate returns the insertion point of query: every entry before it denotes
// a suffix of text less than query, every entry at or after it a suffix
// greater than or equal to query.
func (t *Table) Locate(text, query []byte) (int64, error) {
	return t.search(text, 0, t.n, func(s []byte) bool {
		return bytes.Compare(s, query) >= 0
	})
}

// LocatePrefix returns the half-open range of entries whose suffix starts
// with prefix.
func (t *Table) LocatePrefix(text, prefix []byte) (int64, int64, error) {
	lo, err := t.Locate(text, prefix)
	if err != nil {
		return 0, 0, err
	}
	hi, err := t.search(text, lo, t.n, func(s []byte) bool {
		return !bytes.HasPrefix(s, prefix)
	})
	if err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// Close releases the underlying file or mapping, if the Table owns one.
func (t *Table) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}
