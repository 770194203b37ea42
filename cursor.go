package suffixmerge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

const cursorBufferSize = 1 << 20

// Cursor streams a table file front to back from a starting entry.
type Cursor struct {
	f     *os.File
	r     *bufio.Reader
	path  string
	width int
	index int64
	buf   [8]byte
}

// OpenCursor opens the table at path positioned at entry start.
func OpenCursor(path string, start int64, width int) (*Cursor, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	if _, err := f.Seek(start*int64(width), io.SeekStart); err != nil {
		f.Close()
		return nil, ioErr("seek", path, err)
	}
	return &Cursor{
		f:     f,
		r:     bufio.NewReaderSize(f, cursorBufferSize),
		path:  path,
		width: width,
		index: start,
	}, nil
}

// Next returns the next entry. It returns io.EOF once the table is
// exhausted.
func (c *Cursor) Next() (uint64, error) {
	n, err := io.ReadFull(c.r, c.buf[:c.width])
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return 0, fmt.Errorf("%w: %s ends with a partial entry of %d bytes", ErrTableLength, c.path, n)
	default:
		return 0, ioErr("read", c.path, err)
	}
	c.index++
	return Uint(c.buf[:c.width]), nil
}

// Index returns the number of entries before the one Next returns next.
func (c *Cursor) Index() int64 { return c.index }

// Close closes the underlying file.
func (c *Cursor) Close() error {
	return c.f.Close()
}
