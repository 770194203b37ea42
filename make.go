package suffixmerge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// TableInfo describes a text file and the suffix array written for it.
type TableInfo struct {
	TextPath  string
	TablePath string
	Entries   int64
	Width     int
}

// TablePath returns the path of the suffix array of the text at path.
func TablePath(path string) string {
	return path + ".table.bin"
}

// PartPath returns the path of the fragment [start, end) of the text at path.
// Its table lives at TablePath(PartPath(...)).
func PartPath(path string, start, end int64) string {
	return fmt.Sprintf("%s.part.%d-%d", path, start, end)
}

// PartitionPath returns the path of the table written by merge partition part.
func PartitionPath(output string, part int) string {
	return fmt.Sprintf("%s.table.bin.%04d", output, part)
}

// LoadText reads the whole file at path into memory.
func LoadText(path string) ([]byte, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr("read", path, err)
	}
	return text, nil
}

// ReadSuffixArray reads and decodes a whole table file. Only meant for
// tables that comfortably fit in memory.
func ReadSuffixArray(path string, width int) ([]uint64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErr("read", path, err)
	}
	sa, err := Decode(b, width)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sa, nil
}

// MakeTable builds the suffix array of the file at path in memory and writes
// it to TablePath(path).
func MakeTable(path string, opts ...Option) (*TableInfo, error) {
	o := applyOptions(opts)
	o.logger.Info("reading dataset", "path", path)
	text, err := LoadText(path)
	if err != nil {
		return nil, err
	}
	return makeTable(text, path, o)
}

// MakePart builds the suffix array of bytes [start, end) of the file at
// path. The fragment is written to PartPath(path, start, end) and its table
// next to it, at the fragment's own width (or WithMinWidth if larger).
func MakePart(path string, start, end int64, opts ...Option) (*TableInfo, error) {
	return makePart(path, PartPath(path, start, end), start, end, applyOptions(opts))
}

func makePart(src, dst string, start, end int64, o options) (*TableInfo, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, ioErr("open", src, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, ioErr("stat", src, err)
	}
	if start < 0 || start >= end || end > st.Size() {
		return nil, fmt.Errorf("%w: [%d, %d) of %d bytes", ErrInvalidRange, start, end, st.Size())
	}

	o.logger = o.logger.WithPath(dst)
	o.logger.Info("loading part", "source", src, "start", start, "end", end)
	text := make([]byte, end-start)
	if _, err := io.ReadFull(io.NewSectionReader(f, start, end-start), text); err != nil {
		return nil, ioErr("read", src, err)
	}
	if err := os.WriteFile(dst, text, 0o644); err != nil {
		return nil, ioErr("write", dst, err)
	}
	return makeTable(text, dst, o)
}

func makeTable(text []byte, textPath string, o options) (*TableInfo, error) {
	start := time.Now()
	width := max(PointerWidth(uint64(len(text))), o.minWidth)
	if err := checkWidth(width); err != nil {
		return nil, err
	}

	sa, err := BuildSuffixArray(text)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("suffix array built", "entries", len(sa), "elapsed", time.Since(start))

	info := &TableInfo{
		TextPath:  textPath,
		TablePath: TablePath(textPath),
		Entries:   int64(len(sa)),
		Width:     width,
	}
	if err := writeTable(info.TablePath, sa, width); err != nil {
		return nil, err
	}
	o.logger.LogTableWritten(context.Background(), info.TablePath, info.Entries, width, time.Since(start))
	return info, nil
}

func writeTable(path string, sa []uint64, width int) error {
	f, err := os.Create(path)
	if err != nil {
		return ioErr("create", path, err)
	}
	w := bufio.NewWriterSize(f, cursorBufferSize)
	buf := make([]byte, 0, 4096*width)
	for i, p := range sa {
		buf = AppendUint(buf, p, width)
		if len(buf) == cap(buf) || i == len(sa)-1 {
			if _, err := w.Write(buf); err != nil {
				f.Close()
				return ioErr("write", path, err)
			}
			buf = buf[:0]
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return ioErr("write", path, err)
	}
	return ioErr("close", path, f.Close())
}

// ConcatTables concatenates the partition tables srcs, in order, into dst.
func ConcatTables(dst string, srcs []string) error {
	out, err := os.Create(dst)
	if err != nil {
		return ioErr("create", dst, err)
	}
	w := bufio.NewWriterSize(out, cursorBufferSize)
	for _, src := range srcs {
		if err := appendFile(w, src); err != nil {
			out.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return ioErr("write", dst, err)
	}
	return ioErr("close", dst, out.Close())
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return ioErr("open", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return ioErr("copy", path, err)
	}
	return nil
}
