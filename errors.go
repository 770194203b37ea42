package suffixmerge

import (
	"errors"
	"fmt"
)

var (
	// ErrTableLength is returned when a table file or buffer is not a whole
	// number of entries, or does not hold one entry per text byte.
	ErrTableLength = errors.New("suffixmerge: malformed table length")

	// ErrInvalidWidth is returned for pointer widths outside 1..8.
	ErrInvalidWidth = errors.New("suffixmerge: pointer width must be in 1..8")

	// ErrInvalidRange is returned when a part does not satisfy start < end <= size.
	ErrInvalidRange = errors.New("suffixmerge: invalid byte range")

	// ErrFragmentTooShort is returned when a non-final fragment cannot hold
	// its overlap margin.
	ErrFragmentTooShort = errors.New("suffixmerge: fragment shorter than overlap margin")

	// ErrNoParts is returned when Merge or PlanPartitions get no input.
	ErrNoParts = errors.New("suffixmerge: no parts to merge")
	// ErrInvalidThreads is returned for a partition count below one.
	ErrInvalidThreads = errors.New("suffixmerge: thread count must be positive")

	// ErrUnsupportedIntSize is returned on platforms whose int is neither
	// 32 nor 64 bits wide.
	ErrUnsupportedIntSize = errors.New("suffixmerge: unsupported int size")
)

// IOError wraps a failed open, seek, read or write on a table or text file.
// These are fatal: nothing in this package retries them.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("suffixmerge: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// WidthMismatchError indicates that the partial tables of a merge were not
// all encoded at the same pointer width.
type WidthMismatchError struct {
	Path     string
	Expected int
	Actual   int
}

func (e *WidthMismatchError) Error() string {
	return fmt.Sprintf("suffixmerge: width mismatch in %s: expected %d, got %d", e.Path, e.Expected, e.Actual)
}

// ValueOverflowError is returned by Encode when a value does not fit in the
// requested width.
type ValueOverflowError struct {
	Value uint64
	Width int
}

func (e *ValueOverflowError) Error() string {
	return fmt.Sprintf("suffixmerge: value %d does not fit in %d bytes", e.Value, e.Width)
}
