// Package suffixmerge builds suffix arrays for corpora that do not fit a
// single in-memory sort, by merging partial arrays built over overlapping
// fragments of the corpus.
//
// Suffix arrays are stored on disk as flat files of fixed-width little-endian
// integers with no header. The width is the smallest number of bytes able to
// address every offset of the sequence the array indexes.
package suffixmerge

import (
	"encoding/binary"
	"math/bits"
)

// PointerWidth returns ceil(log2(n)/8), the number of bytes needed to store
// any offset in [0, n). It is 1 for n <= 1.
func PointerWidth(n uint64) int {
	if n <= 1 {
		return 1
	}
	return (bits.Len64(n-1) + 7) / 8
}

func checkWidth(width int) error {
	if width < 1 || width > 8 {
		return ErrInvalidWidth
	}
	return nil
}

// AppendUint appends the low width bytes of v to dst, little-endian.
// The caller guarantees that v fits in width bytes; higher bytes are dropped.
func AppendUint(dst []byte, v uint64, width int) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(dst, tmp[:width]...)
}

// Uint decodes a single little-endian value of len(b) bytes, len(b) <= 8.
func Uint(b []byte) uint64 {
	var tmp [8]byte
	copy(tmp[:], b)
	return binary.LittleEndian.Uint64(tmp[:])
}

func fits(v uint64, width int) bool {
	return width == 8 || v>>(uint(width)*8) == 0
}

// Encode writes values at the given width. Values that do not fit are
// rejected with a *ValueOverflowError instead of being truncated.
func Encode(values []uint64, width int) ([]byte, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(values)*width)
	for _, v := range values {
		if !fits(v, width) {
			return nil, &ValueOverflowError{Value: v, Width: width}
		}
		out = AppendUint(out, v, width)
	}
	return out, nil
}

// Decode is the inverse of Encode.
func Decode(b []byte, width int) ([]uint64, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}
	if len(b)%width != 0 {
		return nil, ErrTableLength
	}
	out := make([]uint64, len(b)/width)
	for i := range out {
		out[i] = Uint(b[i*width : (i+1)*width])
	}
	return out, nil
}
