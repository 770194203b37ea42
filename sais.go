package suffixmerge

import (
	"errors"
	"index/suffixarray"
	"strconv"
	"unsafe"
)

var errIndexLayout = errors.New("suffixmerge: unexpected index/suffixarray layout")

// saIndex mirrors suffixarray.Index, which is
//
//	struct { data []byte; sa struct { int32 []int32; int64 []int64 } }
//
// The stdlib populates int32 when len(data) fits in an int32 and int64 otherwise.
type saIndex struct {
	data []byte
	sa32 []int32
	sa64 []int64
}

// BuildSuffixArray returns the suffix array of text: the start offsets of
// every suffix, in ascending lexicographic order of the suffixes.
func BuildSuffixArray(text []byte) ([]uint64, error) {
	if strconv.IntSize != 32 && strconv.IntSize != 64 {
		return nil, ErrUnsupportedIntSize
	}

	idx := (*saIndex)(unsafe.Pointer(suffixarray.New(text)))
	sa := make([]uint64, len(text))
	switch {
	case len(idx.sa32) == len(text):
		for i, p := range idx.sa32 {
			sa[i] = uint64(p)
		}
	case len(idx.sa64) == len(text):
		for i, p := range idx.sa64 {
			sa[i] = uint64(p)
		}
	default:
		return nil, errIndexLayout
	}
	return sa, nil
}
