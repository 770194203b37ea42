package suffixmerge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// DocSeparator starts every document of a corpus. It is followed by the
// document ID as a little-endian uint32 and then the document text. IDs
// start at 1.
var DocSeparator = []byte{0xff, 0xff}

const docHeaderSize = 6

var (
	// ErrNoDocument is returned when a position is not preceded by any
	// document header.
	ErrNoDocument = errors.New("suffixmerge: position is not inside a document")

	// ErrNoSizes is returned by document retrieval when the corpus has no
	// size file.
	ErrNoSizes = errors.New("suffixmerge: corpus has no size file")
)

// SizesPath returns the path of the document offsets file of the corpus at
// path: len+1 little-endian uint64 offsets, document id spanning
// [offsets[id-1], offsets[id]).
func SizesPath(path string) string {
	return path + ".size"
}

// headerBefore returns the start of the last document header beginning
// before end, or -1.
func headerBefore(text []byte, end int) int {
	i := bytes.LastIndex(text[:end], DocSeparator)
	if i < 0 {
		return -1
	}
	// The ID may itself contain 0xffff; the header is the first separator
	// within the six bytes ending at the match.
	lo := max(i-docHeaderSize+len(DocSeparator), 0)
	return lo + bytes.Index(text[lo:i+len(DocSeparator)], DocSeparator)
}

// DocumentAt returns the ID of the document that holds text[pos].
func DocumentAt(text []byte, pos uint64) (uint32, error) {
	if pos >= uint64(len(text)) {
		return 0, fmt.Errorf("%w: %d past text of %d bytes", ErrInvalidRange, pos, len(text))
	}
	h := headerBefore(text, min(int(pos)+len(DocSeparator), len(text)))
	if h < 0 || h+docHeaderSize > len(text) {
		return 0, fmt.Errorf("%w: %d", ErrNoDocument, pos)
	}
	return binary.LittleEndian.Uint32(text[h+len(DocSeparator):]), nil
}

// documentIDs returns the document ID of every position of text, 0 for
// bytes before the first header.
func documentIDs(text []byte) []uint32 {
	ids := make([]uint32, len(text))
	var cur uint32
	for i := 0; i < len(text); {
		if i+docHeaderSize <= len(text) && bytes.HasPrefix(text[i:], DocSeparator) {
			cur = binary.LittleEndian.Uint32(text[i+len(DocSeparator):])
			for k := i; k < i+docHeaderSize; k++ {
				ids[k] = cur
			}
			i += docHeaderSize
			continue
		}
		ids[i] = cur
		i++
	}
	return ids
}

// clipToDocument trims before to the text after the last document header
// it contains and after to the text preceding the first separator.
func clipToDocument(before, after []byte) ([]byte, []byte) {
	if h := headerBefore(before, len(before)); h >= 0 {
		before = before[min(h+docHeaderSize, len(before)):]
	}
	if i := bytes.Index(after, DocSeparator); i >= 0 {
		after = after[:i]
	}
	return before, after
}
