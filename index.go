package suffixmerge

import (
	"bytes"
	"sort"

	"github.com/viniciusth/rmq"
	"golang.org/x/text/unicode/norm"
)

type IndexBuilder struct {
	text        []byte
	suffixArray []uint64
	useLCP      bool
	useDocs     bool
	normalize   bool
}

func NewIndexBuilder(text []byte) *IndexBuilder {
	return &IndexBuilder{
		text:    text,
		useLCP:  true,
		useDocs: true,
	}
}

// Skips the LCP array construction, this makes a lookup O(|P| * log(|S|)) instead of O(|P| + log(|S|)).
// Saves O(|S|) memory: doesn't use 2*|S| extra memory.
func (b *IndexBuilder) SkipLCP() *IndexBuilder {
	b.useLCP = false
	return b
}

// Skips the document listing structures, Documents then scans every
// occurrence instead of only one per document.
// Saves O(|S|) memory: doesn't keep a document ID and a prev entry per byte.
func (b *IndexBuilder) SkipDocListing() *IndexBuilder {
	b.useDocs = false
	return b
}

// Normalizes patterns with NFC before searching.
func (b *IndexBuilder) Normalize() *IndexBuilder {
	b.normalize = true
	return b
}

// Uses an already built suffix array of the text, e.g. one read back with
// ReadSuffixArray, instead of building it.
func (b *IndexBuilder) WithSuffixArray(sa []uint64) *IndexBuilder {
	b.suffixArray = sa
	return b
}

func (b *IndexBuilder) Build() (*Index, error) {
	sa := b.suffixArray
	if sa == nil {
		var err error
		if sa, err = BuildSuffixArray(b.text); err != nil {
			return nil, err
		}
	}
	if len(sa) != len(b.text) {
		return nil, ErrTableLength
	}

	var lcp []int
	var lcpRMQ *rmq.RMQHybridNaive[int]
	if b.useLCP && len(sa) > 1 {
		lcp = BuildLCPArray(sa, b.text)
		lcpRMQ = rmq.NewRMQHybridNaive(lcp)
	}
	var docs []uint32
	var prev []int
	var prevRMQ *rmq.RMQHybridNaive[int]
	if b.useDocs && len(sa) > 1 {
		docs = documentIDs(b.text)
		prev = buildPrevArray(sa, docs)
		prevRMQ = rmq.NewRMQHybridNaive(prev)
	}
	return &Index{
		text:        b.text,
		suffixArray: sa,
		lcp:         lcp,
		lcpRMQ:      lcpRMQ,
		docs:        docs,
		prev:        prev,
		prevRMQ:     prevRMQ,
		normalize:   b.normalize,
	}, nil
}

// For each index i in the suffix array, prev[i] is the previous index of the
// suffix array in the same document, or -1 if there is none.
func buildPrevArray(sa []uint64, docs []uint32) []int {
	prev := make([]int, len(sa))
	last := make(map[uint32]int)
	for i, p := range sa {
		d := docs[p]
		if j, ok := last[d]; ok {
			prev[i] = j
		} else {
			prev[i] = -1
		}
		last[d] = i
	}
	return prev
}

// Index is an in-memory suffix array over a text, for corpora small enough
// to hold the whole table in memory.
type Index struct {
	text        []byte
	suffixArray []uint64
	lcp         []int
	lcpRMQ      *rmq.RMQHybridNaive[int]
	docs        []uint32
	prev        []int
	prevRMQ     *rmq.RMQHybridNaive[int]
	normalize   bool
}

func (x *Index) SuffixArray() []uint64 { return x.suffixArray }

func (x *Index) pattern(p []byte) []byte {
	if x.normalize {
		return norm.NFC.Bytes(p)
	}
	return p
}

// Lookup returns the inclusive range [l, r] of suffix array indexes whose
// suffix starts with pattern, or (-1, -1) if there is none.
func (x *Index) Lookup(pattern []byte) (int, int) {
	return x.findBoundaries(x.pattern(pattern))
}

// Count returns the number of occurrences of pattern.
func (x *Index) Count(pattern []byte) int {
	l, r := x.Lookup(pattern)
	if l == -1 {
		return 0
	}
	return r - l + 1
}

// Positions returns the text positions of up to k occurrences of pattern,
// in suffix order.
func (x *Index) Positions(pattern []byte, k int) []uint64 {
	l, r := x.Lookup(pattern)
	if l == -1 {
		return nil
	}
	if k > 0 && r-l+1 > k {
		r = l + k - 1
	}
	return append([]uint64(nil), x.suffixArray[l:r+1]...)
}

// Documents returns the IDs of up to k distinct documents containing
// pattern, or of all of them if k <= 0. Occurrences outside any document
// are ignored.
func (x *Index) Documents(pattern []byte, k int) []uint32 {
	l, r := x.Lookup(pattern)
	if l == -1 {
		return nil
	}
	if k <= 0 {
		k = r - l + 1
	}

	matches := make([]uint32, 0, min(k, r-l+1))
	if x.prev != nil {
		return x.listDocuments(l, l, r, k, matches)
	}

	seen := make(map[uint32]bool)
	for i := l; i <= r && len(matches) < k; i++ {
		id, err := DocumentAt(x.text, x.suffixArray[i])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		matches = append(matches, id)
	}
	return matches
}

// listDocuments appends the documents whose first occurrence counting from
// baseL lies in [l, r]. The entry with the smallest prev in [l, r] is such an
// occurrence unless its prev is at or after baseL, in which case none is.
func (x *Index) listDocuments(baseL, l, r, k int, matches []uint32) []uint32 {
	if k <= len(matches) || l > r {
		return matches
	}
	p := x.prevRMQ.Query(l, r)
	if x.prev[p] >= baseL {
		return matches
	}
	if id := x.docs[x.suffixArray[p]]; id != 0 {
		matches = append(matches, id)
	}
	matches = x.listDocuments(baseL, l, p-1, k, matches)
	return x.listDocuments(baseL, p+1, r, k, matches)
}

func (x *Index) findBoundaries(pattern []byte) (int, int) {
	sa, text, n := x.suffixArray, x.text, len(x.suffixArray)
	bestIdx, best := -1, 0

	// expandBest extends the match of pattern against the suffix at index i,
	// starting from the best bytes already known to match, and reports
	// whether pattern <= text[sa[i]:].
	expandBest := func(i int) bool {
		p := int(sa[i])
		for best < len(pattern) && p+best < len(text) && pattern[best] == text[p+best] {
			best++
		}
		bestIdx = i
		if best == len(pattern) {
			return true
		} else if p+best == len(text) {
			return false
		}
		return pattern[best] < text[p+best]
	}

	// find first index where pattern <= suffix
	l := sort.Search(n, func(i int) bool {
		if x.lcp == nil {
			return bytes.Compare(pattern, text[sa[i]:]) <= 0
		}
		if bestIdx == -1 {
			return expandBest(i)
		}
		lcpLen := x.lcp[x.lcpRMQ.Query(min(bestIdx, i), max(bestIdx, i)-1)]
		if lcpLen < best {
			// the suffix leaves the matching group before best bytes, so it
			// sorts on the same side of pattern as it does of sa[bestIdx].
			return i > bestIdx
		}
		return expandBest(i)
	})

	if l == n || !bytes.HasPrefix(text[sa[l]:], pattern) {
		return -1, -1
	}

	// last index where pattern is a prefix
	// we have T T T F F F, where pattern is a prefix now.
	// to use sort.Search we need F F F T T T, so just return the negation and find the first T => find first F, return that -1
	r := sort.Search(n-l, func(i int) bool {
		if x.lcp != nil {
			if i == 0 {
				return false
			}
			lcp := x.lcp[x.lcpRMQ.Query(l, l+i-1)]
			return lcp < len(pattern)
		}
		return !bytes.HasPrefix(text[sa[l+i]:], pattern)
	})

	return l, l + r - 1
}
