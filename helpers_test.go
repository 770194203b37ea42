package suffixmerge

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomText(r *rand.Rand, n, alphabet int) []byte {
	text := make([]byte, n)
	for i := range text {
		text[i] = byte('a' + r.Intn(alphabet))
	}
	return text
}

func naiveSuffixArray(text []byte) []uint64 {
	sa := make([]uint64, len(text))
	for i := range sa {
		sa[i] = uint64(i)
	}
	sort.Slice(sa, func(i, j int) bool {
		return bytes.Compare(text[sa[i]:], text[sa[j]:]) < 0
	})
	return sa
}

func naiveCount(text, pattern []byte) int {
	n := 0
	for i := range text {
		if bytes.HasPrefix(text[i:], pattern) {
			n++
		}
	}
	if len(pattern) == 0 {
		return len(text)
	}
	return n
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// makeParts writes text to dir and builds overlapping parts of it the way
// Build does, returning the part paths in corpus order.
func makeParts(t *testing.T, dir string, text []byte, jobs, overlap int) []string {
	t.Helper()
	path := writeFile(t, dir, "corpus", text)
	ranges := splitRanges(int64(len(text)), jobs, overlap)
	var largest int64
	for _, r := range ranges {
		largest = max(largest, r.Len())
	}
	width := PointerWidth(uint64(largest))

	parts := make([]string, len(ranges))
	for i, r := range ranges {
		info, err := MakePart(path, r.Start, r.End, WithMinWidth(width))
		require.NoError(t, err)
		parts[i] = info.TextPath
	}
	return parts
}

func readMergedTable(t *testing.T, res *MergeResult) []uint64 {
	t.Helper()
	var all []byte
	if res.Table != "" {
		b, err := os.ReadFile(res.Table)
		require.NoError(t, err)
		all = b
	}
	for _, p := range res.Tables {
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		all = append(all, b...)
	}
	sa, err := Decode(all, res.GlobalWidth)
	require.NoError(t, err)
	return sa
}
