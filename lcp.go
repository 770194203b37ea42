package suffixmerge

// BuildLCPArray returns lcp where lcp[i] is the length of the longest common
// prefix of the suffixes at suffixArray[i] and suffixArray[i+1].
// Kasai's algorithm, O(n).
func BuildLCPArray(suffixArray []uint64, text []byte) []int {
	if len(suffixArray) == 0 {
		return nil
	}
	rank := make([]int, len(suffixArray))
	for i, p := range suffixArray {
		rank[p] = i
	}

	lcp := make([]int, len(suffixArray)-1)
	l := 0
	for i := range suffixArray {
		if rank[i]+1 == len(suffixArray) {
			l = 0
			continue
		}
		j := int(suffixArray[rank[i]+1])
		for i+l < len(text) && j+l < len(text) && text[i+l] == text[j+l] {
			l++
		}
		lcp[rank[i]] = l
		if l > 0 {
			l--
		}
	}

	return lcp
}

// commonPrefix returns the length of the common prefix of a and b, looking
// at no more than limit bytes. The second result is false when the probe hit
// limit without finding a mismatch.
func commonPrefix(a, b []byte, limit int) (int, bool) {
	n := min(len(a), len(b))
	if n > limit {
		n = limit
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i, true
		}
	}
	if n == limit {
		return n, false
	}
	return n, true
}
