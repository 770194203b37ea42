package suffixmerge

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSuffixArrayBanana(t *testing.T) {
	text := []byte("banana")
	sa, err := BuildSuffixArray(text)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 3, 1, 0, 4, 2}, sa)

	width := PointerWidth(uint64(len(text)))
	require.Equal(t, 1, width)
	b, err := Encode(sa, width)
	require.NoError(t, err)
	got, err := Decode(b, width)
	require.NoError(t, err)
	assert.Equal(t, sa, got)
}

func TestBuildSuffixArrayMatchesNaive(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for _, alphabet := range []int{1, 2, 4, 26} {
		for _, n := range []int{0, 1, 2, 17, 500} {
			text := randomText(r, n, alphabet)
			sa, err := BuildSuffixArray(text)
			require.NoError(t, err)
			assert.Equal(t, naiveSuffixArray(text), sa, "alphabet=%d n=%d", alphabet, n)
		}
	}
}

func TestBuildLCPArray(t *testing.T) {
	text := []byte("banana")
	sa, err := BuildSuffixArray(text)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 0, 0, 2}, BuildLCPArray(sa, text))
	assert.Nil(t, BuildLCPArray(nil, nil))
}

func TestCommonPrefix(t *testing.T) {
	n, found := commonPrefix([]byte("abcd"), []byte("abxd"), 10)
	assert.Equal(t, 2, n)
	assert.True(t, found)

	n, found = commonPrefix([]byte("abc"), []byte("abcdef"), 10)
	assert.Equal(t, 3, n)
	assert.True(t, found)

	n, found = commonPrefix([]byte("aaaaaa"), []byte("aaaaaa"), 4)
	assert.Equal(t, 4, n)
	assert.False(t, found)
}
