package suffixmerge

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"
)

func TestSearcherMatchesIndex(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(rand.NewSource(13))
	text := randomText(r, 5000, 5)
	path := writeFile(t, dir, "corpus", text)
	_, err := Build(t.Context(), path, WithJobs(3), WithOverlap(200), WithThreads(2))
	require.NoError(t, err)

	x, err := NewIndexBuilder(text).Build()
	require.NoError(t, err)

	for _, mapped := range []bool{false, true} {
		s, err := OpenSearcher(path, mapped)
		require.NoError(t, err)

		for i := 0; i < 100; i++ {
			start := r.Intn(len(text))
			q := text[start:min(start+1+r.Intn(8), len(text))]
			if i%4 == 0 {
				q = []byte("zz")
			}

			n, err := s.Count(q)
			require.NoError(t, err)
			assert.Equal(t, int64(naiveCount(text, q)), n, "query %q", q)
			assert.Equal(t, x.Count(q), int(n), "query %q", q)

			found, err := s.Find(q, 0)
			require.NoError(t, err)
			assert.ElementsMatch(t, naivePositions(text, q), found, "query %q", q)
		}
		require.NoError(t, s.Close())
	}
}

func TestSearcherFindLimitAndContext(t *testing.T) {
	dir := t.TempDir()
	text := []byte("the cat sat on the mat with the hat")
	path := writeFile(t, dir, "corpus", text)
	_, err := MakeTable(path)
	require.NoError(t, err)

	s, err := OpenSearcher(path, false)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.Find([]byte("the"), 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{0, 15, 28}, all)

	two, err := s.Find([]byte("the"), 2)
	require.NoError(t, err)
	assert.Equal(t, all[:2], two)

	before, after := s.Context(4, 3, 4)
	assert.Equal(t, "the ", string(before))
	assert.Equal(t, " sat", string(after))

	before, after = s.Context(0, 3, 10)
	assert.Empty(t, before)
	assert.Equal(t, " cat sat o", string(after))

	before, after = s.Context(32, 3, 10)
	assert.Equal(t, " with the ", string(before))
	assert.Empty(t, after)
}

func TestSearcherNormalize(t *testing.T) {
	dir := t.TempDir()
	text := norm.NFC.Bytes([]byte("Café au lait, café noir"))
	path := writeFile(t, dir, "corpus", text)
	_, err := MakeTable(path)
	require.NoError(t, err)

	s, err := OpenSearcher(path, true)
	require.NoError(t, err)
	defer s.Close()

	query := []byte("cafe\u0301")
	n, err := s.Count(query)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.Normalize().Count(query)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenSearcherErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "corpus", []byte("abc"))

	_, err := OpenSearcher(path, false)
	var ioe *IOError
	assert.ErrorAs(t, err, &ioe, "missing table")

	writeFile(t, dir, "corpus.table.bin", []byte{0, 1})
	_, err = OpenSearcher(path, false)
	assert.ErrorIs(t, err, ErrTableLength)
}
