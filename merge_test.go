package suffixmerge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeBanana(t *testing.T) {
	dir := t.TempDir()
	text := []byte("banana$banana")
	path := writeFile(t, dir, "corpus", text)

	// The first part carries the whole second part as its margin.
	first, err := MakePart(path, 0, 13)
	require.NoError(t, err)
	second, err := MakePart(path, 7, 13)
	require.NoError(t, err)

	res, err := Merge(context.Background(),
		[]string{first.TextPath, second.TextPath},
		filepath.Join(dir, "merged"),
		WithOverlap(6), WithThreads(2),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, res.GlobalWidth)

	want, err := BuildSuffixArray(text)
	require.NoError(t, err)
	assert.Equal(t, want, readMergedTable(t, res))

	merged, err := os.ReadFile(res.Text)
	require.NoError(t, err)
	assert.Equal(t, text, merged)
}

func TestMergeMatchesSingleBuild(t *testing.T) {
	tests := []struct {
		size     int
		alphabet int
		jobs     int
		overlap  int
	}{
		{size: 1000, alphabet: 2, jobs: 2, overlap: 128},
		{size: 5000, alphabet: 4, jobs: 3, overlap: 256},
		{size: 20000, alphabet: 4, jobs: 4, overlap: 256},
		{size: 70000, alphabet: 26, jobs: 3, overlap: 64},
	}
	for i, tc := range tests {
		for _, threads := range []int{1, 2, 3, 8} {
			name := fmt.Sprintf("size=%d/jobs=%d/threads=%d", tc.size, tc.jobs, threads)
			t.Run(name, func(t *testing.T) {
				dir := t.TempDir()
				text := randomText(rand.New(rand.NewSource(int64(i))), tc.size, tc.alphabet)
				parts := makeParts(t, dir, text, tc.jobs, tc.overlap)
				require.Len(t, parts, tc.jobs)

				res, err := Merge(context.Background(), parts, filepath.Join(dir, "merged"),
					WithOverlap(tc.overlap), WithThreads(threads))
				require.NoError(t, err)

				assert.Equal(t, PointerWidth(uint64(tc.size)), res.GlobalWidth)
				require.Len(t, res.Tables, threads)
				require.Len(t, res.Emitted, threads)
				var emitted int64
				for _, n := range res.Emitted {
					emitted += n
				}
				assert.Equal(t, int64(tc.size), emitted)

				want, err := BuildSuffixArray(text)
				require.NoError(t, err)
				assert.Equal(t, want, readMergedTable(t, res))

				merged, err := os.ReadFile(res.Text)
				require.NoError(t, err)
				assert.True(t, bytes.Equal(text, merged))
			})
		}
	}
}

func TestMergeConcat(t *testing.T) {
	dir := t.TempDir()
	text := randomText(rand.New(rand.NewSource(6)), 3000, 3)
	parts := makeParts(t, dir, text, 3, 100)
	output := filepath.Join(dir, "merged")

	res, err := Merge(context.Background(), parts, output,
		WithOverlap(100), WithThreads(4), WithConcat(true))
	require.NoError(t, err)
	assert.Nil(t, res.Tables)
	assert.Equal(t, TablePath(output), res.Table)

	for i := 0; i < 4; i++ {
		_, err := os.Stat(PartitionPath(output, i))
		assert.True(t, errors.Is(err, os.ErrNotExist), "partition %d was not removed", i)
	}

	want, err := BuildSuffixArray(text)
	require.NoError(t, err)
	assert.Equal(t, want, readMergedTable(t, res))
}

func TestMergeLongMatchWarning(t *testing.T) {
	tests := []struct {
		name string
		run  int
		want string
	}{
		{name: "beyond probe", run: 3000, want: "probe_limit"},
		{name: "above threshold", run: 300, want: "match_len"},
		{name: "none", run: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			text := append(bytes.Repeat([]byte("a"), tc.run),
				randomText(rand.New(rand.NewSource(7)), 4000, 4)...)
			parts := makeParts(t, dir, text, 2, 100)

			var buf bytes.Buffer
			logger := NewLogger(slog.NewJSONHandler(&buf, nil))
			_, err := Merge(context.Background(), parts, filepath.Join(dir, "merged"),
				WithOverlap(100), WithThreads(1), WithLogger(logger),
				WithLongMatchLimits(1000, 100))
			require.NoError(t, err)

			warnings := bytes.Count(buf.Bytes(), []byte(`"level":"WARN"`))
			if tc.want == "" {
				assert.Zero(t, warnings, buf.String())
				return
			}
			// One warning per worker at most.
			assert.Equal(t, 1, warnings, buf.String())
			assert.Contains(t, buf.String(), tc.want)
		})
	}
}

func TestMergeLongMatchWarningPerWorker(t *testing.T) {
	dir := t.TempDir()
	r := rand.New(rand.NewSource(14))
	var text []byte
	for _, c := range []byte("abcd") {
		text = append(text, bytes.Repeat([]byte{c}, 400)...)
		text = append(text, randomText(r, 1500, 4)...)
	}
	parts := makeParts(t, dir, text, 2, 100)

	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, nil))
	_, err := Merge(context.Background(), parts, filepath.Join(dir, "merged"),
		WithOverlap(100), WithThreads(4), WithLogger(logger),
		WithLongMatchLimits(1000, 100))
	require.NoError(t, err)

	perPartition := make(map[float64]int)
	for _, line := range decodeLines(t, &buf) {
		if line["level"] != "WARN" {
			continue
		}
		part, ok := line["partition"].(float64)
		require.True(t, ok, "warning without a partition: %v", line)
		perPartition[part]++
	}
	// Each run of 400 equal bytes yields hundreds of long matches, yet every
	// worker reports only the first one.
	require.NotEmpty(t, perPartition)
	assert.Greater(t, len(perPartition), 1)
	for part, n := range perPartition {
		assert.Equal(t, 1, n, "partition %v", part)
	}
}

func TestMergeWidthMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "corpus", randomText(rand.New(rand.NewSource(8)), 400, 4))
	first, err := MakePart(path, 0, 300)
	require.NoError(t, err)
	second, err := MakePart(path, 250, 400)
	require.NoError(t, err)
	require.Equal(t, 2, first.Width)
	require.Equal(t, 1, second.Width)

	_, err = Merge(context.Background(), []string{first.TextPath, second.TextPath},
		filepath.Join(dir, "merged"), WithOverlap(50))
	var mismatch *WidthMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 1, mismatch.Actual)
	assert.Equal(t, second.TablePath, mismatch.Path)
}

func TestMergeErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "corpus", randomText(rand.New(rand.NewSource(9)), 400, 4))
	first, err := MakePart(path, 0, 50, WithMinWidth(2))
	require.NoError(t, err)
	second, err := MakePart(path, 40, 400, WithMinWidth(2))
	require.NoError(t, err)
	parts := []string{first.TextPath, second.TextPath}
	output := filepath.Join(dir, "merged")
	ctx := context.Background()

	_, err = Merge(ctx, nil, output)
	assert.ErrorIs(t, err, ErrNoParts)

	_, err = Merge(ctx, parts, output, WithOverlap(10), WithThreads(0))
	assert.ErrorIs(t, err, ErrInvalidThreads)

	_, err = Merge(ctx, parts, output, WithOverlap(-1))
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Merge(ctx, parts, output, WithOverlap(60))
	assert.ErrorIs(t, err, ErrFragmentTooShort)

	_, err = Merge(ctx, []string{first.TextPath, filepath.Join(dir, "missing")}, output, WithOverlap(10))
	var ioe *IOError
	assert.ErrorAs(t, err, &ioe)

	// A table that lost its last byte no longer holds one entry per text byte.
	b, err := os.ReadFile(second.TablePath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(second.TablePath, b[:len(b)-1], 0o644))
	_, err = Merge(ctx, parts, output, WithOverlap(10))
	assert.ErrorIs(t, err, ErrTableLength)
}

func TestMergeHeapOrder(t *testing.T) {
	texts := [][]byte{[]byte("banana"), []byte("bandana")}
	h := mergeHeap{texts: texts}
	for j, text := range texts {
		for p := range text {
			h.push(mergeEntry{source: j, position: uint64(p)})
		}
	}

	var prev []byte
	for h.len() > 0 {
		e := h.pop()
		cur := texts[e.source][e.position:]
		if prev != nil {
			require.LessOrEqual(t, bytes.Compare(prev, cur), 0)
		}
		prev = cur
	}
}
