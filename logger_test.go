package suffixmerge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	l.WithPartition(3).LogLongMatch(ctx, 42, true)
	l.LogMergeDone(ctx, 1, 10, errors.New("boom"))
	l.LogPartition(ctx, Partition{Index: 2, Ranges: []Range{{0, 5}, {1, 4}}})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)

	assert.Equal(t, "WARN", lines[0]["level"])
	assert.EqualValues(t, 3, lines[0]["partition"])
	assert.EqualValues(t, 42, lines[0]["match_len"])

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])

	assert.Equal(t, "DEBUG", lines[2]["level"])
	assert.Equal(t, []any{0.0, 1.0}, lines[2]["starts"])
	assert.Equal(t, []any{5.0, 4.0}, lines[2]["ends"])
}

func TestMakePartLogsDestination(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(slog.NewJSONHandler(&buf, nil))
	path := writeFile(t, t.TempDir(), "corpus", []byte("abcabcabc"))

	info, err := MakePart(path, 2, 8, WithLogger(l))
	require.NoError(t, err)

	lines := decodeLines(t, &buf)
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Equal(t, info.TextPath, line["path"])
	}
}

func TestWithLoggerNil(t *testing.T) {
	o := applyOptions([]Option{WithLogger(nil)})
	require.NotNil(t, o.logger)
	assert.False(t, o.logger.Enabled(context.Background(), slog.LevelError))
}
