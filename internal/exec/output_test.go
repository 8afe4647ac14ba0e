package exec

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamingWriter(&buf, "[test] ", lipgloss.Color("245"))

	n, err := w.Write([]byte("first line\nsecond "))
	require.NoError(t, err)
	assert.Equal(t, len("first line\nsecond "), n)
	assert.Contains(t, buf.String(), "[test] ")
	assert.Contains(t, buf.String(), "first line")
	assert.NotContains(t, buf.String(), "second")

	_, err = w.Write([]byte("half\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "second half\n")

	_, err = w.Write([]byte("tail"))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "tail")

	require.NoError(t, w.Flush())
	assert.True(t, strings.HasSuffix(buf.String(), "tail\n"))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestStreamingWriter_KeepsEmptyLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamingWriter(&buf, "", lipgloss.Color("245"))

	_, err := w.Write([]byte("a\n\nb\n"))
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb\n", buf.String())
}

func TestStreamingWriter_CarriageReturns(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamingWriter(&buf, "", lipgloss.Color("245"))

	_, err := w.Write([]byte("10%\r50%\r100%\r\ndone\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "100%\ndone\n", buf.String())
}

func TestStreamingWriter_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewStreamingWriter(&buf, "", lipgloss.Color("245"))

	require.NoError(t, w.Flush())
	assert.Empty(t, buf.String())
}

func TestNewStreamingPair(t *testing.T) {
	var buf bytes.Buffer
	stdout, stderr := NewStreamingPair(&buf, &buf, "install")

	_, _ = stdout.Write([]byte("partial "))
	_, _ = stderr.Write([]byte("warning\n"))
	_, _ = stdout.Write([]byte("line\n"))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "warning"))
	assert.True(t, strings.HasSuffix(lines[1], "partial line"))
	for _, l := range lines {
		assert.Contains(t, l, "[install] ")
	}
}
