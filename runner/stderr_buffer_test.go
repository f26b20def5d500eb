package runner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailBufferKeepsEverythingUnderLimit(t *testing.T) {
	buf := newTailBuffer(64)

	n, err := buf.Write([]byte("short output"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	assert.Equal(t, "short output", buf.String())
	assert.EqualValues(t, 12, buf.TotalBytes())
}

func TestTailBufferDropsHead(t *testing.T) {
	buf := newTailBuffer(8)

	_, err := buf.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)

	s := buf.String()
	assert.True(t, strings.HasPrefix(s, "[earlier output truncated]"), "dropped output must be marked, got %q", s)
	assert.True(t, strings.HasSuffix(s, "89abcdef"), "the most recent bytes must survive, got %q", s)
	assert.EqualValues(t, 16, buf.TotalBytes())
}

func TestTailBufferManySmallWrites(t *testing.T) {
	buf := newTailBuffer(4)
	for i := 0; i < 10; i++ {
		_, err := buf.Write([]byte("ab"))
		require.NoError(t, err)
	}

	assert.True(t, strings.HasSuffix(buf.String(), "abab"))
	assert.EqualValues(t, 20, buf.TotalBytes())
}

func TestTailBufferDefaultsLimit(t *testing.T) {
	buf := newTailBuffer(0)
	assert.Equal(t, stderrTailBytes, buf.maxBytes)
}
