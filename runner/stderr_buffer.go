package runner

import (
	"strings"
	"sync"
)

// tailBuffer keeps only the last N bytes written to it so a chatty worker
// cannot grow memory without bound. The kept tail is what gets attached to
// fatal failure entries and batch warnings.
type tailBuffer struct {
	maxBytes int

	mu       sync.Mutex
	total    int64
	contents []byte
}

func newTailBuffer(maxBytes int) *tailBuffer {
	if maxBytes <= 0 {
		maxBytes = stderrTailBytes
	}
	return &tailBuffer{
		maxBytes: maxBytes,
		contents: make([]byte, 0, min(maxBytes, 4096)),
	}
}

// Write implements io.Writer. It never fails; excess input drops off the
// front so the most recent bytes survive.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.total += int64(len(p))
	b.contents = append(b.contents, p...)
	if len(b.contents) > b.maxBytes {
		b.contents = b.contents[len(b.contents)-b.maxBytes:]
	}
	return len(p), nil
}

// String returns the kept tail, prefixed with a truncation marker when
// earlier output was dropped.
func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := strings.TrimSpace(string(b.contents))
	if b.total > int64(len(b.contents)) {
		return "[earlier output truncated]\n" + s
	}
	return s
}

// TotalBytes reports how much was written in total, including dropped bytes.
func (b *tailBuffer) TotalBytes() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}
