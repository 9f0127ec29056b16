package logging

import "sync"

const (
	// MaxLineLength is the maximum length of a buffered line before truncation.
	MaxLineLength = 4096

	// DefaultBufferedLines is the capacity used when NewLineBuffer gets n < 1.
	DefaultBufferedLines = 10
)

// LineBuffer keeps the most recent lines written to it. The analyzer uses
// it to hold samples of unparsable log lines, which are printed when the
// bad-line budget is exceeded.
type LineBuffer struct {
	mu     sync.Mutex
	buffer []string
	next   int
	total  int
}

// NewLineBuffer creates a buffer holding up to n lines.
func NewLineBuffer(n int) *LineBuffer {
	if n < 1 {
		n = DefaultBufferedLines
	}
	return &LineBuffer{buffer: make([]string, n)}
}

// Add stores line, evicting the oldest entry when full.
func (b *LineBuffer) Add(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	b.mu.Lock()
	b.buffer[b.next] = line
	b.next = (b.next + 1) % len(b.buffer)
	b.total++
	b.mu.Unlock()
}

// Total returns how many lines were ever added.
func (b *LineBuffer) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Recent returns up to n of the most recent lines, oldest first.
func (b *LineBuffer) Recent(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := len(b.buffer)
	if n > size {
		n = size
	}
	if n > b.total {
		n = b.total
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (b.next - n + i + size) % size
		lines = append(lines, b.buffer[idx])
	}
	return lines
}
