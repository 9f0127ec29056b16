package parser

import (
	"bufio"
	"io"
	"sync/atomic"
)

const (
	// initialBufferSize is the scanner's starting buffer.
	initialBufferSize = 64 * 1024

	// MaxLineLength is the longest line the reader accepts. Longer lines
	// stop the scan with bufio.ErrTooLong.
	MaxLineLength = 1024 * 1024
)

// LineReader yields raw lines from an access log.
//
// Reading happens on the caller's goroutine; the counters are atomic so a
// progress reporter may poll Stats concurrently.
type LineReader struct {
	scanner *bufio.Scanner

	linesRead int64
	bytesRead int64
}

// NewLineReader creates a line reader over r. r is typically a decompressing
// reader returned by logsource.Open.
func NewLineReader(r io.Reader) *LineReader {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, initialBufferSize)
	scanner.Buffer(buf, MaxLineLength)

	return &LineReader{scanner: scanner}
}

// Next advances to the next line. It returns false at EOF or on a read
// error; call Err to tell them apart.
func (lr *LineReader) Next() bool {
	if !lr.scanner.Scan() {
		return false
	}
	atomic.AddInt64(&lr.linesRead, 1)
	// +1 for the newline the scanner strips
	atomic.AddInt64(&lr.bytesRead, int64(len(lr.scanner.Bytes())+1))
	return true
}

// Line returns the current line without its trailing newline.
// The slice is only valid until the next call to Next.
func (lr *LineReader) Line() []byte {
	return lr.scanner.Bytes()
}

// Err returns the first non-EOF error encountered.
func (lr *LineReader) Err() error {
	return lr.scanner.Err()
}

// Stats returns the number of lines and uncompressed bytes read so far.
func (lr *LineReader) Stats() (linesRead, bytesRead int64) {
	return atomic.LoadInt64(&lr.linesRead), atomic.LoadInt64(&lr.bytesRead)
}
