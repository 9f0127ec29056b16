package logsource

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Reader is an opened access log. Reads return decompressed bytes;
// CompressedRead reports how far into the file on disk the decoder is,
// which against Size gives read progress for compressed logs too.
type Reader struct {
	io.Reader

	file    *os.File
	counter *countingReader
	size    int64
	closers []func() error
}

// Open opens lf for reading, wrapping it in a decompressor chosen by its
// extension.
func Open(lf *LogFile) (*Reader, error) {
	f, err := os.Open(lf.Path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	var size int64
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}

	counter := &countingReader{r: f}
	r := &Reader{
		file:    f,
		counter: counter,
		size:    size,
	}

	switch lf.Ext {
	case ExtGzip:
		gz, err := gzip.NewReader(counter)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip log %s: %w", lf.Path, err)
		}
		r.Reader = gz
		r.closers = append(r.closers, gz.Close)
	case ExtZstd:
		dec, err := zstd.NewReader(counter)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open zstd log %s: %w", lf.Path, err)
		}
		r.Reader = dec
		r.closers = append(r.closers, func() error {
			dec.Close()
			return nil
		})
	default:
		r.Reader = counter
	}

	return r, nil
}

// Size returns the size of the file on disk.
func (r *Reader) Size() int64 {
	return r.size
}

// CompressedRead returns the number of on-disk bytes consumed so far.
// Safe to call from another goroutine.
func (r *Reader) CompressedRead() int64 {
	return r.counter.Load()
}

// Close releases the decoder and the underlying file.
func (r *Reader) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := r.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// countingReader counts bytes read from the file.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingReader) Load() int64 {
	return c.n.Load()
}
