package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"

	"mercator-hq/dbxport/pkg/export"
)

// Compression selects an output stream wrapper.
type Compression string

const (
	CompressionNone   Compression = "none"
	CompressionSnappy Compression = "snappy"
)

// ParseCompression parses "none", "snappy" or an empty string.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return CompressionNone, nil
	case "snappy", "sz":
		return CompressionSnappy, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}

// atomicFile stages output in a temporary file beside the destination and
// renames it into place on Commit. Until then the destination is untouched.
type atomicFile struct {
	dest string
	tmp  *os.File

	counter *countingWriter
	snappy  *snappy.Writer
	w       io.Writer

	committed bool
	closed    bool
}

func createAtomic(dest string, compression Compression) (*atomicFile, error) {
	dir, base := filepath.Split(dest)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, export.NewIOError("create", dest, err)
	}

	f := &atomicFile{dest: dest, tmp: tmp, counter: &countingWriter{w: tmp}}
	f.w = f.counter
	if compression == CompressionSnappy {
		f.snappy = snappy.NewBufferedWriter(f.counter)
		f.w = f.snappy
	}
	return f, nil
}

// Write implements io.Writer for encoders.
func (f *atomicFile) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

// Bytes returns the number of bytes written to disk so far.
func (f *atomicFile) Bytes() int64 {
	return f.counter.n
}

// WriteErr returns the first error from the underlying file, if any.
// Encoders wrap write failures as encoding errors; this recovers the I/O
// cause.
func (f *atomicFile) WriteErr() error {
	return f.counter.err
}

// Commit flushes, syncs and closes the temporary file and renames it onto
// the destination.
func (f *atomicFile) Commit() error {
	if f.snappy != nil {
		if err := f.snappy.Close(); err != nil {
			return export.NewIOError("write", f.tmp.Name(), err)
		}
	}
	if err := f.tmp.Chmod(0o644); err != nil {
		return export.NewIOError("chmod", f.tmp.Name(), err)
	}
	if err := f.tmp.Sync(); err != nil {
		return export.NewIOError("sync", f.tmp.Name(), err)
	}
	f.closed = true
	if err := f.tmp.Close(); err != nil {
		return export.NewIOError("close", f.tmp.Name(), err)
	}
	if err := os.Rename(f.tmp.Name(), f.dest); err != nil {
		return export.NewIOError("rename", f.dest, err)
	}
	f.committed = true
	return nil
}

// Abort removes the temporary file unless it was committed. It is safe to
// call after Commit.
func (f *atomicFile) Abort() {
	if f.committed {
		return
	}
	if !f.closed {
		f.closed = true
		f.tmp.Close()
	}
	os.Remove(f.tmp.Name())
}

// countingWriter counts bytes and remembers the first write error.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
