// Package compress opens and creates files that are transparently zstd
// compressed when their name ends in ".zst".
package compress

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// Ext marks files stored with zstd compression.
const Ext = ".zst"

// Compressed reports whether path names a zstd-compressed file.
func Compressed(path string) bool {
	return strings.HasSuffix(path, Ext)
}

type readCloser struct {
	io.Reader
	closers []func() error
}

func (r *readCloser) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens path for reading, decompressing transparently when it ends in
// Ext.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !Compressed(path) {
		return &readCloser{Reader: bufio.NewReader(f), closers: []func() error{f.Close}}, nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &readCloser{
		Reader:  dec,
		closers: []func() error{func() error { dec.Close(); return nil }, f.Close},
	}, nil
}

type writeCloser struct {
	io.Writer
	closers []func() error
}

func (w *writeCloser) Close() error {
	var first error
	for _, c := range w.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Create creates or truncates path for writing, compressing when it ends in
// Ext. Data is only guaranteed on disk after Close returns nil.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	if !Compressed(path) {
		bw := bufio.NewWriter(f)
		return &writeCloser{Writer: bw, closers: []func() error{bw.Flush, f.Close}}, nil
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		f.Close()
		return nil, err
	}
	return &writeCloser{Writer: enc, closers: []func() error{enc.Close, f.Close}}, nil
}

// ReadFile reads a whole, possibly compressed, file.
func ReadFile(path string) ([]byte, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// WriteFile writes data to a, possibly compressed, file.
func WriteFile(path string, data []byte) error {
	w, err := Create(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
