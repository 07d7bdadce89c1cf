//go:build unix

package cache

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// unixFileSource backs a Source/WritableSource with true positioned
// pread(2)/pwrite(2) syscalls instead of a shared file offset, one level
// below os.File.ReadAt/WriteAt, down to the syscall the standard library
// itself eventually issues.
type unixFileSource struct {
	f        *os.File
	fd       int
	writable bool
}

// OpenFileSource opens path for the cache backend. When writable is false
// the file is opened read-only and WriteAt calls fail at the type-assertion
// boundary (the returned value does not implement WritableSource).
func OpenFileSource(path string, writable bool) (Source, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	s := &unixFileSource{f: f, fd: int(f.Fd()), writable: writable}
	if writable {
		return writableUnixFileSource{s}, nil
	}
	return s, nil
}

func (s *unixFileSource) ReadAt(p []byte, off int64) (int, error) {
	n, err := unix.Pread(s.fd, p, off)
	if err == nil && n < len(p) {
		// Pread can return short reads at EOF; surface io.EOF like
		// os.File.ReadAt does, so callers' short-read handling is uniform.
		return n, io.EOF
	}
	return n, err
}

func (s *unixFileSource) Seek(offset int64, whence int) (int64, error) {
	return s.f.Seek(offset, whence)
}

func (s *unixFileSource) Close() error { return s.f.Close() }

// writableUnixFileSource adds WriteAt, splitting the interface so a
// read-only open never accidentally satisfies WritableSource.
type writableUnixFileSource struct {
	*unixFileSource
}

func (s writableUnixFileSource) WriteAt(p []byte, off int64) (int, error) {
	return unix.Pwrite(s.fd, p, off)
}
