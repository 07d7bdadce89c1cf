//go:build !unix

package cache

import "os"

// OpenFileSource opens path for the cache backend on non-Unix platforms,
// where golang.org/x/sys/unix's Pread/Pwrite are unavailable; *os.File's
// own ReadAt/WriteAt already wrap the platform's positioned I/O primitive.
func OpenFileSource(path string, writable bool) (Source, error) {
	flags := os.O_RDONLY
	if writable {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	if writable {
		return f, nil
	}
	return readOnlyFile{f}, nil
}

// readOnlyFile forwards only ReadAt/Seek so a read-only open never
// satisfies WritableSource (embedding *os.File directly would promote
// WriteAt too).
type readOnlyFile struct{ f *os.File }

func (r readOnlyFile) ReadAt(p []byte, off int64) (int, error) { return r.f.ReadAt(p, off) }
func (r readOnlyFile) Seek(offset int64, whence int) (int64, error) {
	return r.f.Seek(offset, whence)
}
