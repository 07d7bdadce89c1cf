package cache

import (
	"io"
	"sync"
)

// memSource is an in-memory WritableSource used across backend/cache tests,
// standing in for a real file so the tests avoid touching the filesystem.
type memSource struct {
	mu   sync.Mutex
	data []byte
}

func newMemSource(initial []byte) *memSource {
	buf := make([]byte, len(initial))
	copy(buf, initial)
	return &memSource{data: buf}
}

func (m *memSource) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memSource) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:end], p)
	return len(p), nil
}

func (m *memSource) Seek(offset int64, whence int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch whence {
	case io.SeekEnd:
		return int64(len(m.data)) + offset, nil
	case io.SeekStart:
		return offset, nil
	default:
		return 0, errSeekUnsupported
	}
}

func (m *memSource) snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

type seekUnsupportedError struct{}

func (seekUnsupportedError) Error() string { return "memSource: unsupported whence" }

var errSeekUnsupported = seekUnsupportedError{}

// readOnlyMemSourceWrap wraps memSource but only exposes Source, never
// WritableSource, for read-only cache tests.
func newReadOnlyMemSource(initial []byte) Source {
	return readOnlyMemSourceWrap{newMemSource(initial)}
}

type readOnlyMemSourceWrap struct {
	m *memSource
}

func (r readOnlyMemSourceWrap) ReadAt(p []byte, off int64) (int, error) { return r.m.ReadAt(p, off) }
func (r readOnlyMemSourceWrap) Seek(offset int64, whence int) (int64, error) {
	return r.m.Seek(offset, whence)
}
