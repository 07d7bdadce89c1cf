package cache

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// syncBackend serializes all source access behind one exclusive lock,
// using positioned ReadAt/WriteAt under mu over an arbitrary Source
// rather than a fixed *os.File.
type syncBackend struct {
	mu        sync.Mutex
	src       Source
	writable  WritableSource
	blockSize int
	length    atomic.Int64
}

// newSyncBackend wraps src. writable is non-nil when the cache is
// constructed for a WritableSource.
func newSyncBackend(src Source, writable WritableSource, blockSize int) (*syncBackend, error) {
	n, err := queryLength(src)
	if err != nil {
		return nil, err
	}
	b := &syncBackend{src: src, writable: writable, blockSize: blockSize}
	b.length.Store(n)
	return b, nil
}

func (b *syncBackend) Length() int64 { return b.length.Load() }

func (b *syncBackend) Read(page PageNumber, buf Block) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.src.ReadAt(buf, pageOffset(page, b.blockSize))
	if err != nil && n == 0 {
		return 0, errors.Wrapf(err, "blockcache: sync backend read page %d", page)
	}
	return n, nil
}

func (b *syncBackend) Write(page PageNumber, buf Block) error {
	if b.writable == nil {
		return ErrReadOnly
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	off := pageOffset(page, b.blockSize)
	n, err := b.writable.WriteAt(buf, off)
	if err != nil {
		return errors.Wrapf(err, "blockcache: sync backend write page %d", page)
	}
	if end := off + int64(n); end > b.length.Load() {
		b.length.Store(end)
	}
	return nil
}

func (b *syncBackend) Close() error { return nil }
