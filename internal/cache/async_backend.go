package cache

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ringSlot holds one pending (page, block) write.
type ringSlot struct {
	page  PageNumber
	block Block
}

// asyncBackend dedicates one worker goroutine to draining a bounded ring
// of pending writes, modeled on original_source/src/detail/io.rs's
// ring+hash+worker design.
type asyncBackend struct {
	blockSize int
	writable  WritableSource
	length    atomic.Int64

	// srcMu guards the Source itself: the worker takes it exclusively to
	// write, ordinary reads take it shared.
	srcMu sync.RWMutex
	src   Source

	// metaMu + cond guard the ring, the in-flight index, and the
	// end/error flags: a separate exclusive lock plus a condition
	// variable from the Source lock itself.
	metaMu     sync.Mutex
	cond       *sync.Cond
	ring       []ringSlot
	front, back int
	count      int
	inflight   *inflightTable
	end        bool
	errSet     bool
	err        error
	workerDone chan struct{}
}

func newAsyncBackend(src Source, writable WritableSource, blockSize, queueLen int) (*asyncBackend, error) {
	n, err := queryLength(src)
	if err != nil {
		return nil, err
	}
	ring := make([]ringSlot, queueLen)
	for i := range ring {
		ring[i].block = make(Block, blockSize)
	}
	b := &asyncBackend{
		blockSize: blockSize,
		writable:  writable,
		src:       src,
		ring:      ring,
		inflight:  newInflightTable(queueLen),
	}
	b.length.Store(n)
	b.cond = sync.NewCond(&b.metaMu)
	b.spawnWorkerLocked()
	return b, nil
}

func (b *asyncBackend) Length() int64 { return b.length.Load() }

// Read checks the in-flight ring first for read-your-writes consistency,
// falling back to a shared-locked source read.
func (b *asyncBackend) Read(page PageNumber, buf Block) (int, error) {
	b.metaMu.Lock()
	if slot, ok := b.inflight.find(page); ok {
		copy(buf, b.ring[slot].block)
		b.metaMu.Unlock()
		return len(buf), nil
	}
	b.metaMu.Unlock()

	b.srcMu.RLock()
	defer b.srcMu.RUnlock()
	n, err := b.src.ReadAt(buf, pageOffset(page, b.blockSize))
	if err != nil && n == 0 {
		return 0, errors.Wrapf(err, "blockcache: async backend read page %d", page)
	}
	return n, nil
}

// Write enqueues (page, block) for the worker, blocking the producer if
// the ring is full. If a previous worker crashed, the error is surfaced
// here first, and this call does not enqueue — the caller must retry.
func (b *asyncBackend) Write(page PageNumber, block Block) error {
	if b.writable == nil {
		return ErrReadOnly
	}
	b.metaMu.Lock()
	if b.errSet {
		err := b.recoverLocked()
		b.metaMu.Unlock()
		return err
	}
	for b.count == len(b.ring) {
		b.cond.Wait()
		if b.errSet {
			err := b.recoverLocked()
			b.metaMu.Unlock()
			return err
		}
	}
	slot := b.back
	copy(b.ring[slot].block, block)
	b.ring[slot].page = page
	b.inflight.insert(page, slot)
	b.back = (b.back + 1) % len(b.ring)
	b.count++
	b.cond.Signal()
	b.metaMu.Unlock()
	return nil
}

// Close sets the end flag and blocks until the worker drains the
// remaining queue and exits. IntoSource is the sole terminator.
func (b *asyncBackend) Close() error {
	b.metaMu.Lock()
	b.end = true
	done := b.workerDone
	b.cond.Broadcast()
	b.metaMu.Unlock()
	<-done
	return nil
}

// recoverLocked must be called with metaMu held and b.errSet true. It waits
// for the crashed worker to fully exit, retrieves the stored error,
// respawns a fresh worker over the same ring/meta state, and returns the
// error to the caller.
func (b *asyncBackend) recoverLocked() error {
	done := b.workerDone
	b.metaMu.Unlock()
	<-done
	b.metaMu.Lock()
	err := b.err
	b.err = nil
	b.errSet = false
	b.spawnWorkerLocked()
	return err
}

func (b *asyncBackend) spawnWorkerLocked() {
	done := make(chan struct{})
	b.workerDone = done
	go b.runWorker(done)
}

func (b *asyncBackend) runWorker(done chan struct{}) {
	defer close(done)
	for {
		b.metaMu.Lock()
		for b.count == 0 && !b.end {
			b.cond.Wait()
		}
		if b.count == 0 && b.end {
			b.metaMu.Unlock()
			return
		}
		slot := b.front
		page := b.ring[slot].page
		buf := make(Block, len(b.ring[slot].block))
		copy(buf, b.ring[slot].block)
		b.metaMu.Unlock()

		off := pageOffset(page, b.blockSize)
		b.srcMu.Lock()
		n, werr := b.writable.WriteAt(buf, off)
		if werr == nil {
			if end := off + int64(n); end > b.length.Load() {
				b.length.Store(end)
			}
		}
		b.srcMu.Unlock()

		b.metaMu.Lock()
		if werr != nil {
			// Crash: drop everything still queued (not retried
			// internally) and surface the error to the next
			// producer call.
			b.front = 0
			b.back = 0
			b.count = 0
			b.inflight.clear()
			b.err = errors.Wrapf(werr, "blockcache: async backend write page %d", page)
			b.errSet = true
			b.cond.Broadcast()
			b.metaMu.Unlock()
			return
		}
		b.inflight.remove(page)
		b.front = (b.front + 1) % len(b.ring)
		b.count--
		b.cond.Signal()
		b.metaMu.Unlock()
	}
}
