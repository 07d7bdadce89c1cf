package cache

import (
	"io"

	"github.com/pkg/errors"
)

// Cache is the façade binding a SetCollection to a Backend, exposing range
// read, chunked read-visit, and positioned write over the source's byte
// address space.
type Cache struct {
	cfg        Config
	collection *SetCollection
	backend    Backend
	writable   bool
	logger     *instanceLogger
}

// New constructs a cache over src per cfg. If src implements WritableSource
// the cache is writable and honors cfg.WritePolicy; otherwise it is
// read-only and cfg.WritePolicy is ignored. Invalid configuration panics.
func New(cfg Config, src Source) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	var writable WritableSource
	if ws, ok := src.(WritableSource); ok {
		writable = ws
	}

	var backend Backend
	var err error
	if cfg.AsyncWrite {
		backend, err = newAsyncBackend(src, writable, cfg.BlockSize, cfg.AsyncQueueLen)
	} else {
		backend, err = newSyncBackend(src, writable, cfg.BlockSize)
	}
	if err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:        cfg,
		collection: newSetCollection(cfg),
		backend:    backend,
		writable:   writable != nil,
		logger:     newInstanceLogger(),
	}
	c.logger.Printf("cache constructed: block_size=%d associativity=%s replacement=%s lookup=%s write_policy=%s async=%v sets=%d",
		cfg.BlockSize, cfg.Associativity, cfg.Replacement, cfg.Lookup, cfg.WritePolicy, cfg.AsyncWrite, c.collection.SetCount())
	return c, nil
}

// residence is the outcome of the residence protocol for one page.
type residence struct {
	set   *Set
	frame FrameIndex
}

// ensureResident makes page p resident, loading it from the backend on a
// miss. When prefetch is true and a miss occurs, it also triggers the
// read-ahead window for the following pages — prefetched pages are
// fetched through their own sets' mutators, never inline under p's set
// lock, and with prefetch=false so the window itself never recursively
// re-triggers.
func (c *Cache) ensureResident(p PageNumber, prefetch bool) (residence, error) {
	set, _ := c.collection.SetFor(p)
	set.Lock()
	if f, ok := set.get(p); ok {
		set.Unlock()
		return residence{set: set, frame: f}, nil
	}

	// Miss: pick a victim, flush it if dirty, load the new page, all
	// while still holding this set's lock. This also serializes
	// concurrent admissions of the same page into this set: no second
	// caller can observe an in-progress admission.
	victim, evicted := set.admit(p)
	buf := set.block(victim)

	if evicted.Valid() && evicted.Dirty {
		if err := c.backend.Write(evicted.Page, buf); err != nil {
			set.Unlock()
			return residence{}, errors.Wrapf(err, "blockcache: flush evicted page %d", evicted.Page)
		}
	}

	n, err := c.backend.Read(p, buf)
	if err != nil && errors.Cause(err) != io.EOF {
		set.Unlock()
		return residence{}, errors.Wrapf(err, "blockcache: load page %d", p)
	}
	if n < len(buf) {
		// Short read at/near EOF (or a page wholly past EOF): the backend
		// only filled the prefix. The frame is reused memory, so the
		// remainder must be zeroed.
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
	}
	set.markDirty(victim, false)
	set.Unlock()

	if prefetch && c.cfg.BlocksPerFetch > 1 {
		c.readAhead(p)
	}

	return residence{set: set, frame: victim}, nil
}

// readAhead fetches the next BlocksPerFetch-1 contiguous pages that are
// currently absent, one set-mutator acquisition at a time. Errors are
// swallowed: prefetch is an optimization, never a correctness
// requirement, and a failed prefetch must not fail the triggering
// read/write.
func (c *Cache) readAhead(triggering PageNumber) {
	for i := 1; i < c.cfg.BlocksPerFetch; i++ {
		next := triggering + PageNumber(i)
		if next < triggering {
			return // wrapped past the page-number space
		}
		set, _ := c.collection.SetFor(next)
		set.Lock()
		_, hit := set.get(next)
		set.Unlock()
		if hit {
			continue
		}
		if _, err := c.ensureResident(next, false); err != nil {
			return
		}
	}
}

// ReadChunks invokes visit once per page intersecting [offset, offset+length)
// with that page's overlapping slice, without internal concatenation. It
// stops at the last page that overlaps the source's current length.
func (c *Cache) ReadChunks(offset, length int64, visit func(Block) error) error {
	if length <= 0 {
		return nil
	}
	srcLen := c.backend.Length()
	end := offset + length
	if end > srcLen {
		end = srcLen
	}
	if end <= offset {
		return nil
	}

	b := int64(c.cfg.BlockSize)
	for pos := offset; pos < end; {
		page := PageNumber(pos / b)
		pageStart := int64(page) * b
		lo := int(pos - pageStart)
		hi := b
		if pageStart+b > end {
			hi = end - pageStart
		}

		res, err := c.ensureResident(page, true)
		if err != nil {
			return err
		}
		res.set.Lock()
		blk := res.set.block(res.frame)
		err = visit(blk[lo:hi])
		res.set.Unlock()
		if err != nil {
			return err
		}

		pos = pageStart + hi
	}
	return nil
}

// Read copies min(length(buf), available) bytes from [offset, offset+len(buf))
// into buf, returning the number of bytes actually materialized. A short
// return at EOF is not an error.
func (c *Cache) Read(offset int64, buf []byte) (int, error) {
	written := 0
	err := c.ReadChunks(offset, int64(len(buf)), func(chunk Block) error {
		n := copy(buf[written:], chunk)
		written += n
		return nil
	})
	return written, err
}

// Write copies data into the cache page-by-page starting at offset,
// returning the number of bytes accepted. A full-block write skips
// loading the old contents; a partial write loads-then-modifies (see
// DESIGN.md for why).
func (c *Cache) Write(offset int64, data []byte) (int, error) {
	if !c.writable {
		return 0, ErrReadOnly
	}
	if len(data) == 0 {
		return 0, nil
	}

	b := int64(c.cfg.BlockSize)
	written := 0
	for written < len(data) {
		pos := offset + int64(written)
		page := PageNumber(pos / b)
		pageStart := int64(page) * b
		lo := int(pos - pageStart)
		hi := int(b)
		remaining := len(data) - written
		if int64(lo+remaining) < b {
			hi = lo + remaining
		}
		full := lo == 0 && int64(hi) == b

		var res residence
		var err error
		if full {
			// Full-block write: no need to load the old contents — the
			// whole frame is about to be overwritten.
			res, err = c.admitWithoutLoad(page)
		} else {
			res, err = c.ensureResident(page, true)
		}
		if err != nil {
			return written, err
		}

		res.set.Lock()
		blk := res.set.block(res.frame)
		n := copy(blk[lo:hi], data[written:written+(hi-lo)])
		res.set.markDirty(res.frame, true)
		if c.cfg.WritePolicy == WriteThrough {
			if werr := c.backend.Write(page, blk); werr != nil {
				res.set.Unlock()
				return written, errors.Wrapf(werr, "blockcache: write-through page %d", page)
			}
			res.set.markDirty(res.frame, false)
		}
		res.set.Unlock()

		written += n
		if n == 0 {
			break
		}
	}
	return written, nil
}

// admitWithoutLoad ensures page is resident for a full-block write, never
// issuing a backend read for it. A dirty victim is still flushed before
// its frame is reused.
func (c *Cache) admitWithoutLoad(page PageNumber) (residence, error) {
	set, _ := c.collection.SetFor(page)
	set.Lock()
	if f, ok := set.get(page); ok {
		set.Unlock()
		return residence{set: set, frame: f}, nil
	}
	victim, evicted := set.admit(page)
	if evicted.Valid() && evicted.Dirty {
		buf := set.block(victim)
		if err := c.backend.Write(evicted.Page, buf); err != nil {
			set.Unlock()
			return residence{}, errors.Wrapf(err, "blockcache: flush evicted page %d", evicted.Page)
		}
	}
	set.markDirty(victim, false)
	set.Unlock()
	return residence{set: set, frame: victim}, nil
}

// FlushDirty writes back every currently-dirty frame across all sets,
// without evicting them. Used by IntoSource and the optional periodic
// flusher (flusher.go).
func (c *Cache) FlushDirty() error {
	for _, set := range c.collection.All() {
		set.Lock()
		for _, f := range set.dirtyFrames() {
			info := set.blockInfo(f)
			if err := c.backend.Write(info.Page, set.block(f)); err != nil {
				set.Unlock()
				return errors.Wrapf(err, "blockcache: flush page %d", info.Page)
			}
			set.markDirty(f, false)
		}
		set.Unlock()
	}
	return nil
}

// IntoSource flushes all dirty frames (if writable and write-back),
// terminates the async worker if present, and returns. The Source itself
// stays open — ownership returns to the caller.
func (c *Cache) IntoSource() error {
	if c.writable {
		if err := c.FlushDirty(); err != nil {
			return err
		}
	}
	c.logger.Printf("cache shutting down")
	return c.backend.Close()
}
