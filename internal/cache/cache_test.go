package cache

import (
	"bytes"
	"testing"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.BlockSize = 8
	cfg.Associativity = NWay(2)
	cfg.Replacement = ReplacementLRU
	cfg.Lookup = LookupScan
	cfg.Mem = 8 * 2 * 4 // 4 sets of width 2
	return cfg
}

func TestCacheReadWriteRoundTrip(t *testing.T) {
	src := newMemSource(make([]byte, 256))
	c, err := New(smallConfig(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := []byte("hello, block cache world!!")
	if n, err := c.Write(3, data); err != nil || n != len(data) {
		t.Fatalf("Write: n=%d err=%v", n, err)
	}

	buf := make([]byte, len(data))
	n, err := c.Read(3, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(data) || !bytes.Equal(buf, data) {
		t.Fatalf("round-trip mismatch: got %q want %q", buf, data)
	}
}

func TestCacheWriteBackOnlyVisibleAfterFlush(t *testing.T) {
	src := newMemSource(make([]byte, 64))
	cfg := smallConfig()
	cfg.WritePolicy = WriteBack
	c, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := bytes.Repeat([]byte{0xCD}, 8)
	if _, err := c.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Before flush, the underlying source must still be untouched.
	snap := src.snapshot()
	if bytes.Equal(snap[:8], data) {
		t.Fatal("write-back data should not reach the source before a flush")
	}

	if err := c.FlushDirty(); err != nil {
		t.Fatalf("FlushDirty: %v", err)
	}
	snap = src.snapshot()
	if !bytes.Equal(snap[:8], data) {
		t.Fatal("expected source to reflect the write after FlushDirty")
	}
}

func TestCacheWriteThroughIsImmediatelyVisible(t *testing.T) {
	src := newMemSource(make([]byte, 64))
	cfg := smallConfig()
	cfg.WritePolicy = WriteThrough
	c, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	data := bytes.Repeat([]byte{0xEF}, 8)
	if _, err := c.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	snap := src.snapshot()
	if !bytes.Equal(snap[:8], data) {
		t.Fatal("write-through data should reach the source immediately")
	}
}

func TestCacheReadOnlySourceRejectsWrite(t *testing.T) {
	src := newReadOnlyMemSource(make([]byte, 64))
	c, err := New(smallConfig(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Write(0, []byte("x")); err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestCacheReadStopsAtSourceLength(t *testing.T) {
	src := newMemSource([]byte("0123456789")) // 10 bytes
	c, err := New(smallConfig(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	buf := make([]byte, 20)
	n, err := c.Read(5, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes available past offset 5 of a 10-byte source, got %d", n)
	}
	if !bytes.Equal(buf[:5], []byte("56789")) {
		t.Fatalf("unexpected content: %q", buf[:5])
	}
}

func TestCacheReadChunksVisitsPerPageSlices(t *testing.T) {
	src := newMemSource(make([]byte, 64))
	c, err := New(smallConfig(), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := bytes.Repeat([]byte{0x11}, 20)
	if _, err := c.Write(2, data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var total int
	err = c.ReadChunks(2, 20, func(chunk Block) error {
		total += len(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	if total != 20 {
		t.Fatalf("expected chunks to cover 20 bytes total, got %d", total)
	}
}

func TestCacheEvictionPreservesDirtyData(t *testing.T) {
	src := newMemSource(make([]byte, 256))
	cfg := smallConfig()
	cfg.WritePolicy = WriteBack
	c, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Write to page 0 of set 0, then write enough other pages routed to the
	// same set to force eviction of page 0's frame, then read page 0 back
	// via the cache: the eviction must have flushed it to the source first.
	page0 := bytes.Repeat([]byte{0xAA}, 8)
	if _, err := c.Write(0, page0); err != nil {
		t.Fatalf("Write page 0: %v", err)
	}
	// Pages routed to the same set as page 0 (set count 4 -> page%4==0):
	// pages 4, 8, 12 share set 0 alongside page 0.
	for _, p := range []int64{4 * 8, 8 * 8, 12 * 8} {
		if _, err := c.Write(p, bytes.Repeat([]byte{0xBB}, 8)); err != nil {
			t.Fatalf("Write filler page at %d: %v", p, err)
		}
	}

	buf := make([]byte, 8)
	if _, err := c.Read(0, buf); err != nil {
		t.Fatalf("Read page 0 after eviction: %v", err)
	}
	if !bytes.Equal(buf, page0) {
		t.Fatalf("expected evicted dirty page 0 to have been flushed and reloaded intact, got %x", buf)
	}
}

func TestCacheIntoSourceFlushesAndCloses(t *testing.T) {
	src := newMemSource(make([]byte, 32))
	cfg := smallConfig()
	cfg.WritePolicy = WriteBack
	c, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data := bytes.Repeat([]byte{0x33}, 8)
	if _, err := c.Write(0, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.IntoSource(); err != nil {
		t.Fatalf("IntoSource: %v", err)
	}
	snap := src.snapshot()
	if !bytes.Equal(snap[:8], data) {
		t.Fatal("IntoSource should have flushed dirty data to the source")
	}
}

func TestCacheInvalidConfigPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for invalid config")
		}
	}()
	cfg := DefaultConfig()
	cfg.BlockSize = 0
	src := newMemSource(nil)
	New(cfg, src)
}

func TestCacheDirectMappedConflictFlushesEvictedPage(t *testing.T) {
	// W=1, S=2, B=16: pages 0 and 2 both map to set 0 and collide.
	cfg := DefaultConfig()
	cfg.BlockSize = 16
	cfg.Associativity = NWay(1)
	cfg.Replacement = ReplacementLRU
	cfg.Lookup = LookupScan
	cfg.WritePolicy = WriteBack
	cfg.Mem = 16 * 1 * 2
	src := newMemSource(make([]byte, 64))
	c, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	page0 := bytes.Repeat([]byte{0x11}, 16)
	page2 := bytes.Repeat([]byte{0x22}, 16)
	if _, err := c.Write(0, page0); err != nil {
		t.Fatalf("write page 0: %v", err)
	}
	if _, err := c.Write(2*16, page2); err != nil {
		t.Fatalf("write page 2: %v", err)
	}

	buf := make([]byte, 16)
	if _, err := c.Read(0, buf); err != nil {
		t.Fatalf("read page 0: %v", err)
	}
	if !bytes.Equal(buf, page0) {
		t.Fatalf("expected page 0 flushed before the conflicting page 2 evicted it, got %x", buf)
	}
}

func TestCacheWriteThroughPartialBlockPreservesSurroundingBytes(t *testing.T) {
	cfg := smallConfig()
	cfg.WritePolicy = WriteThrough
	src := newMemSource(bytes.Repeat([]byte{0x00}, 16))
	c, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Write(6, []byte{0xDE, 0xAD, 0xBE, 0xEF}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	snap := src.snapshot()
	want := append(bytes.Repeat([]byte{0x00}, 6), 0xDE, 0xAD, 0xBE, 0xEF)
	want = append(want, bytes.Repeat([]byte{0x00}, 6)...)
	if !bytes.Equal(snap[:16], want) {
		t.Fatalf("partial write-through write touched bytes outside its range: got %x want %x", snap[:16], want)
	}
}

func TestCacheShortReadAtEOFLeavesRemainderUntouched(t *testing.T) {
	cfg := smallConfig()
	cfg.BlockSize = 8
	src := newMemSource([]byte("0123456789")) // 10-byte source
	c, err := New(cfg, src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	buf := bytes.Repeat([]byte{0xFF}, 20)
	n, err := c.Read(0, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected 10 bytes available from a 10-byte source, got %d", n)
	}
	if !bytes.Equal(buf[:10], []byte("0123456789")) {
		t.Fatalf("unexpected content in available range: %q", buf[:10])
	}
	for i := 10; i < 20; i++ {
		if buf[i] != 0xFF {
			t.Fatalf("byte %d past source length was modified, expected untouched sentinel", i)
		}
	}
}
