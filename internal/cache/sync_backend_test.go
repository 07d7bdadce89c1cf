package cache

import (
	"bytes"
	"testing"
)

func TestSyncBackendReadWriteRoundTrip(t *testing.T) {
	src := newMemSource(make([]byte, 64))
	b, err := newSyncBackend(src, src, 16)
	if err != nil {
		t.Fatalf("newSyncBackend: %v", err)
	}

	page := Block(bytes.Repeat([]byte{0xAB}, 16))
	if err := b.Write(1, page); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make(Block, 16)
	n, err := b.Read(1, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 16 || !bytes.Equal(buf, page) {
		t.Fatalf("round-trip mismatch: n=%d buf=%x", n, buf)
	}
}

func TestSyncBackendReadOnlyRejectsWrite(t *testing.T) {
	src := newReadOnlyMemSource(make([]byte, 16))
	b, err := newSyncBackend(src, nil, 16)
	if err != nil {
		t.Fatalf("newSyncBackend: %v", err)
	}
	if err := b.Write(0, make(Block, 16)); err != ErrReadOnly {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestSyncBackendShortReadNearEOF(t *testing.T) {
	src := newMemSource([]byte("0123456789")) // 10 bytes, block size 16
	b, err := newSyncBackend(src, src, 16)
	if err != nil {
		t.Fatalf("newSyncBackend: %v", err)
	}
	buf := make(Block, 16)
	n, err := b.Read(0, buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != 10 {
		t.Fatalf("expected short read of 10 bytes, got %d", n)
	}
}

func TestSyncBackendWriteExtendsLength(t *testing.T) {
	src := newMemSource(nil)
	b, err := newSyncBackend(src, src, 16)
	if err != nil {
		t.Fatalf("newSyncBackend: %v", err)
	}
	if b.Length() != 0 {
		t.Fatalf("expected initial length 0, got %d", b.Length())
	}
	if err := b.Write(0, make(Block, 16)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.Length() != 16 {
		t.Fatalf("expected length 16 after one page write, got %d", b.Length())
	}
}
