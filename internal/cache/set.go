package cache

import "sync"

// Set bundles W blocks with one lookup index and one replacement policy.
// All mutation of lookup/replacement/blocks requires holding mu:
// record_access mutates state on every touch, so sets never offer a
// shared/read path.
type Set struct {
	mu        sync.Mutex
	blockSize int
	blocks    []Block
	info      []BlockInfo
	lookup    Lookup
	replace   Replacement
}

// newSet allocates a set of the given width (frame count) with the chosen
// lookup/replacement variants. All storage is allocated here and never
// reallocated.
func newSet(width, blockSize int, lookupKind LookupKind, repl ReplacementKind, lrfuRate float64, directMapped bool) *Set {
	s := &Set{
		blockSize: blockSize,
		blocks:    make([]Block, width),
		info:      make([]BlockInfo, width),
	}
	for i := range s.blocks {
		s.blocks[i] = make(Block, blockSize)
		s.info[i] = NewBlockInfo()
	}

	if directMapped {
		s.lookup = newIdentityLookup()
		s.replace = newIdentityReplacement()
		return s
	}

	switch lookupKind {
	case LookupTable:
		s.lookup = newTableLookup(width)
	case LookupScan:
		s.lookup = newScanLookup(width)
	default:
		s.lookup = newScanLookup(width)
	}

	switch repl {
	case ReplacementRandom:
		s.replace = newRandomReplacementNWay(width)
	case ReplacementLRU:
		s.replace = newLRUReplacement(width)
	case ReplacementLFU:
		s.replace = newLFUReplacement(width)
	case ReplacementLRFU:
		s.replace = newLRFUReplacement(width, lrfuRate)
	case ReplacementFIFO:
		s.replace = newFIFOReplacement(width)
	default:
		s.replace = newLRUReplacement(width)
	}
	return s
}

// newFullyAssociativeSet is like newSet but the random/FIFO policies use
// their capacity-mod variant rather than a power-of-two mask, since a
// fully-associative cache's capacity N need not be a power of two.
func newFullyAssociativeSet(capacity, blockSize int, lookupKind LookupKind, repl ReplacementKind, lrfuRate float64) *Set {
	s := &Set{
		blockSize: blockSize,
		blocks:    make([]Block, capacity),
		info:      make([]BlockInfo, capacity),
	}
	for i := range s.blocks {
		s.blocks[i] = make(Block, blockSize)
		s.info[i] = NewBlockInfo()
	}

	switch lookupKind {
	case LookupTable:
		s.lookup = newTableLookup(capacity)
	default:
		s.lookup = newScanLookup(capacity)
	}

	switch repl {
	case ReplacementRandom:
		s.replace = newRandomReplacementFullyAssoc(capacity)
	case ReplacementLFU:
		s.replace = newLFUReplacement(capacity)
	case ReplacementLRFU:
		s.replace = newLRFUReplacement(capacity, lrfuRate)
	case ReplacementFIFO:
		s.replace = newFIFOReplacement(capacity)
	default:
		s.replace = newLRUReplacement(capacity)
	}
	return s
}

// Width returns the number of frames in the set.
func (s *Set) Width() int { return len(s.blocks) }

// get performs a lookup-only residence check: if page is resident, record
// the access and return its frame. Caller must hold s.mu.
func (s *Set) get(page PageNumber) (FrameIndex, bool) {
	f := s.lookup.Find(page)
	if f == NullFrame || s.info[f].Page != page {
		return NullFrame, false
	}
	s.replace.RecordAccess(f)
	return f, true
}

// admit selects a victim frame for page, evicting whatever it held from the
// lookup index. The frame's buffer still holds the evicted page's bytes on
// return: the caller is responsible for writing back the returned evicted
// page if it was dirty, and then for reading page's contents into the
// frame. Caller must hold s.mu.
func (s *Set) admit(page PageNumber) (victim FrameIndex, evicted BlockInfo) {
	victim = s.replace.Replace()
	evicted = s.info[victim]
	if evicted.Valid() {
		s.lookup.Remove(evicted.Page, victim)
	}
	s.info[victim] = BlockInfo{Page: page}
	s.lookup.Insert(page, victim)
	return victim, evicted
}

// block returns the backing buffer for frame. Caller must hold s.mu for the
// duration of any read/write through the returned slice.
func (s *Set) block(f FrameIndex) Block { return s.blocks[f] }

// blockInfo returns a copy of frame's bookkeeping record.
func (s *Set) blockInfo(f FrameIndex) BlockInfo { return s.info[f] }

// markDirty sets frame's dirty flag.
func (s *Set) markDirty(f FrameIndex, dirty bool) { s.info[f].Dirty = dirty }

// dirtyFrames returns every currently-dirty, valid frame. Used by
// Cache.IntoSource and the optional periodic flusher.
func (s *Set) dirtyFrames() []FrameIndex {
	var out []FrameIndex
	for i, bi := range s.info {
		if bi.Valid() && bi.Dirty {
			out = append(out, FrameIndex(i))
		}
	}
	return out
}

// Lock/Unlock expose the set's mutator to the façade: one exclusive lock
// acquired per page access.
func (s *Set) Lock()   { s.mu.Lock() }
func (s *Set) Unlock() { s.mu.Unlock() }
