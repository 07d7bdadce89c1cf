package cache

// inflightTable is the async writer's page -> ring-slot index, open-
// addressed and tombstone-free: every insert is later paired with exactly
// one remove before the table can fill, so a cleared slot never needs to
// stay a probe-continuing tombstone.
type inflightTable struct {
	pages []PageNumber
	slots []int
	mask  uint64
}

// newInflightTable sizes the table to the next power of two at least
// ceil(queueLen*1.5).
func newInflightTable(queueLen int) *inflightTable {
	want := queueLen + (queueLen+1)/2
	cap := nextPow2(want)
	t := &inflightTable{pages: make([]PageNumber, cap), slots: make([]int, cap)}
	for i := range t.pages {
		t.pages[i] = NilPage
	}
	t.mask = uint64(cap - 1)
	return t
}

func (t *inflightTable) insert(page PageNumber, slot int) {
	idx := hashPage(page) & t.mask
	for {
		if t.pages[idx] == NilPage {
			t.pages[idx] = page
			t.slots[idx] = slot
			return
		}
		idx = (idx + 1) & t.mask
	}
}

func (t *inflightTable) find(page PageNumber) (int, bool) {
	idx := hashPage(page) & t.mask
	for i := uint64(0); i <= t.mask; i++ {
		if t.pages[idx] == NilPage {
			return 0, false
		}
		if t.pages[idx] == page {
			return t.slots[idx], true
		}
		idx = (idx + 1) & t.mask
	}
	return 0, false
}

func (t *inflightTable) remove(page PageNumber) {
	idx := hashPage(page) & t.mask
	for i := uint64(0); i <= t.mask; i++ {
		if t.pages[idx] == NilPage {
			return
		}
		if t.pages[idx] == page {
			t.pages[idx] = NilPage
			return
		}
		idx = (idx + 1) & t.mask
	}
}

// clear empties every slot — used when the worker crashes and in-flight
// queued data is discarded without being retried internally.
func (t *inflightTable) clear() {
	for i := range t.pages {
		t.pages[i] = NilPage
	}
}
