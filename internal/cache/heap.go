package cache

// positionalHeap is an array-based min-heap over a fixed set of frames
// [0,size). Unlike container/heap it stores, for every frame, its current
// position in the heap array, so update(frame) can locate the node in O(1)
// and re-sift in O(log size) without a scan.
type positionalHeap[M any] struct {
	metric []M          // metric[frame] is the sort key for frame
	pos    []int        // pos[frame] is frame's current slot in queue
	queue  []FrameIndex // queue[slot] is the frame occupying that slot
	less   func(a, b M) bool
}

// newPositionalHeap builds a heap over size frames, all starting with the
// given initial metric, in frame order (frame i at slot i).
func newPositionalHeap[M any](size int, initial M, less func(a, b M) bool) *positionalHeap[M] {
	h := &positionalHeap[M]{
		metric: make([]M, size),
		pos:    make([]int, size),
		queue:  make([]FrameIndex, size),
		less:   less,
	}
	for i := 0; i < size; i++ {
		h.metric[i] = initial
		h.pos[i] = i
		h.queue[i] = FrameIndex(i)
	}
	return h
}

// Metric returns the current stored metric for frame.
func (h *positionalHeap[M]) Metric(frame FrameIndex) M {
	return h.metric[frame]
}

// Root returns the frame currently at the root (smallest per less).
func (h *positionalHeap[M]) Root() FrameIndex {
	return h.queue[0]
}

// Update applies mutate to frame's metric, then sifts it down (away from
// the root) to restore heap order; there is no sift-up. Every caller in
// this package either raises a node's key (counters increase, recency
// grows) or resets the node that is currently the root (replace()), so a
// single sift-down pass after mutation is sufficient.
func (h *positionalHeap[M]) Update(frame FrameIndex, mutate func(M) M) {
	h.metric[frame] = mutate(h.metric[frame])
	h.siftDown(h.pos[frame])
}

func (h *positionalHeap[M]) siftDown(p int) {
	n := len(h.queue)
	for {
		left := 2*p + 1
		right := 2*p + 2
		smallest := p
		if left < n && h.less(h.metric[h.queue[left]], h.metric[h.queue[smallest]]) {
			smallest = left
		}
		if right < n && h.less(h.metric[h.queue[right]], h.metric[h.queue[smallest]]) {
			smallest = right
		}
		if smallest == p {
			return
		}
		h.swap(p, smallest)
		p = smallest
	}
}

func (h *positionalHeap[M]) swap(i, j int) {
	h.queue[i], h.queue[j] = h.queue[j], h.queue[i]
	h.pos[h.queue[i]] = i
	h.pos[h.queue[j]] = j
}
