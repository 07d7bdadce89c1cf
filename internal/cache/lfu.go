package cache

// lfuMetric is the positional heap's sort key for LFU: a plain access
// counter, heap root = smallest count = next victim.
type lfuMetric struct {
	count uint64
}

// lfuReplacement is a min-heap of W entries keyed by access counter.
type lfuReplacement struct {
	heap *positionalHeap[lfuMetric]
}

func newLFUReplacement(count int) *lfuReplacement {
	return &lfuReplacement{
		heap: newPositionalHeap(count, lfuMetric{}, func(a, b lfuMetric) bool {
			return a.count < b.count
		}),
	}
}

func (l *lfuReplacement) RecordAccess(frame FrameIndex) {
	l.heap.Update(frame, func(m lfuMetric) lfuMetric {
		m.count++
		return m
	})
}

func (l *lfuReplacement) Replace() FrameIndex {
	victim := l.heap.Root()
	l.heap.Update(victim, func(lfuMetric) lfuMetric {
		return lfuMetric{count: 0}
	})
	return victim
}
