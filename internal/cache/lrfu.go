package cache

import "math"

// lrfuMetric is the positional heap's sort key for LRFU: the Combined
// Recency-Frequency value at the time of last touch, plus that time.
type lrfuMetric struct {
	crf  float64
	time uint64
}

// lrfuReplacement is a min-heap keyed by crf_now(f) = rate^(now-f.time)*f.crf,
// a monotonic "now" counter, and a configured decay rate in (0,1].
type lrfuReplacement struct {
	heap *positionalHeap[lrfuMetric]
	rate float64
	now  uint64
}

func newLRFUReplacement(count int, rate float64) *lrfuReplacement {
	l := &lrfuReplacement{rate: rate}
	l.heap = newPositionalHeap(count, lrfuMetric{crf: 0, time: 0}, l.less)
	return l
}

// crfNow evaluates the decayed CRF value of m relative to the cache's
// current "now". When m.time == now (the node just touched this round)
// this reduces to m.crf exactly, since rate^0 == 1.
func (l *lrfuReplacement) crfNow(m lrfuMetric) float64 {
	elapsed := l.now - m.time
	return math.Pow(l.rate, float64(elapsed)) * m.crf
}

func (l *lrfuReplacement) less(a, b lrfuMetric) bool {
	return l.crfNow(a) < l.crfNow(b)
}

func (l *lrfuReplacement) RecordAccess(frame FrameIndex) {
	l.now++
	now := l.now
	l.heap.Update(frame, func(m lrfuMetric) lrfuMetric {
		return lrfuMetric{crf: l.crfNow(m) + 1.0, time: now}
	})
}

func (l *lrfuReplacement) Replace() FrameIndex {
	victim := l.heap.Root()
	l.heap.Update(victim, func(lrfuMetric) lrfuMetric {
		return lrfuMetric{crf: 1.0, time: 0}
	})
	return victim
}
