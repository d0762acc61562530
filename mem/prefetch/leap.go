package prefetch

const (
	leapHistorySize = 32
	leapInitWindow  = 4
)

// Leap detects the majority stride in a window of recent access deltas. The
// window starts small and doubles until a majority is found or the history
// is exhausted. The number of lines fetched grows with the number of
// prefetch hits since the last trigger and shrinks when prefetches are not
// used.
type Leap struct {
	observerBase

	history []int64
	head    int
	count   int

	lastLine  uint64
	hasLast   bool
	lastTrend int64

	degree       int
	prefetchHits int
}

// NewLeap creates a Leap prefetcher.
func NewLeap() *Leap {
	p := &Leap{history: make([]int64, leapHistorySize)}
	p.Reset()

	return p
}

// Name returns LEAP.
func (p *Leap) Name() string { return string(KindLeap) }

// Degree returns the current prefetch window size.
func (p *Leap) Degree() int {
	return p.degree
}

func (p *Leap) record(delta int64) {
	p.history[p.head] = delta
	p.head = (p.head + 1) % len(p.history)

	if p.count < len(p.history) {
		p.count++
	}
}

// recent returns the i-th latest delta, where 0 is the newest.
func (p *Leap) recent(i int) int64 {
	n := len(p.history)
	return p.history[(p.head-1-i+n)%n]
}

// trend runs a Boyer-Moore majority vote over growing windows of history.
func (p *Leap) trend() (int64, bool) {
	for w := leapInitWindow; ; w *= 2 {
		if w > p.count {
			w = p.count
		}

		if w == 0 {
			return 0, false
		}

		var candidate int64

		votes := 0

		for i := 0; i < w; i++ {
			d := p.recent(i)

			switch {
			case votes == 0:
				candidate = d
				votes = 1
			case d == candidate:
				votes++
			default:
				votes--
			}
		}

		occurrences := 0

		for i := 0; i < w; i++ {
			if p.recent(i) == candidate {
				occurrences++
			}
		}

		if occurrences > w/2 && candidate != 0 {
			return candidate, true
		}

		if w >= p.count {
			return 0, false
		}
	}
}

func (p *Leap) adjustDegree() {
	if p.prefetchHits == 0 {
		p.degree /= 2
		if p.degree < 1 {
			p.degree = 1
		}

		return
	}

	d := 1
	for d < p.prefetchHits+1 {
		d *= 2
	}

	p.degree = clampDegree(d)
	p.prefetchHits = 0
}

// PrefetchUsed counts a useful prefetch toward the next window size.
func (p *Leap) PrefetchUsed(uint64, bool) {
	p.prefetchHits++
}

// OnAccess records the delta and prefetches along the detected trend.
func (p *Leap) OnAccess(a Access) []uint64 {
	if p.hasLast {
		p.record(int64(a.LineAddr) - int64(p.lastLine))
	}

	p.lastLine = a.LineAddr
	p.hasLast = true

	if !a.Triggers() {
		return nil
	}

	t, found := p.trend()
	if found {
		p.lastTrend = t
	} else {
		t = p.lastTrend
	}

	if t == 0 {
		return nil
	}

	p.adjustDegree()

	lines := make([]uint64, 0, p.degree)

	for k := 1; k <= p.degree; k++ {
		line, ok := offsetLine(a.LineAddr, t*int64(k))
		if !ok {
			break
		}

		lines = append(lines, line)
	}

	return lines
}

// Reset clears the history.
func (p *Leap) Reset() {
	for i := range p.history {
		p.history[i] = 0
	}

	p.head = 0
	p.count = 0
	p.hasLast = false
	p.lastTrend = 0
	p.degree = 1
	p.prefetchHits = 0
}
