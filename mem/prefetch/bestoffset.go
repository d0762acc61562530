package prefetch

// Best-offset learning parameters.
const (
	boRRSize    = 256
	boScoreMax  = 31
	boRoundMax  = 100
	boBadScore  = 1
	boMaxOffset = 64
)

// BestOffset is the best-offset prefetcher. It repeatedly tests a list of
// candidate offsets against a table of recent fills and prefetches with the
// offset that would have been timely most often in the last learning phase.
type BestOffset struct {
	observerBase

	offsets []int64
	scores  []int
	rr      []uint64
	rrValid []bool

	testIdx int
	round   int

	offset  int64
	enabled bool
}

// NewBestOffset creates a BestOffset prefetcher that starts with offset 1.
func NewBestOffset() *BestOffset {
	p := &BestOffset{
		offsets: candidateOffsets(boMaxOffset),
		rr:      make([]uint64, boRRSize),
		rrValid: make([]bool, boRRSize),
	}
	p.scores = make([]int, len(p.offsets))
	p.Reset()

	return p
}

// candidateOffsets returns the offsets up to limit whose prime factors are
// only 2, 3 and 5.
func candidateOffsets(limit int64) []int64 {
	var offsets []int64

	for n := int64(1); n <= limit; n++ {
		m := n
		for _, f := range []int64{2, 3, 5} {
			for m%f == 0 {
				m /= f
			}
		}

		if m == 1 {
			offsets = append(offsets, n)
		}
	}

	return offsets
}

// Name returns BEST_OFFSET.
func (p *BestOffset) Name() string { return string(KindBestOffset) }

// Offset returns the offset currently in use, and whether prefetching is on.
func (p *BestOffset) Offset() (int64, bool) {
	return p.offset, p.enabled
}

func (p *BestOffset) rrIndex(line uint64) int {
	h := line ^ (line >> 8)
	return int(h % boRRSize)
}

func (p *BestOffset) rrInsert(line uint64) {
	i := p.rrIndex(line)
	p.rr[i] = line
	p.rrValid[i] = true
}

func (p *BestOffset) rrHit(line uint64) bool {
	i := p.rrIndex(line)
	return p.rrValid[i] && p.rr[i] == line
}

// PrefetchFilled records the base line of the completed prefetch.
func (p *BestOffset) PrefetchFilled(lineAddr uint64) {
	if base, ok := offsetLine(lineAddr, -p.offset); ok {
		p.rrInsert(base)
	}
}

// OnAccess trains on misses and prefetch hits, and issues one prefetch.
func (p *BestOffset) OnAccess(a Access) []uint64 {
	if !a.Triggers() {
		return nil
	}

	if !a.Hit && !p.enabled {
		p.rrInsert(a.LineAddr)
	}

	p.learn(a.LineAddr)

	if !p.enabled {
		return nil
	}

	target, ok := offsetLine(a.LineAddr, p.offset)
	if !ok {
		return nil
	}

	return []uint64{target}
}

func (p *BestOffset) learn(line uint64) {
	d := p.offsets[p.testIdx]
	if base, ok := offsetLine(line, -d); ok && p.rrHit(base) {
		p.scores[p.testIdx]++
		if p.scores[p.testIdx] >= boScoreMax {
			p.endPhase()
			return
		}
	}

	p.testIdx++
	if p.testIdx == len(p.offsets) {
		p.testIdx = 0
		p.round++

		if p.round >= boRoundMax {
			p.endPhase()
		}
	}
}

func (p *BestOffset) endPhase() {
	best := 0
	for i, s := range p.scores {
		if s > p.scores[best] {
			best = i
		}
	}

	if p.scores[best] <= boBadScore {
		p.enabled = false
	} else {
		p.enabled = true
		p.offset = p.offsets[best]
	}

	for i := range p.scores {
		p.scores[i] = 0
	}

	p.testIdx = 0
	p.round = 0
}

// Reset clears the learned state.
func (p *BestOffset) Reset() {
	for i := range p.scores {
		p.scores[i] = 0
	}

	for i := range p.rrValid {
		p.rrValid[i] = false
	}

	p.testIdx = 0
	p.round = 0
	p.offset = 1
	p.enabled = true
}
