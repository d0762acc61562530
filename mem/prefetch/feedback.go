package prefetch

import (
	"encoding/binary"

	cuckoo "github.com/seiflotfy/cuckoofilter"
)

const (
	fdpStreams        = 16
	fdpTrainDistance  = 16
	fdpInterval       = 256
	fdpFilterCapacity = 4096

	fdpAccuracyHigh = 0.75
	fdpAccuracyLow  = 0.40
	fdpLateness     = 0.01
	fdpPollution    = 0.005
)

// aggressiveness levels, as (distance, degree) pairs.
var fdpLevels = [...]struct{ distance, degree int64 }{
	{4, 1},
	{8, 1},
	{16, 2},
	{32, 4},
	{64, 4},
}

type stream struct {
	valid     bool
	last      uint64
	next      uint64
	direction int64
	confirmed bool
	lru       uint64
}

// Feedback is a stream prefetcher whose distance and degree follow the
// measured accuracy, lateness and cache pollution of its own prefetches.
// The counters are sampled every fixed number of evictions. Demand lines
// that were evicted by prefetched lines are remembered in a cuckoo filter,
// so that a later demand miss on one of them counts as pollution.
type Feedback struct {
	streams []stream
	clock   uint64

	level int

	sent, used, late     int
	demandMisses, polled int
	evictions            int

	pollution *cuckoo.Filter
}

// NewFeedback creates a Feedback prefetcher at the middle aggressiveness
// level.
func NewFeedback() *Feedback {
	p := &Feedback{
		streams:   make([]stream, fdpStreams),
		pollution: cuckoo.NewFilter(fdpFilterCapacity),
	}
	p.Reset()

	return p
}

// Name returns FEEDBACK.
func (p *Feedback) Name() string { return string(KindFeedback) }

// Level returns the aggressiveness level, from 1 to 5.
func (p *Feedback) Level() int {
	return p.level + 1
}

func lineKey(line uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, line)

	return b
}

// OnAccess trains the streams and issues prefetches for confirmed ones.
func (p *Feedback) OnAccess(a Access) []uint64 {
	if !a.Hit {
		p.demandMisses++

		if p.pollution.Lookup(lineKey(a.LineAddr)) {
			p.polled++
			p.pollution.Delete(lineKey(a.LineAddr))
		}
	}

	if !a.Triggers() {
		return nil
	}

	p.clock++

	s := p.findStream(a.LineAddr)
	if s == nil {
		p.allocateStream(a.LineAddr)
		return nil
	}

	dir := int64(1)
	if a.LineAddr < s.last {
		dir = -1
	}

	if s.direction != dir {
		s.direction = dir
		s.confirmed = false
		s.next = a.LineAddr
	} else {
		s.confirmed = true
	}

	s.last = a.LineAddr
	s.lru = p.clock

	if !s.confirmed {
		return nil
	}

	return p.issue(s, a.LineAddr)
}

func (p *Feedback) issue(s *stream, line uint64) []uint64 {
	lv := fdpLevels[p.level]

	if s.direction > 0 && s.next <= line {
		s.next = line + 1
	}

	if s.direction < 0 && s.next >= line {
		if line == 0 {
			return nil
		}

		s.next = line - 1
	}

	var lines []uint64

	for int64(len(lines)) < lv.degree {
		dist := int64(s.next) - int64(line)
		if dist*s.direction > lv.distance {
			break
		}

		lines = append(lines, s.next)

		next, ok := offsetLine(s.next, s.direction)
		if !ok {
			break
		}

		s.next = next
	}

	p.sent += len(lines)

	return lines
}

func (p *Feedback) findStream(line uint64) *stream {
	for i := range p.streams {
		s := &p.streams[i]
		if !s.valid {
			continue
		}

		d := int64(line) - int64(s.last)
		if d != 0 && d >= -fdpTrainDistance && d <= fdpTrainDistance {
			return s
		}
	}

	return nil
}

func (p *Feedback) allocateStream(line uint64) {
	victim := &p.streams[0]

	for i := range p.streams {
		s := &p.streams[i]
		if !s.valid {
			victim = s
			break
		}

		if s.lru < victim.lru {
			victim = s
		}
	}

	*victim = stream{
		valid: true,
		last:  line,
		next:  line,
		lru:   p.clock,
	}
}

// PrefetchUsed counts a useful prefetch.
func (p *Feedback) PrefetchUsed(_ uint64, late bool) {
	p.used++

	if late {
		p.late++
	}
}

// PrefetchFilled does nothing.
func (p *Feedback) PrefetchFilled(uint64) {}

// LineEvicted remembers demand lines pushed out by prefetches and adjusts
// the aggressiveness at the end of each sampling interval.
func (p *Feedback) LineEvicted(lineAddr uint64, byPrefetch bool) {
	if byPrefetch {
		if !p.pollution.Insert(lineKey(lineAddr)) {
			p.pollution.Reset()
			p.pollution.Insert(lineKey(lineAddr))
		}
	}

	p.evictions++
	if p.evictions >= fdpInterval {
		p.adjust()
	}
}

func (p *Feedback) adjust() {
	accuracy := 0.0
	if p.sent > 0 {
		accuracy = float64(p.used) / float64(p.sent)
	}

	lateness := 0.0
	if p.used > 0 {
		lateness = float64(p.late) / float64(p.used)
	}

	pollution := 0.0
	if p.demandMisses > 0 {
		pollution = float64(p.polled) / float64(p.demandMisses)
	}

	isLate := lateness > fdpLateness
	isPolluting := pollution > fdpPollution

	switch {
	case accuracy >= fdpAccuracyHigh:
		if isLate {
			p.level++
		} else if isPolluting {
			p.level--
		}
	case accuracy >= fdpAccuracyLow:
		if isPolluting {
			p.level--
		} else if isLate {
			p.level++
		}
	default:
		p.level--
	}

	if p.level < 0 {
		p.level = 0
	}

	if p.level >= len(fdpLevels) {
		p.level = len(fdpLevels) - 1
	}

	p.sent /= 2
	p.used /= 2
	p.late /= 2
	p.demandMisses /= 2
	p.polled /= 2
	p.evictions = 0
}

// Reset drops all streams and feedback counters.
func (p *Feedback) Reset() {
	for i := range p.streams {
		p.streams[i] = stream{}
	}

	p.clock = 0
	p.level = 2
	p.sent, p.used, p.late = 0, 0, 0
	p.demandMisses, p.polled = 0, 0
	p.evictions = 0
	p.pollution.Reset()
}
