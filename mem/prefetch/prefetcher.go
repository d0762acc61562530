// Package prefetch implements the prefetchers that sit next to the DRAM
// cache. All addresses in this package are line addresses, that is, byte
// addresses divided by the cache line size.
package prefetch

import "fmt"

// MaxDegree bounds the number of lines any prefetcher returns per access.
const MaxDegree = 8

// Access describes one demand access observed by the prefetcher.
type Access struct {
	LineAddr uint64
	Hit      bool

	// PrefetchHit is true for the first demand use of a prefetched line.
	PrefetchHit bool
}

// Triggers tells if the access is a miss or the first use of a prefetched
// line. Most prefetchers only train on those.
func (a Access) Triggers() bool {
	return !a.Hit || a.PrefetchHit
}

// A Prefetcher decides which lines to fetch ahead of demand.
type Prefetcher interface {
	Name() string

	// OnAccess returns the lines to prefetch after the access.
	OnAccess(a Access) []uint64

	// PrefetchFilled is called when a prefetched line lands in the cache.
	PrefetchFilled(lineAddr uint64)

	// PrefetchUsed is called when a demand access uses a prefetched line.
	// Late is true if the line was still being fetched.
	PrefetchUsed(lineAddr uint64, late bool)

	// LineEvicted is called on every eviction. ByPrefetch is true if the
	// new line that caused the eviction was a prefetch.
	LineEvicted(lineAddr uint64, byPrefetch bool)

	Reset()
}

// observerBase gives prefetchers no-op feedback callbacks.
type observerBase struct{}

func (observerBase) PrefetchFilled(uint64) {}
func (observerBase) PrefetchUsed(uint64, bool) {}
func (observerBase) LineEvicted(uint64, bool) {}

// Kind names a prefetching algorithm.
type Kind string

// Supported prefetchers.
const (
	KindNone       Kind = "NONE"
	KindTagged     Kind = "TAGGED"
	KindBestOffset Kind = "BEST_OFFSET"
	KindLeap       Kind = "LEAP"
	KindFeedback   Kind = "FEEDBACK"
)

// Valid tells if the kind is known.
func (k Kind) Valid() bool {
	switch k {
	case KindNone, KindTagged, KindBestOffset, KindLeap, KindFeedback:
		return true
	}

	return false
}

// New creates a prefetcher of the given kind.
func New(kind Kind) (Prefetcher, error) {
	switch kind {
	case KindNone:
		return NewNone(), nil
	case KindTagged:
		return NewTagged(4), nil
	case KindBestOffset:
		return NewBestOffset(), nil
	case KindLeap:
		return NewLeap(), nil
	case KindFeedback:
		return NewFeedback(), nil
	default:
		return nil, fmt.Errorf("unknown prefetcher %q", kind)
	}
}

func clampDegree(d int) int {
	if d < 1 {
		return 1
	}

	if d > MaxDegree {
		return MaxDegree
	}

	return d
}

// offsetLine applies a signed line offset. It reports false if the result
// falls below line zero.
func offsetLine(line uint64, delta int64) (uint64, bool) {
	if delta < 0 && uint64(-delta) > line {
		return 0, false
	}

	return uint64(int64(line) + delta), true
}

// None never prefetches.
type None struct {
	observerBase
}

// NewNone creates a prefetcher that does nothing.
func NewNone() *None {
	return &None{}
}

// Name returns NONE.
func (p *None) Name() string { return string(KindNone) }

// OnAccess returns nothing.
func (p *None) OnAccess(Access) []uint64 { return nil }

// Reset does nothing.
func (p *None) Reset() {}

// Tagged is a next-N-line prefetcher. It fires on a demand miss and on the
// first demand use of a prefetched line, so a stream keeps itself ahead.
type Tagged struct {
	observerBase

	Degree int
}

// NewTagged creates a Tagged prefetcher.
func NewTagged(degree int) *Tagged {
	return &Tagged{Degree: clampDegree(degree)}
}

// Name returns TAGGED.
func (p *Tagged) Name() string { return string(KindTagged) }

// OnAccess returns the next Degree lines.
func (p *Tagged) OnAccess(a Access) []uint64 {
	if !a.Triggers() {
		return nil
	}

	lines := make([]uint64, 0, p.Degree)
	for i := 1; i <= p.Degree; i++ {
		lines = append(lines, a.LineAddr+uint64(i))
	}

	return lines
}

// Reset does nothing.
func (p *Tagged) Reset() {}
