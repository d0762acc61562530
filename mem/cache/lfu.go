package cache

import "math"

// LFUVictimFinder evicts the least frequently used block. Equal counts are
// resolved by recency.
type LFUVictimFinder struct{}

// NewLFUVictimFinder creates an LFUVictimFinder.
func NewLFUVictimFinder() *LFUVictimFinder {
	return &LFUVictimFinder{}
}

// Name returns LFU.
func (f *LFUVictimFinder) Name() string { return string(PolicyLFU) }

// Touch does nothing. The directory counts the accesses.
func (f *LFUVictimFinder) Touch(_ *Set, _ *Block) {}

// Insert does nothing.
func (f *LFUVictimFinder) Insert(_ *Set, _ *Block) {}

// FindVictim returns the block with the fewest accesses.
func (f *LFUVictimFinder) FindVictim(
	set *Set,
	eligible func(*Block) bool,
) (*Block, bool) {
	return pickMin(set, eligible, func(a, b *Block) bool {
		if a.AccessCount != b.AccessCount {
			return a.AccessCount < b.AccessCount
		}

		return a.LastAccess < b.LastAccess
	})
}

// DefaultLRFULambda weighs recency and frequency roughly evenly for short
// reuse distances.
const DefaultLRFULambda = 0.1

// LRFUVictimFinder keeps a combined recency and frequency value per block.
// Each access adds one to the value, and the value decays by
// 2^(-lambda * elapsed) between accesses. A lambda of 0 behaves like LFU and
// a large lambda behaves like LRU.
type LRFUVictimFinder struct {
	Lambda float64
}

// NewLRFUVictimFinder creates an LRFUVictimFinder.
func NewLRFUVictimFinder(lambda float64) *LRFUVictimFinder {
	return &LRFUVictimFinder{Lambda: lambda}
}

// Name returns LRFU.
func (f *LRFUVictimFinder) Name() string { return string(PolicyLRFU) }

func (f *LRFUVictimFinder) decay(elapsed uint64) float64 {
	return math.Pow(2, -f.Lambda*float64(elapsed))
}

// Insert starts the block with a value of one.
func (f *LRFUVictimFinder) Insert(_ *Set, block *Block) {
	block.CRF = 1
}

// Touch folds the new access into the value. It runs before the block's
// LastAccess moves to the current clock.
func (f *LRFUVictimFinder) Touch(set *Set, block *Block) {
	block.CRF = 1 + block.CRF*f.decay(set.Clock-block.LastAccess)
}

// FindVictim returns the block with the smallest decayed value.
func (f *LRFUVictimFinder) FindVictim(
	set *Set,
	eligible func(*Block) bool,
) (*Block, bool) {
	now := set.Clock

	return pickMin(set, eligible, func(a, b *Block) bool {
		va := a.CRF * f.decay(now-a.LastAccess)
		vb := b.CRF * f.decay(now-b.LastAccess)

		if va != vb {
			return va < vb
		}

		return a.LastAccess < b.LastAccess
	})
}
