package cache

import (
	"fmt"
	"math/rand"
)

// A VictimFinder decides which block to evict when a set is full.
type VictimFinder interface {
	Name() string

	// Touch is called when a demand access hits the block.
	Touch(set *Set, block *Block)

	// Insert is called when a new line is placed into the block.
	Insert(set *Set, block *Block)

	// FindVictim picks one of the eligible blocks of the set.
	FindVictim(set *Set, eligible func(*Block) bool) (*Block, bool)
}

// ReplacementPolicy names a victim selection algorithm.
type ReplacementPolicy string

// Supported replacement policies.
const (
	PolicyRandom ReplacementPolicy = "RANDOM"
	PolicyFIFO   ReplacementPolicy = "FIFO"
	PolicyLRU    ReplacementPolicy = "LRU"
	PolicyLRU2   ReplacementPolicy = "LRU2"
	PolicyLFU    ReplacementPolicy = "LFU"
	PolicyLRFU   ReplacementPolicy = "LRFU"
	PolicyCFLRU  ReplacementPolicy = "CFLRU"
)

// Valid tells if the policy is known.
func (p ReplacementPolicy) Valid() bool {
	switch p {
	case PolicyRandom, PolicyFIFO, PolicyLRU, PolicyLRU2,
		PolicyLFU, PolicyLRFU, PolicyCFLRU:
		return true
	}

	return false
}

// NewVictimFinder creates the victim finder of the given policy. The random
// source is only used by the RANDOM policy.
func NewVictimFinder(
	policy ReplacementPolicy,
	rng *rand.Rand,
) (VictimFinder, error) {
	switch policy {
	case PolicyRandom:
		return NewRandomVictimFinder(rng), nil
	case PolicyFIFO:
		return NewFIFOVictimFinder(), nil
	case PolicyLRU:
		return NewLRUVictimFinder(), nil
	case PolicyLRU2:
		return NewLRU2VictimFinder(), nil
	case PolicyLFU:
		return NewLFUVictimFinder(), nil
	case PolicyLRFU:
		return NewLRFUVictimFinder(DefaultLRFULambda), nil
	case PolicyCFLRU:
		return NewCFLRUVictimFinder(), nil
	default:
		return nil, fmt.Errorf("unknown replacement policy %q", policy)
	}
}

// pickMin returns the eligible block with the smallest key. Ties are broken
// by the lower way index.
func pickMin(
	set *Set,
	eligible func(*Block) bool,
	less func(a, b *Block) bool,
) (*Block, bool) {
	var victim *Block

	for _, b := range set.Blocks {
		if !eligible(b) {
			continue
		}

		if victim == nil || less(b, victim) {
			victim = b
		}
	}

	return victim, victim != nil
}

// RandomVictimFinder evicts a uniformly chosen eligible block.
type RandomVictimFinder struct {
	rng        *rand.Rand
	candidates []*Block
}

// NewRandomVictimFinder creates a RandomVictimFinder.
func NewRandomVictimFinder(rng *rand.Rand) *RandomVictimFinder {
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	return &RandomVictimFinder{rng: rng}
}

// Name returns RANDOM.
func (f *RandomVictimFinder) Name() string { return string(PolicyRandom) }

// Touch does nothing.
func (f *RandomVictimFinder) Touch(_ *Set, _ *Block) {}

// Insert does nothing.
func (f *RandomVictimFinder) Insert(_ *Set, _ *Block) {}

// FindVictim picks one eligible block at random.
func (f *RandomVictimFinder) FindVictim(
	set *Set,
	eligible func(*Block) bool,
) (*Block, bool) {
	f.candidates = f.candidates[:0]

	for _, b := range set.Blocks {
		if eligible(b) {
			f.candidates = append(f.candidates, b)
		}
	}

	if len(f.candidates) == 0 {
		return nil, false
	}

	return f.candidates[f.rng.Intn(len(f.candidates))], true
}

// FIFOVictimFinder evicts the block that was installed first.
type FIFOVictimFinder struct{}

// NewFIFOVictimFinder creates a FIFOVictimFinder.
func NewFIFOVictimFinder() *FIFOVictimFinder {
	return &FIFOVictimFinder{}
}

// Name returns FIFO.
func (f *FIFOVictimFinder) Name() string { return string(PolicyFIFO) }

// Touch does nothing.
func (f *FIFOVictimFinder) Touch(_ *Set, _ *Block) {}

// Insert does nothing. The directory stamps the insertion order.
func (f *FIFOVictimFinder) Insert(_ *Set, _ *Block) {}

// FindVictim returns the oldest installed block.
func (f *FIFOVictimFinder) FindVictim(
	set *Set,
	eligible func(*Block) bool,
) (*Block, bool) {
	return pickMin(set, eligible, func(a, b *Block) bool {
		return a.InsertOrder < b.InsertOrder
	})
}

// LRUVictimFinder evicts the least recently used block.
type LRUVictimFinder struct{}

// NewLRUVictimFinder returns a newly constructed lru evictor
func NewLRUVictimFinder() *LRUVictimFinder {
	return &LRUVictimFinder{}
}

// Name returns LRU.
func (f *LRUVictimFinder) Name() string { return string(PolicyLRU) }

// Touch does nothing. The directory stamps the access time.
func (f *LRUVictimFinder) Touch(_ *Set, _ *Block) {}

// Insert does nothing.
func (f *LRUVictimFinder) Insert(_ *Set, _ *Block) {}

// FindVictim returns the least recently accessed block.
func (f *LRUVictimFinder) FindVictim(
	set *Set,
	eligible func(*Block) bool,
) (*Block, bool) {
	return pickMin(set, eligible, func(a, b *Block) bool {
		return a.LastAccess < b.LastAccess
	})
}
