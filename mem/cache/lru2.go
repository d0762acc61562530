package cache

// LRU2VictimFinder implements a segmented LRU. Lines enter a probationary
// segment and move to the protected segment on their second access. The
// protected segment holds at most half of the ways; overflowing lines are
// demoted back to probation.
type LRU2VictimFinder struct{}

// NewLRU2VictimFinder creates an LRU2VictimFinder.
func NewLRU2VictimFinder() *LRU2VictimFinder {
	return &LRU2VictimFinder{}
}

// Name returns LRU2.
func (f *LRU2VictimFinder) Name() string { return string(PolicyLRU2) }

// Insert puts the block into the probationary segment.
func (f *LRU2VictimFinder) Insert(_ *Set, block *Block) {
	block.Protected = false
}

// Touch promotes the block into the protected segment.
func (f *LRU2VictimFinder) Touch(set *Set, block *Block) {
	if block.Protected {
		return
	}

	block.Protected = true

	limit := len(set.Blocks) / 2
	if limit == 0 {
		limit = 1
	}

	protected := 0

	var oldest *Block

	for _, b := range set.Blocks {
		if !b.IsValid || !b.Protected {
			continue
		}

		protected++

		if b != block && (oldest == nil || b.LastAccess < oldest.LastAccess) {
			oldest = b
		}
	}

	if protected > limit && oldest != nil {
		oldest.Protected = false
	}
}

// FindVictim returns the LRU probationary block, falling back to the LRU
// protected block.
func (f *LRU2VictimFinder) FindVictim(
	set *Set,
	eligible func(*Block) bool,
) (*Block, bool) {
	victim, found := pickMin(set,
		func(b *Block) bool { return eligible(b) && !b.Protected },
		func(a, b *Block) bool { return a.LastAccess < b.LastAccess })
	if found {
		return victim, true
	}

	return pickMin(set, eligible, func(a, b *Block) bool {
		return a.LastAccess < b.LastAccess
	})
}
