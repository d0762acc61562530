package cache

// CFLRUVictimFinder is a clean-first replacement policy built on the clock
// algorithm. The hand sweeps the ways in order and gives referenced blocks a
// second chance. Within the first window of the sweep only clean blocks are
// evicted, so dirty lines that would cost a flash program stay longer.
type CFLRUVictimFinder struct {
	// WindowRatio is the share of the ways that forms the clean-first window.
	WindowRatio float64
}

// NewCFLRUVictimFinder creates a CFLRUVictimFinder with a window of half the
// ways.
func NewCFLRUVictimFinder() *CFLRUVictimFinder {
	return &CFLRUVictimFinder{WindowRatio: 0.5}
}

// Name returns CFLRU.
func (f *CFLRUVictimFinder) Name() string { return string(PolicyCFLRU) }

// Insert clears the reference bit.
func (f *CFLRUVictimFinder) Insert(_ *Set, block *Block) {
	block.Referenced = false
}

// Touch sets the reference bit.
func (f *CFLRUVictimFinder) Touch(_ *Set, block *Block) {
	block.Referenced = true
}

func (f *CFLRUVictimFinder) window(ways int) int {
	w := int(float64(ways) * f.WindowRatio)
	if w < 1 {
		w = 1
	}

	return w
}

// FindVictim sweeps at most two rounds of the clock. The first unreferenced
// clean block wins. An unreferenced dirty block is only taken once the sweep
// has left the clean-first window without finding a clean one.
func (f *CFLRUVictimFinder) FindVictim(
	set *Set,
	eligible func(*Block) bool,
) (*Block, bool) {
	n := len(set.Blocks)
	window := f.window(n)

	var dirty *Block

	for step := 0; step < 2*n; step++ {
		b := set.Blocks[(set.Hand+step)%n]
		if !eligible(b) {
			continue
		}

		if b.Referenced {
			b.Referenced = false
			continue
		}

		if !b.IsDirty {
			return f.take(set, b), true
		}

		if dirty == nil {
			dirty = b
		}

		if step >= window {
			return f.take(set, dirty), true
		}
	}

	if dirty != nil {
		return f.take(set, dirty), true
	}

	return nil, false
}

func (f *CFLRUVictimFinder) take(set *Set, b *Block) *Block {
	set.Hand = (b.WayID + 1) % len(set.Blocks)
	return b
}
