package ftl

import "math/bits"

// BlockState is the lifecycle stage of a flash block.
type BlockState int

// Block lifecycle: free blocks are opened for writing, become full when
// their last page is programmed, and return to free when erased.
const (
	BlockFree BlockState = iota
	BlockOpen
	BlockFull
)

func (s BlockState) String() string {
	switch s {
	case BlockFree:
		return "free"
	case BlockOpen:
		return "open"
	case BlockFull:
		return "full"
	default:
		return "unknown"
	}
}

// A Block is the erase unit of the flash array.
type Block struct {
	ID         int
	State      BlockState
	EraseCount int
	ValidPages int
	WritePtr   int

	// OpenSeq orders blocks by the time they were opened.
	OpenSeq uint64

	valid bitmap
	p2l   []uint64
}

// IsValid tells if the page holds live data.
func (b *Block) IsValid(page int) bool {
	return b.valid != nil && b.valid.test(page)
}

// InvalidPages returns the number of programmed pages that hold stale data.
func (b *Block) InvalidPages() int {
	return b.WritePtr - b.ValidPages
}

func (b *Block) open(pagesPerBlock int, seq uint64) {
	b.State = BlockOpen
	b.OpenSeq = seq
	b.WritePtr = 0
	b.ValidPages = 0
	b.valid = newBitmap(pagesPerBlock)
	b.p2l = make([]uint64, pagesPerBlock)
}

func (b *Block) erase() {
	b.State = BlockFree
	b.EraseCount++
	b.WritePtr = 0
	b.ValidPages = 0
	b.valid = nil
	b.p2l = nil
}

// bitmap is a fixed-size bit set with one bit per page.
type bitmap []uint64

func newBitmap(n int) bitmap {
	return make(bitmap, (n+63)/64)
}

func (m bitmap) set(i int) {
	m[i/64] |= 1 << uint(i%64)
}

func (m bitmap) clear(i int) {
	m[i/64] &^= 1 << uint(i%64)
}

func (m bitmap) test(i int) bool {
	return m[i/64]&(1<<uint(i%64)) != 0
}

func (m bitmap) count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}

	return n
}
