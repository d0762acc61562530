// Package cache models the device-side DRAM cache that fronts the flash
// backend.
//
// The cache is set-associative. A line address (byte address divided by the
// line size) maps to exactly one set. A way that is waiting for its fill data
// is locked and is never chosen as a victim.
package cache

import (
	"fmt"
	"log"
)

// FillKind tells whether a line is brought in by a demand access or by the
// prefetcher.
type FillKind int

// Kinds of fills.
const (
	DemandFill FillKind = iota
	PrefetchFill
)

// A Block of a cache is the information that is associated with a cache line.
type Block struct {
	Tag          uint64
	SetID        int
	WayID        int
	IsValid      bool
	IsDirty      bool
	IsLocked     bool
	IsPrefetched bool
	Data         []byte

	pendingFills int

	// Replacement metadata. Each victim finder uses the subset it needs.
	LastAccess  uint64
	InsertOrder uint64
	AccessCount uint64
	CRF         float64
	Referenced  bool
	Protected   bool
}

// A Set is a list of blocks where a certain piece memory can be stored at.
type Set struct {
	Blocks []*Block

	// Clock is the logical access counter of the set.
	Clock uint64

	// Hand is the clock hand used by clock-based victim finders.
	Hand int
}

func (s *Set) tick() uint64 {
	s.Clock++
	return s.Clock
}

// An Eviction describes a line that has been removed from the cache.
type Eviction struct {
	Tag uint64

	// Dirty lines must be written back before their way is reused. Data is a
	// copy of the line content at the time of eviction.
	Dirty bool
	Data  []byte

	// UnusedPrefetch is true if the line was brought in by the prefetcher and
	// never touched by a demand access.
	UnusedPrefetch bool
}

// A Directory stores the information about what is stored in the cache.
type Directory struct {
	NumSets  int
	NumWays  int
	LineSize int

	// MixMode lets prefetched and demand lines share every way. When it is
	// off, the last quarter of the ways of each set is reserved for prefetched
	// lines.
	MixMode bool

	Sets []Set

	victimFinder  VictimFinder
	prefetchWays  int
	nextInsertion uint64
}

// NewDirectory returns a new directory object.
func NewDirectory(
	numSets, numWays, lineSize int,
	victimFinder VictimFinder,
) *Directory {
	if numSets <= 0 || numWays <= 0 || lineSize <= 0 {
		panic(fmt.Sprintf("invalid cache shape: %d sets, %d ways, %d B lines",
			numSets, numWays, lineSize))
	}

	d := &Directory{
		NumSets:      numSets,
		NumWays:      numWays,
		LineSize:     lineSize,
		MixMode:      true,
		victimFinder: victimFinder,
	}

	d.prefetchWays = numWays / 4
	if d.prefetchWays == 0 {
		d.prefetchWays = 1
	}

	d.Reset()

	return d
}

// TotalSize returns the maximum number of bytes can be stored in the cache.
func (d *Directory) TotalSize() uint64 {
	return uint64(d.NumSets) * uint64(d.NumWays) * uint64(d.LineSize)
}

// VictimFinder returns the replacement policy in use.
func (d *Directory) VictimFinder() VictimFinder {
	return d.victimFinder
}

// LineAddr returns the tag of the line that holds addr.
func (d *Directory) LineAddr(addr uint64) uint64 {
	return addr / uint64(d.LineSize)
}

// SetIndex returns the set that a line maps to.
func (d *Directory) SetIndex(tag uint64) int {
	return int(tag % uint64(d.NumSets))
}

// GetSet returns the set that a certain address should store at.
func (d *Directory) GetSet(addr uint64) (set *Set, setID int) {
	setID = d.SetIndex(d.LineAddr(addr))
	set = &d.Sets[setID]

	return set, setID
}

// Lookup finds the valid block that holds addr.
func (d *Directory) Lookup(addr uint64) (*Block, bool) {
	tag := d.LineAddr(addr)
	set, _ := d.GetSet(addr)

	for _, block := range set.Blocks {
		if block.IsValid && block.Tag == tag {
			return block, true
		}
	}

	return nil, false
}

// FindReserved returns the locked block that is waiting for the fill of addr.
func (d *Directory) FindReserved(addr uint64) (*Block, bool) {
	tag := d.LineAddr(addr)
	set, _ := d.GetSet(addr)

	for _, block := range set.Blocks {
		if block.IsLocked && block.Tag == tag {
			return block, true
		}
	}

	return nil, false
}

// Visit records a demand access to the block.
func (d *Directory) Visit(block *Block) {
	set := &d.Sets[block.SetID]
	now := set.tick()
	d.victimFinder.Touch(set, block)
	block.LastAccess = now
	block.AccessCount++
}

// FindVictim returns the way a new line of the given kind should go to. An
// empty way is always preferred. Locked ways are never returned.
func (d *Directory) FindVictim(addr uint64, kind FillKind) (*Block, bool) {
	set, _ := d.GetSet(addr)

	eligible := func(b *Block) bool {
		return !b.IsLocked && d.inPartition(b, kind)
	}

	for _, block := range set.Blocks {
		if !block.IsValid && eligible(block) {
			return block, true
		}
	}

	return d.victimFinder.FindVictim(set, func(b *Block) bool {
		return b.IsValid && eligible(b)
	})
}

func (d *Directory) inPartition(b *Block, kind FillKind) bool {
	if d.MixMode || d.NumWays < 2 {
		return true
	}

	firstPrefetchWay := d.NumWays - d.prefetchWays
	if kind == PrefetchFill {
		return b.WayID >= firstPrefetchWay
	}

	return b.WayID < firstPrefetchWay
}

// Evict removes the content of the block. Evicting a locked block is a
// programming error.
func (d *Directory) Evict(block *Block) (Eviction, bool) {
	if block.IsLocked {
		log.Panicf("evicting line 0x%x that is waiting for its fill", block.Tag)
	}

	if !block.IsValid {
		return Eviction{}, false
	}

	e := Eviction{
		Tag:            block.Tag,
		Dirty:          block.IsDirty,
		UnusedPrefetch: block.IsPrefetched,
	}
	if block.IsDirty {
		e.Data = d.copyLine(block.Data)
	}

	d.clear(block)

	return e, true
}

// Reserve locks the block for the fill of addr. The caller must have evicted
// the previous content.
func (d *Directory) Reserve(block *Block, addr uint64, kind FillKind) {
	if block.IsValid || block.IsLocked {
		log.Panicf("reserving way %d of set %d that is still in use",
			block.WayID, block.SetID)
	}

	block.Tag = d.LineAddr(addr)
	block.IsLocked = true
	block.IsPrefetched = kind == PrefetchFill
	block.pendingFills = 1
}

// AddPendingFill records one more outstanding fill for a reserved block.
func (d *Directory) AddPendingFill(block *Block) {
	if !block.IsLocked {
		log.Panicf("adding a fill to line 0x%x that is not reserved", block.Tag)
	}

	block.pendingFills++
}

// Refill locks a valid block for one more read of its line. The content of
// the block is kept when that read arrives.
func (d *Directory) Refill(block *Block) {
	if !block.IsValid || block.IsLocked {
		log.Panicf("refilling line 0x%x that is not idle", block.Tag)
	}

	block.IsLocked = true
	block.pendingFills = 1
}

// CompleteFill delivers fill data to a reserved block. The data is only
// installed if the block does not hold newer content already. The block is
// unlocked when its last pending fill arrives.
func (d *Directory) CompleteFill(block *Block, data []byte) {
	if !block.IsLocked {
		log.Panicf("completing a fill for line 0x%x that is not reserved",
			block.Tag)
	}

	if !block.IsValid {
		block.IsValid = true
		block.Data = d.copyLine(data)
		d.insert(block)
	}

	block.pendingFills--
	if block.pendingFills == 0 {
		block.IsLocked = false
	}
}

// Install places a line into a free block right away, without a fill.
func (d *Directory) Install(
	block *Block,
	addr uint64,
	data []byte,
	dirty bool,
	kind FillKind,
) {
	if block.IsValid || block.IsLocked {
		log.Panicf("installing into way %d of set %d that is still in use",
			block.WayID, block.SetID)
	}

	block.Tag = d.LineAddr(addr)
	block.IsValid = true
	block.IsDirty = dirty
	block.IsPrefetched = kind == PrefetchFill
	block.Data = d.copyLine(data)
	d.insert(block)
}

func (d *Directory) insert(block *Block) {
	set := &d.Sets[block.SetID]
	block.LastAccess = set.tick()
	block.InsertOrder = d.nextInsertion
	d.nextInsertion++
	block.AccessCount = 1
	d.victimFinder.Insert(set, block)
}

// Invalidate removes the line that holds addr, if any.
func (d *Directory) Invalidate(addr uint64) (Eviction, bool) {
	block, found := d.Lookup(addr)
	if !found || block.IsLocked {
		return Eviction{}, false
	}

	return d.Evict(block)
}

// ReadData returns a copy of size bytes starting at offset within the line.
func (d *Directory) ReadData(block *Block, offset, size int) []byte {
	out := make([]byte, size)
	if block.Data != nil {
		copy(out, block.Data[offset:])
	}

	return out
}

// WriteData stores payload at offset within the line and marks it dirty.
func (d *Directory) WriteData(block *Block, offset int, payload []byte) {
	if block.Data == nil {
		block.Data = make([]byte, d.LineSize)
	}

	copy(block.Data[offset:], payload)
	block.IsDirty = true
}

// NumValid returns the number of valid lines in the cache.
func (d *Directory) NumValid() int {
	n := 0

	for i := range d.Sets {
		for _, b := range d.Sets[i].Blocks {
			if b.IsValid {
				n++
			}
		}
	}

	return n
}

// Reset will mark all the blocks in the directory invalid.
func (d *Directory) Reset() {
	d.Sets = make([]Set, d.NumSets)
	for i := 0; i < d.NumSets; i++ {
		d.Sets[i].Blocks = make([]*Block, d.NumWays)
		for j := 0; j < d.NumWays; j++ {
			d.Sets[i].Blocks[j] = &Block{SetID: i, WayID: j}
		}
	}
}

func (d *Directory) clear(block *Block) {
	setID, wayID := block.SetID, block.WayID
	*block = Block{SetID: setID, WayID: wayID}
}

func (d *Directory) copyLine(data []byte) []byte {
	if data == nil {
		return nil
	}

	line := make([]byte, d.LineSize)
	copy(line, data)

	return line
}
