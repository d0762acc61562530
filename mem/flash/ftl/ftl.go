// Package ftl implements a page-mapped flash translation layer with garbage
// collection and wear-aware block allocation.
package ftl

import (
	"errors"
	"math/rand"

	"github.com/babyworm/MQSim-CXL/mem/flash"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// ErrNoFreePage is returned when a write finds no free page in its plane
// even after garbage collection.
var ErrNoFreePage = errors.New("no free flash page")

// Stats are the counters kept by the FTL.
type Stats struct {
	HostReads     uint64
	UnmappedReads uint64
	HostPrograms  uint64
	GCReads       uint64
	GCPrograms    uint64
	Erases        uint64
	GCExecutions  uint64
	GCRelocations uint64
	GCTimeNS      uint64
	GCStalls      uint64
}

// WriteAmplification returns flash programs per host program.
func (s Stats) WriteAmplification() float64 {
	if s.HostPrograms == 0 {
		return 0
	}

	return float64(s.HostPrograms+s.GCPrograms) / float64(s.HostPrograms)
}

type plane struct {
	index      int
	addr       flash.PhysicalAddress
	firstBlock int
	active     int
	free       int
}

// FTL maps logical pages to physical pages. Every write goes to a free page
// of the plane the logical page is striped to. The previous copy is marked
// invalid.
type FTL struct {
	geometry flash.Geometry
	model    *flash.TimingModel

	gcPolicy          GCPolicy
	gcThresholdBlocks int
	rng               *rand.Rand

	logicalPages uint64
	blocks       []Block
	planes       []plane
	l2p          map[uint64]uint64
	pages        map[uint64][]byte
	openSeq      uint64

	stats Stats
}

// Geometry returns the flash organization.
func (f *FTL) Geometry() flash.Geometry {
	return f.geometry
}

// TimingModel returns the timing model the FTL charges operations to.
func (f *FTL) TimingModel() *flash.TimingModel {
	return f.model
}

// LogicalPages returns the number of logical pages exposed to the host.
func (f *FTL) LogicalPages() uint64 {
	return f.logicalPages
}

// LogicalCapacity returns the host-visible capacity in bytes.
func (f *FTL) LogicalCapacity() uint64 {
	return f.logicalPages * uint64(f.geometry.PageSize)
}

// Stats returns a copy of the counters.
func (f *FTL) Stats() Stats {
	return f.stats
}

// ResetStats zeroes the counters without touching the mapping, the block
// states or the erase counts.
func (f *FTL) ResetStats() {
	f.stats = Stats{}
}

func (f *FTL) ppnAddress(ppn uint64) flash.PhysicalAddress {
	ppb := uint64(f.geometry.PagesPerBlock)
	blockID := int(ppn / ppb)

	a := f.geometry.PlaneAddress(blockID / f.geometry.BlocksPerPlane)
	a.Block = blockID % f.geometry.BlocksPerPlane
	a.Page = int(ppn % ppb)

	return a
}

func (f *FTL) blockAddress(b *Block) flash.PhysicalAddress {
	a := f.geometry.PlaneAddress(b.ID / f.geometry.BlocksPerPlane)
	a.Block = b.ID % f.geometry.BlocksPerPlane

	return a
}

func (f *FTL) planeOf(lpn uint64) *plane {
	return &f.planes[f.geometry.StripePlane(lpn)]
}

// Translate returns the physical page that holds a logical page.
func (f *FTL) Translate(lpn uint64) (flash.PhysicalAddress, bool) {
	ppn, found := f.l2p[lpn]
	if !found {
		return flash.PhysicalAddress{}, false
	}

	return f.ppnAddress(ppn), true
}

// Read senses the page that holds lpn. A page that has never been written is
// charged a read on the plane it is striped to. It returns the time the data
// is out of the array.
func (f *FTL) Read(now timing.VTime, lpn uint64) timing.VTime {
	f.stats.HostReads++

	a, found := f.Translate(lpn)
	if !found {
		f.stats.UnmappedReads++
		a = f.planeOf(lpn).addr
	}

	return f.model.Read(a, now)
}

// ReadData returns a copy of size bytes at offset within the logical page.
// Unwritten bytes read as zeros.
func (f *FTL) ReadData(lpn uint64, offset, size int) []byte {
	out := make([]byte, size)
	if page, found := f.pages[lpn]; found {
		copy(out, page[offset:])
	}

	return out
}

// HasData tells if the logical page has ever been written with content.
func (f *FTL) HasData(lpn uint64) bool {
	_, found := f.pages[lpn]
	return found
}

// Program writes data at offset within the logical page. The whole page is
// programmed out of place. It returns the time the program finishes. If the
// plane has no free page even after a foreground collection, the write is
// not performed and ErrNoFreePage is returned.
func (f *FTL) Program(
	now timing.VTime,
	lpn uint64,
	offset int,
	data []byte,
) (timing.VTime, error) {
	pl := f.planeOf(lpn)

	ppn, ok := f.allocatePage(pl)
	if !ok {
		f.stats.GCStalls++
		now = f.collect(pl, now)

		ppn, ok = f.allocatePage(pl)
		if !ok {
			return now, ErrNoFreePage
		}
	}

	f.store(lpn, offset, data)
	f.remap(lpn, ppn)

	f.stats.HostPrograms++
	done := f.model.Program(f.ppnAddress(ppn), now)

	if pl.free < f.gcThresholdBlocks {
		f.collect(pl, now)
	}

	return done, nil
}

func (f *FTL) store(lpn uint64, offset int, data []byte) {
	if len(data) == 0 {
		return
	}

	page, found := f.pages[lpn]
	if !found {
		page = make([]byte, f.geometry.PageSize)
		f.pages[lpn] = page
	}

	copy(page[offset:], data)
}

func (f *FTL) remap(lpn, ppn uint64) {
	if old, found := f.l2p[lpn]; found {
		f.invalidate(old)
	}

	f.l2p[lpn] = ppn

	ppb := uint64(f.geometry.PagesPerBlock)
	b := &f.blocks[ppn/ppb]
	b.p2l[ppn%ppb] = lpn
	b.valid.set(int(ppn % ppb))
	b.ValidPages++
}

func (f *FTL) invalidate(ppn uint64) {
	ppb := uint64(f.geometry.PagesPerBlock)
	b := &f.blocks[ppn/ppb]
	b.valid.clear(int(ppn % ppb))
	b.ValidPages--
}

// allocatePage takes the next page of the plane's active block, opening the
// least-erased free block when needed.
func (f *FTL) allocatePage(pl *plane) (uint64, bool) {
	if pl.active < 0 {
		b := f.leastWornFree(pl)
		if b == nil {
			return 0, false
		}

		f.openSeq++
		b.open(f.geometry.PagesPerBlock, f.openSeq)
		pl.active = b.ID
		pl.free--
	}

	b := &f.blocks[pl.active]
	ppn := uint64(b.ID)*uint64(f.geometry.PagesPerBlock) + uint64(b.WritePtr)

	b.WritePtr++
	if b.WritePtr == f.geometry.PagesPerBlock {
		b.State = BlockFull
		pl.active = -1
	}

	return ppn, true
}

func (f *FTL) leastWornFree(pl *plane) *Block {
	var best *Block

	for i := 0; i < f.geometry.BlocksPerPlane; i++ {
		b := &f.blocks[pl.firstBlock+i]
		if b.State != BlockFree {
			continue
		}

		if best == nil || b.EraseCount < best.EraseCount {
			best = b
		}
	}

	return best
}

func (f *FTL) availablePages(pl *plane) int {
	n := pl.free * f.geometry.PagesPerBlock
	if pl.active >= 0 {
		n += f.geometry.PagesPerBlock - f.blocks[pl.active].WritePtr
	}

	return n
}

// Block returns the block with the given global ID.
func (f *FTL) Block(id int) *Block {
	return &f.blocks[id]
}

// NumBlocks returns the number of blocks managed by the FTL.
func (f *FTL) NumBlocks() int {
	return len(f.blocks)
}

// FreeBlocks returns the number of free blocks in a plane.
func (f *FTL) FreeBlocks(planeIndex int) int {
	return f.planes[planeIndex].free
}

// EraseCountRange returns the smallest and the largest erase count of all
// blocks.
func (f *FTL) EraseCountRange() (lo, hi int) {
	for i := range f.blocks {
		c := f.blocks[i].EraseCount
		if i == 0 || c < lo {
			lo = c
		}

		if c > hi {
			hi = c
		}
	}

	return lo, hi
}
