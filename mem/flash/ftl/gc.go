package ftl

import (
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// GCPolicy selects the block that garbage collection reclaims.
type GCPolicy string

// Supported garbage collection policies.
const (
	// GCGreedy reclaims the block with the most invalid pages.
	GCGreedy GCPolicy = "GREEDY"

	// GCRGA applies the greedy rule to a small random sample of blocks.
	GCRGA GCPolicy = "RGA"

	// GCRandom reclaims a random block that has invalid pages.
	GCRandom GCPolicy = "RANDOM"

	// GCFIFO reclaims the block that was opened first.
	GCFIFO GCPolicy = "FIFO"
)

// rgaSampleSize is the number of candidates RGA draws.
const rgaSampleSize = 8

// Valid tells if the policy is known.
func (p GCPolicy) Valid() bool {
	switch p {
	case GCGreedy, GCRGA, GCRandom, GCFIFO:
		return true
	}

	return false
}

// collect reclaims blocks of the plane until its free block count is back at
// the threshold or nothing more can be reclaimed. Relocations and erases
// occupy the die starting at now. It returns the time the last operation
// finishes.
func (f *FTL) collect(pl *plane, now timing.VTime) timing.VTime {
	end := now

	needsSpace := func() bool {
		return pl.free < f.gcThresholdBlocks || f.availablePages(pl) == 0
	}

	for round := 0; round < f.geometry.BlocksPerPlane && needsSpace(); round++ {
		victim := f.selectVictim(pl)
		if victim == nil || victim.ValidPages > f.availablePages(pl) {
			break
		}

		end = maxTime(end, f.reclaim(pl, victim, now))

		if victim.State != BlockFree {
			break
		}
	}

	return end
}

func (f *FTL) reclaim(pl *plane, victim *Block, now timing.VTime) timing.VTime {
	relocated := now
	ppb := f.geometry.PagesPerBlock
	base := uint64(victim.ID) * uint64(ppb)

	for page := 0; page < victim.WritePtr; page++ {
		if !victim.IsValid(page) {
			continue
		}

		lpn := victim.p2l[page]

		dst, ok := f.allocatePage(pl)
		if !ok {
			break
		}

		readDone := f.model.Read(f.ppnAddress(base+uint64(page)), now)
		f.remap(lpn, dst)
		programDone := f.model.Program(f.ppnAddress(dst), readDone)

		f.stats.GCReads++
		f.stats.GCPrograms++
		f.stats.GCRelocations++

		relocated = maxTime(relocated, programDone)
	}

	if victim.ValidPages > 0 {
		return relocated
	}

	done := f.model.Erase(f.blockAddress(victim), relocated)
	victim.erase()
	pl.free++

	f.stats.Erases++
	f.stats.GCExecutions++
	f.stats.GCTimeNS += done - now

	return done
}

func (f *FTL) candidates(pl *plane) []*Block {
	var out []*Block

	for i := 0; i < f.geometry.BlocksPerPlane; i++ {
		b := &f.blocks[pl.firstBlock+i]
		if b.State == BlockFull && b.InvalidPages() > 0 {
			out = append(out, b)
		}
	}

	return out
}

// betterGreedy prefers more invalid pages, then fewer erases.
func betterGreedy(a, b *Block) bool {
	if a.InvalidPages() != b.InvalidPages() {
		return a.InvalidPages() > b.InvalidPages()
	}

	return a.EraseCount < b.EraseCount
}

func (f *FTL) selectVictim(pl *plane) *Block {
	cands := f.candidates(pl)
	if len(cands) == 0 {
		return nil
	}

	switch f.gcPolicy {
	case GCRGA:
		return f.selectRGA(cands)
	case GCRandom:
		return cands[f.rng.Intn(len(cands))]
	case GCFIFO:
		oldest := cands[0]
		for _, b := range cands[1:] {
			if b.OpenSeq < oldest.OpenSeq {
				oldest = b
			}
		}

		return oldest
	default:
		best := cands[0]
		for _, b := range cands[1:] {
			if betterGreedy(b, best) {
				best = b
			}
		}

		return best
	}
}

func (f *FTL) selectRGA(cands []*Block) *Block {
	var best *Block

	for i := 0; i < rgaSampleSize; i++ {
		b := cands[f.rng.Intn(len(cands))]
		if best == nil || betterGreedy(b, best) {
			best = b
		}
	}

	return best
}

func maxTime(a, b timing.VTime) timing.VTime {
	if a > b {
		return a
	}

	return b
}
