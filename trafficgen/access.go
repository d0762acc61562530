package trafficgen

import (
	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/mem/mshr"
	"github.com/babyworm/MQSim-CXL/mem/prefetch"
	"github.com/babyworm/MQSim-CXL/sim/hooking"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// accessLine serves one line of a request. The prefetcher sees every
// access once, when it is served or when it first finds the MSHR full.
//
// Without an MSHR a demand miss blocks the cache. Accesses that arrive while
// it is outstanding wait in arrival order. Their tag check is made on
// arrival, so a line that was absent then is read from the flash again.
//
// A line that is valid but still locked only exists without an MSHR, while a
// second fill of the same line is outstanding. It does not serve hits, so
// that accesses to the line are applied in fill order.
func (g *TrafficGenerator) accessLine(a *lineAccess, now timing.VTime) {
	if g.mshr == nil && g.missPending {
		a.missed = g.absent(a.addr)
		g.blocked = append(g.blocked, a)

		return
	}

	prefetchHit := false

	block, found := g.dir.Lookup(a.addr)
	if found && !block.IsLocked && !a.missed {
		prefetchHit = g.useLine(block)
		g.dir.Visit(block)
		g.serveFromBlock(block, a)
		a.hit = true

		g.schedule(now+g.hitLatency, func(t timing.VTime) {
			g.lineDone(a, t)
		})
	} else if e, found := g.inFlight(a.lineAddr); found {
		prefetchHit = g.merge(e, a)
	} else if a.isWrite() && !g.reservedWithoutMSHR(a.addr) {
		g.writeAllocate(a, now)
	} else {
		g.issueDemandFill(a, now)
	}

	if !a.trained {
		a.trained = true
		g.train(a, prefetchHit, now)
	}
}

// absent tells if addr would miss right now. A line that is being
// prefetched counts as present.
func (g *TrafficGenerator) absent(addr uint64) bool {
	if block, found := g.dir.Lookup(addr); found && !block.IsLocked {
		return false
	}

	if block, found := g.dir.FindReserved(addr); found && block.IsPrefetched {
		return false
	}

	return true
}

// useLine clears the prefetch mark of a line on its first demand use.
func (g *TrafficGenerator) useLine(block *cache.Block) bool {
	if !block.IsPrefetched {
		return false
	}

	block.IsPrefetched = false
	g.stats.PrefetchHits++
	g.prefetcher.PrefetchUsed(block.Tag, false)

	return true
}

func (g *TrafficGenerator) inFlight(lineAddr uint64) (*mshr.Entry, bool) {
	if g.mshr == nil {
		return nil, false
	}

	return g.mshr.Query(lineAddr)
}

func (g *TrafficGenerator) reservedWithoutMSHR(addr uint64) bool {
	if g.mshr != nil {
		return false
	}

	_, found := g.dir.FindReserved(addr)

	return found
}

// merge attaches the access to an in-flight fill. The first demand access
// that lands on a prefetch turns it into a late prefetch hit.
func (g *TrafficGenerator) merge(e *mshr.Entry, a *lineAccess) bool {
	a.hit = true
	g.stats.MSHRHits++

	prefetchHit := false
	if e.IsPrefetch && len(e.Requests) == 0 {
		prefetchHit = true
		g.stats.PrefetchHits++
		g.stats.PrefetchLate++
		g.prefetcher.PrefetchUsed(e.LineAddr, true)

		if e.Block != nil {
			e.Block.IsPrefetched = false
		}
	}

	g.mshr.AddRequest(e.LineAddr, a)

	return prefetchHit
}

// writeAllocate installs the line of a write miss without waiting for the
// flash. The bytes the write does not cover come from the functional flash
// content. A write that missed on arrival may find its line installed by
// the time it is served.
func (g *TrafficGenerator) writeAllocate(a *lineAccess, now timing.VTime) {
	g.stats.DemandMisses++

	block, found := g.dir.Lookup(a.addr)
	if !found {
		block, found = g.dir.FindVictim(a.addr, cache.DemandFill)
		if !found {
			g.bypassWrite(a, now)
			return
		}

		g.evict(block, now, false)
		g.dir.Install(block, a.addr, g.flashLine(a.lineAddr), false,
			cache.DemandFill)
	}

	g.serveFromBlock(block, a)

	g.schedule(now+g.hitLatency, func(t timing.VTime) {
		g.lineDone(a, t)
	})
}

// bypassWrite sends a write straight to the flash when every way of its set
// is waiting for a fill.
func (g *TrafficGenerator) bypassWrite(a *lineAccess, now timing.VTime) {
	g.stats.CacheBypasses++

	payload := a.payload()
	for _, s := range g.spans(a.addr, a.size) {
		var data []byte
		if s.lineOffset < len(payload) {
			data = payload[s.lineOffset:min(len(payload), s.lineOffset+s.size)]
		}

		g.program(now, s.lpn, s.pageOffset, data)
	}

	g.schedule(now+g.hitLatency, func(t timing.VTime) {
		g.lineDone(a, t)
	})
}

func (g *TrafficGenerator) issueDemandFill(a *lineAccess, now timing.VTime) {
	if g.mshr != nil && g.mshr.IsFull() {
		g.stats.MSHRStalls++
		g.blocked = append(g.blocked, a)

		return
	}

	g.stats.DemandMisses++

	block := g.reserveWay(a, now)
	e := g.startFill(a.lineAddr, block, false, now)
	e.Requests = append(e.Requests, a)

	if g.mshr == nil {
		g.missPending = true
	}
}

// reserveWay picks the way a demand fill lands in. Without an MSHR, a miss
// to a line that is already being filled shares the reserved way but still
// reads the flash on its own, and so does a miss to a line that was
// installed while the access waited. It returns nil if every way is locked.
func (g *TrafficGenerator) reserveWay(
	a *lineAccess,
	now timing.VTime,
) *cache.Block {
	if g.mshr == nil {
		if block, found := g.dir.FindReserved(a.addr); found {
			g.dir.AddPendingFill(block)

			if block.IsPrefetched {
				block.IsPrefetched = false
				g.stats.PrefetchLate++
				g.prefetcher.PrefetchUsed(block.Tag, true)
			}

			return block
		}

		if block, found := g.dir.Lookup(a.addr); found {
			g.dir.Refill(block)
			return block
		}
	}

	block, found := g.dir.FindVictim(a.addr, cache.DemandFill)
	if !found {
		return nil
	}

	g.evict(block, now, false)
	g.dir.Reserve(block, a.addr, cache.DemandFill)

	return block
}

func (g *TrafficGenerator) train(
	a *lineAccess,
	prefetchHit bool,
	now timing.VTime,
) {
	lines := g.prefetcher.OnAccess(prefetch.Access{
		LineAddr:    a.lineAddr,
		Hit:         a.hit,
		PrefetchHit: prefetchHit,
	})

	for _, line := range lines {
		g.issuePrefetch(line, now)
	}
}

// issuePrefetch starts a speculative fill. Lines outside the device, lines
// already cached and lines already in flight are skipped. A prefetch that
// finds no MSHR entry or no way is dropped.
func (g *TrafficGenerator) issuePrefetch(line uint64, now timing.VTime) {
	ls := uint64(g.config.CacheLineSize)
	if line >= g.capacity/ls {
		return
	}

	addr := line * ls
	if _, found := g.dir.Lookup(addr); found {
		return
	}

	if _, found := g.dir.FindReserved(addr); found {
		return
	}

	if _, found := g.inFlight(line); found {
		return
	}

	if g.mshr != nil && g.mshr.IsFull() {
		g.stats.PrefetchDropped++
		return
	}

	block, found := g.dir.FindVictim(addr, cache.PrefetchFill)
	if !found {
		g.stats.PrefetchDropped++
		return
	}

	g.evict(block, now, true)
	g.dir.Reserve(block, addr, cache.PrefetchFill)
	g.startFill(line, block, true, now)

	g.stats.PrefetchIssued++
}

// evict removes the content of a way. Dirty content is written back to the
// flash in the background.
func (g *TrafficGenerator) evict(
	block *cache.Block,
	now timing.VTime,
	byPrefetch bool,
) {
	ev, evicted := g.dir.Evict(block)
	if !evicted {
		return
	}

	g.stats.CacheEvictions++
	if ev.UnusedPrefetch {
		g.stats.PrefetchPollution++
	}

	g.prefetcher.LineEvicted(ev.Tag, byPrefetch)

	if ev.Dirty {
		g.stats.DirtyEvictions++
		g.writeBack(ev.Tag, ev.Data, now)
	}

	g.InvokeHook(hooking.HookCtx{
		Domain: g,
		Pos:    HookPosEviction,
		Item:   ev,
	})
}

func (g *TrafficGenerator) serveFromBlock(block *cache.Block, a *lineAccess) {
	if a.isWrite() {
		g.dir.WriteData(block, a.lineOffset, a.payload())
		return
	}

	copy(a.req.Data[a.reqOffset:],
		g.dir.ReadData(block, a.lineOffset, a.size))
}
