package trafficgen

import (
	"log"

	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/mem/mshr"
	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/tracing"
)

// startFill reads a line from the flash into the given way. Block may be nil
// if no way could be reserved. Without an MSHR the entry is private to the
// fill and is never merged onto.
func (g *TrafficGenerator) startFill(
	lineAddr uint64,
	block *cache.Block,
	isPrefetch bool,
	now timing.VTime,
) *mshr.Entry {
	var e *mshr.Entry

	if g.mshr != nil {
		var err error

		e, err = g.mshr.Add(lineAddr)
		if err != nil {
			log.Panic(err)
		}
	} else {
		e = &mshr.Entry{LineAddr: lineAddr}
	}

	e.Block = block
	e.IsPrefetch = isPrefetch
	e.IssueTime = now
	e.ReadyTime = g.readLine(now, lineAddr)
	e.TaskID = g.taskIDs.Generate()

	what := "demand"
	if isPrefetch {
		what = "prefetch"
	}

	tracing.StartTask(e.TaskID, "", g, "fill", what, e)

	g.schedule(e.ReadyTime, func(t timing.VTime) {
		g.completeFill(e, t)
	})

	return e
}

// completeFill installs the fill data and releases every access waiting on
// it at the same time.
func (g *TrafficGenerator) completeFill(e *mshr.Entry, now timing.VTime) {
	if g.mshr != nil {
		g.mshr.Complete(e.LineAddr)
	}

	tracing.EndTask(e.TaskID, g)

	data := g.flashLine(e.LineAddr)

	block := e.Block
	if block != nil {
		g.dir.CompleteFill(block, data)
	} else {
		kind := cache.DemandFill
		if e.IsPrefetch && len(e.Requests) == 0 {
			kind = cache.PrefetchFill
		}

		block = g.installLate(e.LineAddr, data, kind, now)
	}

	if e.IsPrefetch {
		g.prefetcher.PrefetchFilled(e.LineAddr)
	}

	if block != nil {
		for _, r := range e.Requests {
			a := r.(*lineAccess)
			if a.hit {
				g.dir.Visit(block)
			}

			g.serveFromBlock(block, a)
			g.lineDone(a, now)
		}
	} else {
		g.serveBypassed(e, data, now)
	}

	if g.mshr == nil && !e.IsPrefetch {
		g.missPending = false
	}

	g.retryBlocked(now)
}

// installLate finds a way for a fill that could not reserve one at issue
// time. It returns nil if the set is still fully locked.
func (g *TrafficGenerator) installLate(
	lineAddr uint64,
	data []byte,
	kind cache.FillKind,
	now timing.VTime,
) *cache.Block {
	addr := lineAddr * uint64(g.config.CacheLineSize)

	if block, found := g.dir.Lookup(addr); found {
		return block
	}

	block, found := g.dir.FindVictim(addr, kind)
	if !found {
		return nil
	}

	g.evict(block, now, kind == cache.PrefetchFill)
	g.dir.Install(block, addr, data, false, kind)

	return block
}

// serveBypassed serves the waiters of a fill that found no way from the fill
// buffer. Writes are sent to the flash.
func (g *TrafficGenerator) serveBypassed(
	e *mshr.Entry,
	data []byte,
	now timing.VTime,
) {
	g.stats.CacheBypasses++

	line := make([]byte, g.config.CacheLineSize)
	copy(line, data)

	written := false

	for _, r := range e.Requests {
		a := r.(*lineAccess)

		if a.isWrite() {
			copy(line[a.lineOffset:], a.payload())
			written = true
		} else {
			copy(a.req.Data[a.reqOffset:], line[a.lineOffset:a.lineOffset+a.size])
		}

		g.lineDone(a, now)
	}

	if written {
		g.writeBack(e.LineAddr, line, now)
	}
}

// retryBlocked replays the waiting accesses in arrival order, for as long as
// no new miss blocks them again.
func (g *TrafficGenerator) retryBlocked(now timing.VTime) {
	for len(g.blocked) > 0 && !g.missBlocked() {
		a := g.blocked[0]
		g.blocked = g.blocked[1:]

		if _, found := g.pending[a.req.ID]; !found {
			continue
		}

		g.accessLine(a, now)
	}
}

func (g *TrafficGenerator) missBlocked() bool {
	if g.mshr == nil {
		return g.missPending
	}

	return g.mshr.IsFull()
}
