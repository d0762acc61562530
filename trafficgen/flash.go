package trafficgen

import (
	"errors"
	"log"

	"github.com/babyworm/MQSim-CXL/mem/flash/ftl"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// pageSpan is the part of a byte range that falls into one logical page.
type pageSpan struct {
	lpn        uint64
	pageOffset int
	lineOffset int
	size       int
}

// spans cuts [addr, addr+size) at page boundaries, dropping what lies beyond
// the logical capacity.
func (g *TrafficGenerator) spans(addr uint64, size int) []pageSpan {
	ps := uint64(g.config.Flash.PageSize)
	end := min(addr+uint64(size), g.capacity)

	var out []pageSpan

	for cur := addr; cur < end; {
		lpn := cur / ps
		n := min(end, (lpn+1)*ps) - cur

		out = append(out, pageSpan{
			lpn:        lpn,
			pageOffset: int(cur % ps),
			lineOffset: int(cur - addr),
			size:       int(n),
		})

		cur += n
	}

	return out
}

func (g *TrafficGenerator) lineSpans(lineAddr uint64) []pageSpan {
	ls := g.config.CacheLineSize
	return g.spans(lineAddr*uint64(ls), ls)
}

// readLine charges the flash reads of a line fill and returns the time the
// last page is out of the array.
func (g *TrafficGenerator) readLine(now timing.VTime, lineAddr uint64) timing.VTime {
	done := now

	for _, s := range g.lineSpans(lineAddr) {
		done = max(done, g.ftl.Read(now, s.lpn))
	}

	return done
}

// flashLine returns the functional content of a line as stored in the flash,
// including writes that are stalled waiting for a free page. It returns nil
// if no byte of the line has ever been written.
func (g *TrafficGenerator) flashLine(lineAddr uint64) []byte {
	var data []byte

	for _, s := range g.lineSpans(lineAddr) {
		stalled := g.hasStalled(s.lpn)
		if !g.ftl.HasData(s.lpn) && !stalled {
			continue
		}

		if data == nil {
			data = make([]byte, g.config.CacheLineSize)
		}

		copy(data[s.lineOffset:], g.ftl.ReadData(s.lpn, s.pageOffset, s.size))

		if stalled {
			g.overlayStalled(data, s)
		}
	}

	return data
}

func (g *TrafficGenerator) hasStalled(lpn uint64) bool {
	for _, w := range g.stalled {
		if w.lpn == lpn {
			return true
		}
	}

	return false
}

// overlayStalled applies queued writes of the span's page to a line buffer,
// oldest first.
func (g *TrafficGenerator) overlayStalled(line []byte, s pageSpan) {
	for _, w := range g.stalled {
		if w.lpn != s.lpn {
			continue
		}

		lo := max(w.offset, s.pageOffset)
		hi := min(w.offset+len(w.data), s.pageOffset+s.size)

		if lo >= hi {
			continue
		}

		copy(line[s.lineOffset+lo-s.pageOffset:], w.data[lo-w.offset:hi-w.offset])
	}
}

func (g *TrafficGenerator) writeBack(lineAddr uint64, data []byte, now timing.VTime) {
	for _, s := range g.lineSpans(lineAddr) {
		var chunk []byte
		if data != nil {
			chunk = data[s.lineOffset : s.lineOffset+s.size]
		}

		g.program(now, s.lpn, s.pageOffset, chunk)
	}
}

// program writes to the flash. Writes that find no free page, and every
// write behind them, wait in order until garbage collection frees space.
func (g *TrafficGenerator) program(
	now timing.VTime,
	lpn uint64,
	offset int,
	data []byte,
) {
	g.drainStalled(now)

	if len(g.stalled) == 0 {
		_, err := g.ftl.Program(now, lpn, offset, data)
		if err == nil {
			return
		}

		if !errors.Is(err, ftl.ErrNoFreePage) {
			log.Panic(err)
		}
	}

	g.stats.StalledWrites++
	g.stalled = append(g.stalled, stalledWrite{
		lpn:    lpn,
		offset: offset,
		data:   append([]byte(nil), data...),
	})
}

func (g *TrafficGenerator) drainStalled(now timing.VTime) {
	for len(g.stalled) > 0 {
		w := g.stalled[0]

		_, err := g.ftl.Program(now, w.lpn, w.offset, w.data)
		if errors.Is(err, ftl.ErrNoFreePage) {
			return
		}

		if err != nil {
			log.Panic(err)
		}

		g.stalled = g.stalled[1:]
	}
}
