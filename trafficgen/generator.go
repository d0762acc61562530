// Package trafficgen simulates a CXL memory expander that serves host
// requests from a DRAM cache in front of a flash array.
//
// The generator is single threaded. Requests are accepted immediately and
// their results are delivered through callbacks while the caller advances
// simulated time with Tick, RunUntil or RunUntilComplete.
package trafficgen

import (
	"fmt"
	"log"

	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/mem/flash/ftl"
	"github.com/babyworm/MQSim-CXL/mem/mshr"
	"github.com/babyworm/MQSim-CXL/mem/prefetch"
	"github.com/babyworm/MQSim-CXL/sim/hooking"
	"github.com/babyworm/MQSim-CXL/sim/id"
	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/tracing"
)

type stalledWrite struct {
	lpn    uint64
	offset int
	data   []byte
}

// TrafficGenerator owns the cache, the MSHR, the prefetcher, the FTL and the
// event queue of one simulated device.
type TrafficGenerator struct {
	hooking.HookableBase

	config     Config
	engine     *timing.SerialEngine
	dir        *cache.Directory
	mshr       *mshr.MSHR
	prefetcher prefetch.Prefetcher
	ftl        *ftl.FTL

	hitLatency timing.VTime
	capacity   uint64

	nextID  RequestID
	taskIDs id.IDGenerator
	pending map[RequestID]*Request
	blocked []*lineAccess
	stalled []stalledWrite

	missPending bool

	stats  Statistics
	closed bool
}

// Name returns the name of the generator.
func (g *TrafficGenerator) Name() string {
	return "TrafficGenerator"
}

// Config returns the configuration the generator was built with.
func (g *TrafficGenerator) Config() Config {
	return g.config
}

// Engine returns the event engine. Hooks attached to it see every event.
func (g *TrafficGenerator) Engine() timing.Engine {
	return g.engine
}

// Capacity returns the size of the addressable range in bytes.
func (g *TrafficGenerator) Capacity() uint64 {
	return g.capacity
}

// HitLatency returns the time the DRAM cache takes to serve a line.
func (g *TrafficGenerator) HitLatency() timing.VTime {
	return g.hitLatency
}

// SubmitRead accepts a read of size bytes at address. The callback fires
// once, while time is being advanced.
func (g *TrafficGenerator) SubmitRead(
	address uint64,
	size uint32,
	callback Callback,
) (RequestID, error) {
	return g.submit(Read, address, size, nil, callback)
}

// SubmitWrite accepts a write of size bytes at address. Data may be nil or
// shorter than size, in which case the bytes not covered keep their
// content.
func (g *TrafficGenerator) SubmitWrite(
	address uint64,
	size uint32,
	data []byte,
	callback Callback,
) (RequestID, error) {
	return g.submit(Write, address, size, data, callback)
}

func (g *TrafficGenerator) submit(
	kind Kind,
	address uint64,
	size uint32,
	data []byte,
	callback Callback,
) (RequestID, error) {
	if g.closed {
		return 0, ErrGeneratorClosed
	}

	if err := g.checkRange(address, size); err != nil {
		return 0, err
	}

	if len(data) > int(size) {
		return 0, fmt.Errorf("%w: %d-byte payload for a %d-byte write",
			ErrOutOfRange, len(data), size)
	}

	now := g.engine.Now()

	g.nextID++
	req := &Request{
		ID:         g.nextID,
		Kind:       kind,
		Address:    address,
		Size:       size,
		SubmitTime: now,
		taskID:     g.taskIDs.Generate(),
		callback:   callback,
		allHit:     true,
	}

	switch kind {
	case Read:
		req.Data = make([]byte, size)
		g.stats.ReadRequests++
	case Write:
		if data != nil {
			req.Data = append([]byte(nil), data...)
		}
		g.stats.WriteRequests++
	}

	g.stats.TotalRequests++
	g.pending[req.ID] = req

	accesses := g.split(req)
	req.remaining = len(accesses)

	g.InvokeHook(hooking.HookCtx{
		Domain: g,
		Pos:    HookPosReqStart,
		Item:   req,
	})
	tracing.StartTask(req.taskID, "", g, "req_in", kind.String(), req)

	for _, a := range accesses {
		g.accessLine(a, now)
	}

	return req.ID, nil
}

func (g *TrafficGenerator) checkRange(address uint64, size uint32) error {
	if size == 0 || address >= g.capacity ||
		uint64(size) > g.capacity-address {
		return fmt.Errorf("%w: [0x%x, 0x%x) outside [0, 0x%x)",
			ErrOutOfRange, address, address+uint64(size), g.capacity)
	}

	return nil
}

// split cuts a request at cache line boundaries.
func (g *TrafficGenerator) split(req *Request) []*lineAccess {
	ls := uint64(g.config.CacheLineSize)
	end := req.Address + uint64(req.Size)

	var out []*lineAccess

	for addr := req.Address; addr < end; {
		line := addr / ls
		n := min(end, (line+1)*ls) - addr

		out = append(out, &lineAccess{
			req:        req,
			addr:       addr,
			lineAddr:   line,
			lineOffset: int(addr - line*ls),
			reqOffset:  int(addr - req.Address),
			size:       int(n),
		})

		addr += n
	}

	return out
}

// Tick advances simulated time to exactly t, firing every event due by
// then.
func (g *TrafficGenerator) Tick(t timing.VTime) error {
	if g.closed {
		return ErrGeneratorClosed
	}

	return g.engine.AdvanceTo(t)
}

// RunUntil steps from event to event until time t is reached.
func (g *TrafficGenerator) RunUntil(t timing.VTime) error {
	if g.closed {
		return ErrGeneratorClosed
	}

	for {
		next, ok := g.engine.NextEventTime()
		if !ok || next >= t {
			return g.engine.AdvanceTo(t)
		}

		if err := g.engine.AdvanceTo(next); err != nil {
			return err
		}
	}
}

// RunUntilComplete advances time until no request is pending. It returns
// false if maxTime is not zero and is reached first, or if pending requests
// can no longer make progress. The caller may resume later.
func (g *TrafficGenerator) RunUntilComplete(maxTime timing.VTime) (bool, error) {
	if g.closed {
		return false, ErrGeneratorClosed
	}

	for g.HasPendingRequests() {
		next, ok := g.engine.NextEventTime()
		if !ok {
			return false, nil
		}

		if maxTime != 0 && next > maxTime {
			if maxTime > g.engine.Now() {
				if err := g.engine.AdvanceTo(maxTime); err != nil {
					return false, err
				}
			}

			return false, nil
		}

		if err := g.engine.AdvanceTo(next); err != nil {
			return false, err
		}
	}

	return true, nil
}

// HasPendingRequests tells if any accepted request has not completed.
func (g *TrafficGenerator) HasPendingRequests() bool {
	return len(g.pending) > 0
}

// PendingRequests returns the number of requests not completed yet.
func (g *TrafficGenerator) PendingRequests() int {
	return len(g.pending)
}

// CurrentTimeNS returns the simulated time.
func (g *TrafficGenerator) CurrentTimeNS() timing.VTime {
	return g.engine.Now()
}

// Revoke suppresses the callback of a pending request. The request still
// completes and is still counted. It returns false if the request is not
// pending.
func (g *TrafficGenerator) Revoke(id RequestID) bool {
	req, found := g.pending[id]
	if !found {
		return false
	}

	req.revoked = true

	return true
}

// Invalidate removes the line that holds address from the cache, writing it
// back first if it is dirty. It returns false if the line is not cached or
// is still being filled.
func (g *TrafficGenerator) Invalidate(address uint64) (bool, error) {
	if g.closed {
		return false, ErrGeneratorClosed
	}

	if err := g.checkRange(address, 1); err != nil {
		return false, err
	}

	block, found := g.dir.Lookup(address)
	if !found || block.IsLocked {
		return false, nil
	}

	g.evict(block, g.engine.Now(), false)

	return true, nil
}

// Statistics returns a snapshot of all counters.
func (g *TrafficGenerator) Statistics() Statistics {
	s := g.stats

	fs := g.ftl.Stats()
	s.FlashReads = fs.HostReads
	s.FlashWrites = fs.HostPrograms
	s.FlashErases = fs.Erases
	s.GCExecutions = fs.GCExecutions
	s.GCRelocations = fs.GCRelocations
	s.GCTimeNS = fs.GCTimeNS
	s.GCStalls = fs.GCStalls
	s.WriteAmplification = fs.WriteAmplification()
	s.EraseCountMin, s.EraseCountMax = g.ftl.EraseCountRange()
	s.CurrentTimeNS = g.engine.Now()

	return s
}

// ResetStatistics zeroes every counter. The cache, the flash array and the
// pending requests are not touched.
func (g *TrafficGenerator) ResetStatistics() {
	g.stats = Statistics{}
	g.ftl.ResetStats()
}

// Close drops every pending request without calling its callback. Every
// later operation returns ErrGeneratorClosed.
func (g *TrafficGenerator) Close() error {
	if g.closed {
		return nil
	}

	g.closed = true
	g.pending = make(map[RequestID]*Request)
	g.blocked = nil
	g.missPending = false

	return nil
}

func (g *TrafficGenerator) schedule(t timing.VTime, action func(now timing.VTime)) {
	err := g.engine.Schedule(timing.NewFuncEvent(t,
		func(now timing.VTime) error {
			action(now)
			return nil
		}))
	if err != nil {
		log.Panic(err)
	}
}

func (g *TrafficGenerator) lineDone(a *lineAccess, now timing.VTime) {
	req := a.req
	req.allHit = req.allHit && a.hit

	if a.hit {
		tracing.AddTaskStep(req.taskID, g, "line_hit")
	} else {
		tracing.AddTaskStep(req.taskID, g, "line_miss")
	}

	req.remaining--
	if req.remaining > 0 {
		return
	}

	if _, found := g.pending[req.ID]; !found {
		return
	}

	delete(g.pending, req.ID)

	latency := now - req.SubmitTime
	g.stats.recordCompletion(latency, req.allHit)

	c := Completion{
		ID:           req.ID,
		Kind:         req.Kind,
		Address:      req.Address,
		Size:         req.Size,
		SubmitTime:   req.SubmitTime,
		CompleteTime: now,
		LatencyNS:    latency,
		Hit:          req.allHit,
	}

	if req.Kind == Read {
		c.Data = req.Data
	}

	g.InvokeHook(hooking.HookCtx{
		Domain: g,
		Pos:    HookPosReqComplete,
		Item:   c,
	})
	tracing.EndTask(req.taskID, g)

	if !req.revoked && req.callback != nil {
		req.callback(c)
	}
}
