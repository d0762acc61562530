package trafficgen

import (
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// RequestID identifies a submitted request. IDs start at 1 and increase by
// one per submission.
type RequestID uint64

// Kind tells if a request reads or writes.
type Kind int

// Request kinds.
const (
	Read Kind = iota
	Write
)

func (k Kind) String() string {
	if k == Write {
		return "write"
	}

	return "read"
}

// A Completion is delivered to the callback of a finished request.
type Completion struct {
	ID      RequestID
	Kind    Kind
	Address uint64
	Size    uint32

	// Data holds the bytes read. It is nil for writes.
	Data []byte

	SubmitTime   timing.VTime
	CompleteTime timing.VTime
	LatencyNS    uint64

	// Hit is true if every line of the request was served by the DRAM cache,
	// including lines merged onto an in-flight fill.
	Hit bool
}

// Callback is invoked once when a request completes.
type Callback func(c Completion)

// Request is a read or write in flight.
type Request struct {
	ID         RequestID
	Kind       Kind
	Address    uint64
	Size       uint32
	Data       []byte
	SubmitTime timing.VTime

	taskID    string
	callback  Callback
	remaining int
	allHit    bool
	revoked   bool
}

// lineAccess is the part of a request that falls into one cache line.
type lineAccess struct {
	req *Request

	addr       uint64
	lineAddr   uint64
	lineOffset int
	reqOffset  int
	size       int

	hit     bool
	trained bool

	// missed is set on an access that waited behind a miss and found its
	// line absent when it arrived.
	missed bool
}

func (a *lineAccess) isWrite() bool {
	return a.req.Kind == Write
}

// payload returns the bytes this access writes, or nil if the request has
// no payload for this range.
func (a *lineAccess) payload() []byte {
	data := a.req.Data
	if a.req.Kind != Write || len(data) <= a.reqOffset {
		return nil
	}

	end := a.reqOffset + a.size
	if end > len(data) {
		end = len(data)
	}

	return data[a.reqOffset:end]
}
