// Package mshr provides the miss status holding registers that merge
// concurrent misses to the same line.
package mshr

import (
	"fmt"
	"log"

	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// An Entry tracks one outstanding line fill.
type Entry struct {
	LineAddr uint64

	// Block is the reserved cache way, or nil if the fill could not reserve
	// one at issue time.
	Block *cache.Block

	// IsPrefetch is true while the entry only serves the prefetcher.
	IsPrefetch bool

	// TaskID identifies the fill in traces.
	TaskID string

	IssueTime timing.VTime
	ReadyTime timing.VTime

	// Requests are the accesses merged onto the entry, in arrival order.
	Requests []interface{}
}

// MSHR records the cache's outstanding reads to the flash backend.
type MSHR struct {
	Capacity int

	entries map[uint64]*Entry
	order   []uint64
}

// NewMSHR creates a new MSHR.
func NewMSHR(capacity int) *MSHR {
	if capacity <= 0 {
		log.Panicf("MSHR capacity must be positive, got %d", capacity)
	}

	return &MSHR{
		Capacity: capacity,
		entries:  make(map[uint64]*Entry),
	}
}

// Query returns the entry of the line, if the line is being fetched.
func (m *MSHR) Query(lineAddr uint64) (*Entry, bool) {
	e, found := m.entries[lineAddr]
	return e, found
}

// Add creates a new entry. Adding a line that already has an entry is a
// programming error.
func (m *MSHR) Add(lineAddr uint64) (*Entry, error) {
	if _, found := m.entries[lineAddr]; found {
		log.Panicf("trying to add line 0x%x that is already in MSHR", lineAddr)
	}

	if m.IsFull() {
		return nil, fmt.Errorf("trying to add to a full MSHR")
	}

	e := &Entry{LineAddr: lineAddr}
	m.entries[lineAddr] = e
	m.order = append(m.order, lineAddr)

	return e, nil
}

// LookupOrAllocate returns the entry to merge onto when the line is already
// in flight. Otherwise it allocates a new entry and reports it as new.
func (m *MSHR) LookupOrAllocate(lineAddr uint64) (e *Entry, isNew bool, err error) {
	if e, found := m.entries[lineAddr]; found {
		return e, false, nil
	}

	e, err = m.Add(lineAddr)
	if err != nil {
		return nil, false, err
	}

	return e, true, nil
}

// Complete removes the entry of the line and returns it so that the caller
// can release all the merged requests.
func (m *MSHR) Complete(lineAddr uint64) *Entry {
	e, found := m.entries[lineAddr]
	if !found {
		log.Panicf("completing line 0x%x that is not in MSHR", lineAddr)
	}

	delete(m.entries, lineAddr)

	for i, a := range m.order {
		if a == lineAddr {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	return e
}

// AddRequest merges a request onto an existing entry.
func (m *MSHR) AddRequest(lineAddr uint64, req interface{}) {
	e, found := m.entries[lineAddr]
	if !found {
		log.Panicf("trying to add a request to line 0x%x that is not in MSHR",
			lineAddr)
	}

	e.Requests = append(e.Requests, req)
}

// Entries returns the outstanding entries in allocation order.
func (m *MSHR) Entries() []*Entry {
	out := make([]*Entry, 0, len(m.order))
	for _, a := range m.order {
		out = append(out, m.entries[a])
	}

	return out
}

// Len returns the number of outstanding entries.
func (m *MSHR) Len() int {
	return len(m.entries)
}

// IsFull tells if no more entry can be added.
func (m *MSHR) IsFull() bool {
	return len(m.entries) >= m.Capacity
}

// Reset drops all entries.
func (m *MSHR) Reset() {
	m.entries = make(map[uint64]*Entry)
	m.order = nil
}
