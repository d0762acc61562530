// Package dram models the device-side DRAM that holds the cache lines.
//
// The DRAM is modeled with a closed-page policy. Every access activates a
// row, reads or writes a column, and precharges the bank, so all accesses
// take the same time. Refresh and power states are not modeled.
package dram

import (
	"fmt"

	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// Timing holds the DRAM timing parameters in nanoseconds.
type Timing struct {
	TRCD timing.VTime // RAS to CAS delay
	TCL  timing.VTime // CAS latency
	TRP  timing.VTime // Row precharge time
}

// AccessLatency returns the time to serve one cache line from the DRAM.
func (t Timing) AccessLatency() timing.VTime {
	return t.TRP + t.TRCD + t.TCL
}

// Validate checks that the access latency is not zero.
func (t Timing) Validate() error {
	if t.AccessLatency() == 0 {
		return fmt.Errorf("dram access latency must be > 0")
	}

	return nil
}

// Builder can build DRAM timing descriptions.
type Builder struct {
	tRCD timing.VTime
	tCL  timing.VTime
	tRP  timing.VTime
}

// MakeBuilder creates a builder with DDR4-like defaults.
func MakeBuilder() Builder {
	return Builder{
		tRCD: 13,
		tCL:  13,
		tRP:  13,
	}
}

// WithTRCD sets the row-to-column delay in nanoseconds.
func (b Builder) WithTRCD(ns timing.VTime) Builder {
	b.tRCD = ns
	return b
}

// WithTCL sets the column access strobe latency in nanoseconds.
func (b Builder) WithTCL(ns timing.VTime) Builder {
	b.tCL = ns
	return b
}

// WithTRP sets the row precharge latency in nanoseconds.
func (b Builder) WithTRP(ns timing.VTime) Builder {
	b.tRP = ns
	return b
}

// Build returns the timing description.
func (b Builder) Build() Timing {
	return Timing{
		TRCD: b.tRCD,
		TCL:  b.tCL,
		TRP:  b.tRP,
	}
}
