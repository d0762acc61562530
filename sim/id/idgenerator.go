// Package id generates identifiers for requests, trace tasks and progress
// bars.
package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out string IDs that are unique within the generator.
type IDGenerator interface {
	Generate() string
}

// NewIDGenerator returns a generator that counts from 1. Two runs that ask
// for IDs in the same order get the same IDs, which keeps traces of the same
// seed comparable.
func NewIDGenerator() IDGenerator {
	return new(counter)
}

// NewParallelIDGenerator returns a generator whose IDs are unique across
// processes, at the cost of being different on every run.
func NewParallelIDGenerator() IDGenerator {
	return xidGenerator{}
}

type counter struct {
	last atomic.Uint64
}

func (c *counter) Generate() string {
	return strconv.FormatUint(c.last.Add(1), 10)
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
