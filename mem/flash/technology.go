package flash

import (
	"fmt"

	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// Technology is the number of bits stored per cell.
type Technology string

// Supported technologies.
const (
	SLC Technology = "SLC"
	MLC Technology = "MLC"
	TLC Technology = "TLC"
)

// Latencies are the fixed durations of flash array operations.
type Latencies struct {
	Read    timing.VTime `mapstructure:"read_ns"`
	Program timing.VTime `mapstructure:"program_ns"`
	Erase   timing.VTime `mapstructure:"erase_ns"`
}

// DefaultLatencies returns the nominal latencies of a technology.
func DefaultLatencies(t Technology) (Latencies, error) {
	switch t {
	case SLC:
		return Latencies{
			Read:    3 * timing.Microsecond,
			Program: 100 * timing.Microsecond,
			Erase:   1 * timing.Millisecond,
		}, nil
	case MLC:
		return Latencies{
			Read:    50 * timing.Microsecond,
			Program: 600 * timing.Microsecond,
			Erase:   3 * timing.Millisecond,
		}, nil
	case TLC:
		return Latencies{
			Read:    75 * timing.Microsecond,
			Program: 1000 * timing.Microsecond,
			Erase:   5 * timing.Millisecond,
		}, nil
	default:
		return Latencies{}, fmt.Errorf("unknown flash technology %q", t)
	}
}

// Resolve returns the technology defaults with every non-zero field of
// override applied on top.
func Resolve(t Technology, override Latencies) (Latencies, error) {
	l, err := DefaultLatencies(t)
	if err != nil {
		return l, err
	}

	if override.Read != 0 {
		l.Read = override.Read
	}

	if override.Program != 0 {
		l.Program = override.Program
	}

	if override.Erase != 0 {
		l.Erase = override.Erase
	}

	return l, nil
}
