// Package workload produces request streams that exercise a traffic
// generator, and drives a generator through them.
package workload

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/trafficgen"
)

// Pattern names an access pattern.
type Pattern string

// Supported patterns.
const (
	// Sequential reads consecutive blocks, like a streaming scan.
	Sequential Pattern = "SEQUENTIAL"

	// Random reads aligned blocks anywhere in the range, like index lookups.
	Random Pattern = "RANDOM"

	// WriteBack writes consecutive dirty blocks, like a cache flushing.
	WriteBack Pattern = "WRITE_BACK"

	// ReadModifyWrite reads a random block and writes it back once the read
	// returns.
	ReadModifyWrite Pattern = "READ_MODIFY_WRITE"

	// Mixed interleaves random reads and writes.
	Mixed Pattern = "MIXED"

	// Burst issues groups of sequential reads at the same time.
	Burst Pattern = "BURST"

	// Hotspot reads blocks drawn from a Zipf distribution.
	Hotspot Pattern = "HOTSPOT"
)

// Patterns lists all the supported patterns.
var Patterns = []Pattern{
	Sequential, Random, WriteBack, ReadModifyWrite, Mixed, Burst, Hotspot,
}

// ErrInvalidSpec is returned when a workload cannot be generated.
var ErrInvalidSpec = errors.New("invalid workload")

// Spec describes a workload.
type Spec struct {
	Pattern     Pattern `mapstructure:"pattern"`
	Count       int     `mapstructure:"count"`
	BaseAddress uint64  `mapstructure:"base_address"`

	// Range is the number of bytes, starting at BaseAddress, the workload
	// may touch.
	Range       uint64 `mapstructure:"range"`
	RequestSize uint32 `mapstructure:"request_size"`

	// Stride separates consecutive sequential requests. Zero means
	// RequestSize.
	Stride uint64 `mapstructure:"stride"`

	InterArrivalNS timing.VTime `mapstructure:"inter_arrival_ns"`

	// ReadRatio is the share of reads in the mixed pattern.
	ReadRatio float64 `mapstructure:"read_ratio"`

	BurstSize  int          `mapstructure:"burst_size"`
	BurstGapNS timing.VTime `mapstructure:"burst_gap_ns"`

	// ZipfS is the skew of the hotspot pattern. It must be larger than 1.
	ZipfS float64 `mapstructure:"zipf_s"`

	Seed int64 `mapstructure:"seed"`
}

// DefaultSpec returns a sequential workload of 1000 4 KiB reads.
func DefaultSpec() Spec {
	return Spec{
		Pattern:        Sequential,
		Count:          1000,
		Range:          256 << 20,
		RequestSize:    4096,
		InterArrivalNS: 100,
		ReadRatio:      0.7,
		BurstSize:      16,
		BurstGapNS:     10000,
		ZipfS:          1.2,
		Seed:           1,
	}
}

// An Op is a request of a workload.
type Op struct {
	Kind      trafficgen.Kind
	Address   uint64
	Size      uint32
	Data      []byte
	IssueTime timing.VTime

	// AfterPrevious delays the op until the previous op has completed. The
	// op is then issued no earlier than IssueTime.
	AfterPrevious bool
}

// Validate checks that the workload can be generated.
func (s Spec) Validate() error {
	var errs []error

	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(s.pattern().valid(), "unknown pattern %q", s.Pattern)
	check(s.Count >= 0, "count must not be negative")
	check(s.RequestSize > 0, "request size must be positive")
	check(s.Range >= uint64(s.RequestSize),
		"range %d is smaller than a request", s.Range)
	check(s.ReadRatio >= 0 && s.ReadRatio <= 1,
		"read ratio must be in [0, 1], got %g", s.ReadRatio)

	switch s.pattern() {
	case Burst:
		check(s.BurstSize > 0, "burst size must be positive")
	case Hotspot:
		check(s.ZipfS > 1, "zipf skew must be larger than 1, got %g", s.ZipfS)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSpec, errors.Join(errs...))
	}

	return nil
}

func (s Spec) pattern() Pattern {
	return Pattern(strings.ToUpper(string(s.Pattern)))
}

func (p Pattern) valid() bool {
	for _, q := range Patterns {
		if p == q {
			return true
		}
	}

	return false
}

// Generate builds the ops of a workload. The same Spec always produces the
// same ops.
func Generate(s Spec) ([]Op, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	g := &opGenerator{
		spec:  s,
		rng:   rand.New(rand.NewSource(s.Seed)),
		slots: s.Range / uint64(s.RequestSize),
	}

	switch s.pattern() {
	case Sequential:
		g.sequential(trafficgen.Read)
	case WriteBack:
		g.sequential(trafficgen.Write)
	case Random:
		g.random()
	case ReadModifyWrite:
		g.readModifyWrite()
	case Mixed:
		g.mixed()
	case Burst:
		g.burst()
	case Hotspot:
		g.hotspot()
	}

	return g.ops, nil
}

type opGenerator struct {
	spec  Spec
	rng   *rand.Rand
	slots uint64
	ops   []Op
}

func (g *opGenerator) issueTime(i int) timing.VTime {
	return timing.VTime(i) * g.spec.InterArrivalNS
}

func (g *opGenerator) add(kind trafficgen.Kind, addr uint64, t timing.VTime) {
	op := Op{
		Kind:      kind,
		Address:   addr,
		Size:      g.spec.RequestSize,
		IssueTime: t,
	}

	if kind == trafficgen.Write {
		op.Data = make([]byte, op.Size)
		g.rng.Read(op.Data)
	}

	g.ops = append(g.ops, op)
}

func (g *opGenerator) slotAddress(slot uint64) uint64 {
	return g.spec.BaseAddress + slot*uint64(g.spec.RequestSize)
}

func (g *opGenerator) sequentialAddress(i int) uint64 {
	stride := g.spec.Stride
	if stride == 0 {
		stride = uint64(g.spec.RequestSize)
	}

	limit := g.spec.Range - uint64(g.spec.RequestSize) + 1
	offset := (uint64(i) * stride) % limit

	return g.spec.BaseAddress + offset
}

func (g *opGenerator) randomAddress() uint64 {
	return g.slotAddress(uint64(g.rng.Int63n(int64(g.slots))))
}

func (g *opGenerator) sequential(kind trafficgen.Kind) {
	for i := 0; i < g.spec.Count; i++ {
		g.add(kind, g.sequentialAddress(i), g.issueTime(i))
	}
}

func (g *opGenerator) random() {
	for i := 0; i < g.spec.Count; i++ {
		g.add(trafficgen.Read, g.randomAddress(), g.issueTime(i))
	}
}

func (g *opGenerator) readModifyWrite() {
	for i := 0; i < g.spec.Count; i++ {
		addr := g.randomAddress()
		g.add(trafficgen.Read, addr, g.issueTime(i))
		g.add(trafficgen.Write, addr, g.issueTime(i))
		g.ops[len(g.ops)-1].AfterPrevious = true
	}
}

func (g *opGenerator) mixed() {
	for i := 0; i < g.spec.Count; i++ {
		kind := trafficgen.Write
		if g.rng.Float64() < g.spec.ReadRatio {
			kind = trafficgen.Read
		}

		g.add(kind, g.randomAddress(), g.issueTime(i))
	}
}

func (g *opGenerator) burst() {
	for i := 0; i < g.spec.Count; i++ {
		t := timing.VTime(i/g.spec.BurstSize) * g.spec.BurstGapNS
		g.add(trafficgen.Read, g.sequentialAddress(i), t)
	}
}

func (g *opGenerator) hotspot() {
	zipf := rand.NewZipf(g.rng, g.spec.ZipfS, 1, g.slots-1)

	for i := 0; i < g.spec.Count; i++ {
		g.add(trafficgen.Read, g.slotAddress(zipf.Uint64()), g.issueTime(i))
	}
}
