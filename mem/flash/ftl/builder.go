package ftl

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/babyworm/MQSim-CXL/mem/flash"
)

// A Builder can build FTLs.
type Builder struct {
	geometry         flash.Geometry
	model            *flash.TimingModel
	overProvisioning float64
	gcThreshold      float64
	gcPolicy         GCPolicy
	rng              *rand.Rand
}

// MakeBuilder creates a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		geometry:         flash.DefaultGeometry(),
		overProvisioning: 0.127,
		gcThreshold:      0.01,
		gcPolicy:         GCGreedy,
	}
}

// WithGeometry sets the flash organization.
func (b Builder) WithGeometry(g flash.Geometry) Builder {
	b.geometry = g
	return b
}

// WithTimingModel sets the timing model that operations are charged to. If
// not set, an SLC model without channel transfer time is used.
func (b Builder) WithTimingModel(m *flash.TimingModel) Builder {
	b.model = m
	return b
}

// WithOverProvisioning sets the share of the physical capacity hidden from
// the host.
func (b Builder) WithOverProvisioning(ratio float64) Builder {
	b.overProvisioning = ratio
	return b
}

// WithGCThreshold sets the free block ratio below which a plane is collected.
func (b Builder) WithGCThreshold(ratio float64) Builder {
	b.gcThreshold = ratio
	return b
}

// WithGCPolicy sets the victim selection policy.
func (b Builder) WithGCPolicy(p GCPolicy) Builder {
	b.gcPolicy = p
	return b
}

// WithRand sets the random source of the randomized policies.
func (b Builder) WithRand(r *rand.Rand) Builder {
	b.rng = r
	return b
}

// Build creates the FTL with every block free.
func (b Builder) Build() (*FTL, error) {
	if err := b.geometry.Validate(); err != nil {
		return nil, err
	}

	if b.overProvisioning < 0 || b.overProvisioning >= 1 {
		return nil, fmt.Errorf(
			"over-provisioning ratio must be in [0, 1), got %g",
			b.overProvisioning)
	}

	if b.gcThreshold < 0 || b.gcThreshold >= 1 {
		return nil, fmt.Errorf("GC threshold must be in [0, 1), got %g",
			b.gcThreshold)
	}

	if !b.gcPolicy.Valid() {
		return nil, fmt.Errorf("unknown GC policy %q", b.gcPolicy)
	}

	g := b.geometry

	f := &FTL{
		geometry: g,
		model:    b.model,
		gcPolicy: b.gcPolicy,
		rng:      b.rng,
		l2p:      make(map[uint64]uint64),
		pages:    make(map[uint64][]byte),
	}

	if f.model == nil {
		l, _ := flash.DefaultLatencies(flash.SLC)
		f.model = flash.NewTimingModel(g, l, 0)
	}

	if f.rng == nil {
		f.rng = rand.New(rand.NewSource(0))
	}

	f.gcThresholdBlocks = int(b.gcThreshold * float64(g.BlocksPerPlane))
	if f.gcThresholdBlocks < 1 {
		f.gcThresholdBlocks = 1
	}

	f.logicalPages = uint64(math.Floor(
		float64(g.NumPages()) * (1 - b.overProvisioning)))

	f.blocks = make([]Block, g.NumBlocks())
	for i := range f.blocks {
		f.blocks[i].ID = i
	}

	f.planes = make([]plane, g.NumPlanes())
	for i := range f.planes {
		f.planes[i] = plane{
			index:      i,
			addr:       g.PlaneAddress(i),
			firstBlock: i * g.BlocksPerPlane,
			active:     -1,
			free:       g.BlocksPerPlane,
		}
	}

	return f, nil
}
