package trafficgen

import (
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/mem/flash"
	"github.com/babyworm/MQSim-CXL/mem/flash/ftl"
	"github.com/babyworm/MQSim-CXL/mem/mshr"
	"github.com/babyworm/MQSim-CXL/mem/prefetch"
	"github.com/babyworm/MQSim-CXL/sim/hooking"
	"github.com/babyworm/MQSim-CXL/sim/id"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// A Builder can build traffic generators.
type Builder struct {
	config Config
	hooks  []hooking.Hook
	logger *log.Logger
}

// MakeBuilder creates a builder with the default configuration.
func MakeBuilder() Builder {
	return Builder{config: DefaultConfig()}
}

// WithConfig replaces the whole configuration.
func (b Builder) WithConfig(c Config) Builder {
	b.config = c
	return b
}

// WithSeed sets the seed of the randomized policies.
func (b Builder) WithSeed(seed int64) Builder {
	b.config.Seed = seed
	return b
}

// WithHook attaches a hook to the generator.
func (b Builder) WithHook(h hooking.Hook) Builder {
	b.hooks = append(b.hooks, h)
	return b
}

// WithLogger sets where the logging hooks write. The default is stderr.
func (b Builder) WithLogger(l *log.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a traffic generator at time 0 with an empty cache and an
// erased flash array.
func (b Builder) Build() (*TrafficGenerator, error) {
	c := b.config
	if err := c.Validate(); err != nil {
		return nil, err
	}

	vf, err := cache.NewVictimFinder(c.ReplacementPolicy,
		rand.New(rand.NewSource(c.Seed)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	pf, err := prefetch.New(c.Prefetcher)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	latencies, err := flash.Resolve(c.Technology, c.FlashLatency)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	model := flash.NewTimingModel(c.Flash, latencies, c.ChannelTransferNS)

	f, err := ftl.MakeBuilder().
		WithGeometry(c.Flash).
		WithTimingModel(model).
		WithOverProvisioning(c.OverProvisioning).
		WithGCThreshold(c.GCThreshold).
		WithGCPolicy(c.GCPolicy).
		WithRand(rand.New(rand.NewSource(c.Seed + 1))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	dir := cache.NewDirectory(c.NumSets(), c.Associativity, c.CacheLineSize, vf)
	dir.MixMode = c.MixMode

	g := &TrafficGenerator{
		config:     c,
		engine:     timing.NewSerialEngine(),
		dir:        dir,
		prefetcher: pf,
		ftl:        f,
		hitLatency: c.DRAMTiming().AccessLatency(),
		capacity:   f.LogicalCapacity(),
		taskIDs:    id.NewIDGenerator(),
		pending:    make(map[RequestID]*Request),
	}

	if c.EnableMSHR {
		g.mshr = mshr.NewMSHR(c.MSHRSize)
	}

	logger := b.logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	if c.Verbose {
		g.engine.AcceptHook(timing.NewEventLogger(logger))
	}

	if c.EnableLogging {
		g.AcceptHook(NewCompletionLogger(logger))
	}

	for _, h := range b.hooks {
		g.AcceptHook(h)
	}

	return g, nil
}
