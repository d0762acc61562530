package trafficgen

import (
	"errors"
	"fmt"

	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/mem/dram"
	"github.com/babyworm/MQSim-CXL/mem/flash"
	"github.com/babyworm/MQSim-CXL/mem/flash/ftl"
	"github.com/babyworm/MQSim-CXL/mem/prefetch"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// Config holds every parameter of the simulated device.
type Config struct {
	DRAMSize          uint64                  `mapstructure:"dram_size"`
	CacheLineSize     int                     `mapstructure:"cache_line_size"`
	Associativity     int                     `mapstructure:"associativity"`
	ReplacementPolicy cache.ReplacementPolicy `mapstructure:"replacement_policy"`
	Prefetcher        prefetch.Kind           `mapstructure:"prefetcher"`
	EnableMSHR        bool                    `mapstructure:"enable_mshr"`
	MSHRSize          int                     `mapstructure:"mshr_size"`
	MixMode           bool                    `mapstructure:"mix_mode"`

	TRCD timing.VTime `mapstructure:"trcd_ns"`
	TCL  timing.VTime `mapstructure:"tcl_ns"`
	TRP  timing.VTime `mapstructure:"trp_ns"`

	Flash             flash.Geometry   `mapstructure:"flash"`
	Technology        flash.Technology `mapstructure:"technology"`
	FlashLatency      flash.Latencies  `mapstructure:"flash_latency"`
	ChannelTransferNS timing.VTime     `mapstructure:"channel_transfer_ns"`
	OverProvisioning  float64          `mapstructure:"over_provisioning"`
	GCThreshold       float64          `mapstructure:"gc_threshold"`
	GCPolicy          ftl.GCPolicy     `mapstructure:"gc_policy"`

	// Seed feeds the random replacement and GC policies.
	Seed int64 `mapstructure:"seed"`

	EnableLogging bool `mapstructure:"enable_logging"`
	Verbose       bool `mapstructure:"verbose"`
}

// DefaultConfig returns the configuration of the reference device.
func DefaultConfig() Config {
	return Config{
		DRAMSize:          64 << 20,
		CacheLineSize:     4096,
		Associativity:     16,
		ReplacementPolicy: cache.PolicyCFLRU,
		Prefetcher:        prefetch.KindBestOffset,
		EnableMSHR:        true,
		MSHRSize:          64,
		MixMode:           true,
		TRCD:              13,
		TCL:               13,
		TRP:               13,
		Flash:             flash.DefaultGeometry(),
		Technology:        flash.SLC,
		OverProvisioning:  0.127,
		GCThreshold:       0.01,
		GCPolicy:          ftl.GCGreedy,
		Seed:              1,
	}
}

// NumSets returns the number of cache sets.
func (c Config) NumSets() int {
	if c.CacheLineSize <= 0 || c.Associativity <= 0 {
		return 0
	}

	return int(c.DRAMSize / (uint64(c.CacheLineSize) * uint64(c.Associativity)))
}

// DRAMTiming returns the DRAM timing constants.
func (c Config) DRAMTiming() dram.Timing {
	return dram.MakeBuilder().
		WithTRCD(c.TRCD).
		WithTCL(c.TCL).
		WithTRP(c.TRP).
		Build()
}

// Validate checks the configuration. All problems are reported together,
// wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error

	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.DRAMSize > 0, "DRAM size must be positive")
	check(c.CacheLineSize > 0, "cache line size must be positive")
	check(c.Associativity > 0, "associativity must be positive")

	if c.DRAMSize > 0 && c.CacheLineSize > 0 && c.Associativity > 0 {
		setBytes := uint64(c.CacheLineSize) * uint64(c.Associativity)
		check(c.DRAMSize%setBytes == 0 && c.DRAMSize >= setBytes,
			"DRAM size %d is not a multiple of line size %d x %d ways",
			c.DRAMSize, c.CacheLineSize, c.Associativity)
	}

	check(c.ReplacementPolicy.Valid(),
		"unknown replacement policy %q", c.ReplacementPolicy)
	check(c.Prefetcher.Valid(), "unknown prefetcher %q", c.Prefetcher)
	check(!c.EnableMSHR || c.MSHRSize > 0,
		"MSHR size must be positive, got %d", c.MSHRSize)

	if err := c.DRAMTiming().Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Flash.Validate(); err != nil {
		errs = append(errs, err)
	} else if c.CacheLineSize > 0 {
		ps := c.Flash.PageSize
		ls := c.CacheLineSize
		check(ps%ls == 0 || ls%ps == 0,
			"cache line size %d and flash page size %d must divide each other",
			ls, ps)
	}

	if _, err := flash.DefaultLatencies(c.Technology); err != nil {
		errs = append(errs, err)
	}

	check(c.OverProvisioning >= 0 && c.OverProvisioning < 1,
		"over-provisioning ratio must be in [0, 1), got %g",
		c.OverProvisioning)
	check(c.GCThreshold >= 0 && c.GCThreshold < 1,
		"GC threshold must be in [0, 1), got %g", c.GCThreshold)
	check(c.GCPolicy.Valid(), "unknown GC policy %q", c.GCPolicy)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}
