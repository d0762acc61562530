// Package config loads a device configuration from files and the environment.
//
// Values are layered: the built-in defaults first, then the configuration
// file, then environment variables prefixed with CXLTG_ (for example
// CXLTG_DRAM_SIZE or CXLTG_FLASH_CHANNELS). Variables found in a .env file in
// the working directory are loaded into the environment beforehand.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/mem/flash"
	"github.com/babyworm/MQSim-CXL/mem/flash/ftl"
	"github.com/babyworm/MQSim-CXL/mem/prefetch"
	"github.com/babyworm/MQSim-CXL/trafficgen"
)

// EnvPrefix is the prefix of the environment variables that override the
// configuration.
const EnvPrefix = "CXLTG"

// DefaultEnvFile is the dotenv file read by Load.
const DefaultEnvFile = ".env"

// A Loader reads configurations. The zero value is not usable; use NewLoader.
type Loader struct {
	envFiles []string
}

// NewLoader creates a Loader that reads the given dotenv files. Missing files
// are skipped.
func NewLoader(envFiles ...string) *Loader {
	return &Loader{envFiles: envFiles}
}

// Load reads the configuration at path with the default .env file. An empty
// path only applies the environment to the defaults.
func Load(path string) (trafficgen.Config, error) {
	return NewLoader(DefaultEnvFile).Load(path)
}

// Load reads the configuration file at path. The file type is derived from
// its extension (yaml, json, toml).
func (l *Loader) Load(path string) (trafficgen.Config, error) {
	for _, f := range l.envFiles {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return trafficgen.Config{}, fmt.Errorf("error reading %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v, trafficgen.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return trafficgen.Config{},
				fmt.Errorf("error reading config file: %w", err)
		}
	}

	var c trafficgen.Config
	if err := v.Unmarshal(&c); err != nil {
		return trafficgen.Config{},
			fmt.Errorf("error unmarshaling config: %w", err)
	}

	normalize(&c)

	if err := c.Validate(); err != nil {
		return trafficgen.Config{}, err
	}

	return c, nil
}

func setDefaults(v *viper.Viper, c trafficgen.Config) {
	v.SetDefault("dram_size", c.DRAMSize)
	v.SetDefault("cache_line_size", c.CacheLineSize)
	v.SetDefault("associativity", c.Associativity)
	v.SetDefault("replacement_policy", string(c.ReplacementPolicy))
	v.SetDefault("prefetcher", string(c.Prefetcher))
	v.SetDefault("enable_mshr", c.EnableMSHR)
	v.SetDefault("mshr_size", c.MSHRSize)
	v.SetDefault("mix_mode", c.MixMode)

	v.SetDefault("trcd_ns", uint64(c.TRCD))
	v.SetDefault("tcl_ns", uint64(c.TCL))
	v.SetDefault("trp_ns", uint64(c.TRP))

	v.SetDefault("flash.channels", c.Flash.Channels)
	v.SetDefault("flash.chips_per_channel", c.Flash.ChipsPerChannel)
	v.SetDefault("flash.dies_per_chip", c.Flash.DiesPerChip)
	v.SetDefault("flash.planes_per_die", c.Flash.PlanesPerDie)
	v.SetDefault("flash.blocks_per_plane", c.Flash.BlocksPerPlane)
	v.SetDefault("flash.pages_per_block", c.Flash.PagesPerBlock)
	v.SetDefault("flash.page_size", c.Flash.PageSize)

	v.SetDefault("technology", string(c.Technology))
	v.SetDefault("flash_latency.read_ns", uint64(c.FlashLatency.Read))
	v.SetDefault("flash_latency.program_ns", uint64(c.FlashLatency.Program))
	v.SetDefault("flash_latency.erase_ns", uint64(c.FlashLatency.Erase))
	v.SetDefault("channel_transfer_ns", uint64(c.ChannelTransferNS))
	v.SetDefault("over_provisioning", c.OverProvisioning)
	v.SetDefault("gc_threshold", c.GCThreshold)
	v.SetDefault("gc_policy", string(c.GCPolicy))

	v.SetDefault("seed", c.Seed)
	v.SetDefault("enable_logging", c.EnableLogging)
	v.SetDefault("verbose", c.Verbose)
}

// normalize accepts policy names in any case.
func normalize(c *trafficgen.Config) {
	c.ReplacementPolicy = cache.ReplacementPolicy(
		strings.ToUpper(string(c.ReplacementPolicy)))
	c.Prefetcher = prefetch.Kind(strings.ToUpper(string(c.Prefetcher)))
	c.Technology = flash.Technology(strings.ToUpper(string(c.Technology)))
	c.GCPolicy = ftl.GCPolicy(strings.ToUpper(string(c.GCPolicy)))
}
