package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/babyworm/MQSim-CXL/config"
	"github.com/babyworm/MQSim-CXL/mem/cache"
	"github.com/babyworm/MQSim-CXL/mem/flash"
	"github.com/babyworm/MQSim-CXL/mem/flash/ftl"
	"github.com/babyworm/MQSim-CXL/mem/prefetch"
	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/trafficgen"
)

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

	return path
}

func setEnv(key, value string) {
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(os.Unsetenv, key)
}

var _ = Describe("Loader", func() {
	var (
		dir    string
		loader *config.Loader
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		loader = config.NewLoader(filepath.Join(dir, ".env"))
	})

	It("should return the defaults without a file", func() {
		c, err := loader.Load("")

		Expect(err).ToNot(HaveOccurred())
		Expect(c).To(Equal(trafficgen.DefaultConfig()))
	})

	It("should read a yaml file", func() {
		path := writeFile(dir, "device.yaml", `
dram_size: 1048576
associativity: 4
replacement_policy: lru
prefetcher: leap
enable_mshr: false
trcd_ns: 14
technology: tlc
gc_policy: rga
flash:
  channels: 2
  chips_per_channel: 2
flash_latency:
  read_ns: 5000
`)

		c, err := loader.Load(path)

		Expect(err).ToNot(HaveOccurred())
		Expect(c.DRAMSize).To(Equal(uint64(1 << 20)))
		Expect(c.Associativity).To(Equal(4))
		Expect(c.ReplacementPolicy).To(Equal(cache.PolicyLRU))
		Expect(c.Prefetcher).To(Equal(prefetch.KindLeap))
		Expect(c.EnableMSHR).To(BeFalse())
		Expect(c.TRCD).To(Equal(timing.VTime(14)))
		Expect(c.TCL).To(Equal(timing.VTime(13)))
		Expect(c.Technology).To(Equal(flash.TLC))
		Expect(c.GCPolicy).To(Equal(ftl.GCRGA))
		Expect(c.Flash.Channels).To(Equal(2))
		Expect(c.Flash.ChipsPerChannel).To(Equal(2))
		Expect(c.Flash.PagesPerBlock).To(Equal(
			flash.DefaultGeometry().PagesPerBlock))
		Expect(c.FlashLatency.Read).To(Equal(timing.VTime(5000)))
	})

	It("should read a json file", func() {
		path := writeFile(dir, "device.json",
			`{"cache_line_size": 16384, "mix_mode": false}`)

		c, err := loader.Load(path)

		Expect(err).ToNot(HaveOccurred())
		Expect(c.CacheLineSize).To(Equal(16384))
		Expect(c.MixMode).To(BeFalse())
	})

	It("should let the environment override the file", func() {
		path := writeFile(dir, "device.yaml", "associativity: 4\n")
		setEnv("CXLTG_ASSOCIATIVITY", "8")
		setEnv("CXLTG_FLASH_CHANNELS", "4")

		c, err := loader.Load(path)

		Expect(err).ToNot(HaveOccurred())
		Expect(c.Associativity).To(Equal(8))
		Expect(c.Flash.Channels).To(Equal(4))
	})

	It("should read variables from the dotenv file", func() {
		writeFile(dir, ".env", "CXLTG_SEED=42\n")
		DeferCleanup(os.Unsetenv, "CXLTG_SEED")

		c, err := loader.Load("")

		Expect(err).ToNot(HaveOccurred())
		Expect(c.Seed).To(Equal(int64(42)))
	})

	It("should fail on a missing file", func() {
		_, err := loader.Load(filepath.Join(dir, "missing.yaml"))

		Expect(err).To(HaveOccurred())
	})

	It("should reject an invalid configuration", func() {
		path := writeFile(dir, "device.yaml", "prefetcher: magic\n")

		_, err := loader.Load(path)

		Expect(err).To(MatchError(trafficgen.ErrInvalidConfig))
	})
})
