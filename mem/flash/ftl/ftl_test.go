package ftl

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/babyworm/MQSim-CXL/mem/flash"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

func smallGeometry() flash.Geometry {
	return flash.Geometry{
		Channels:        1,
		ChipsPerChannel: 1,
		DiesPerChip:     1,
		PlanesPerDie:    1,
		BlocksPerPlane:  16,
		PagesPerBlock:   8,
		PageSize:        4096,
	}
}

func buildSmall(policy GCPolicy, op float64) *FTL {
	g := smallGeometry()
	m := flash.NewTimingModel(g,
		flash.Latencies{Read: 100, Program: 1000, Erase: 10000}, 0)

	f, err := MakeBuilder().
		WithGeometry(g).
		WithTimingModel(m).
		WithOverProvisioning(op).
		WithGCThreshold(0.2).
		WithGCPolicy(policy).
		WithRand(rand.New(rand.NewSource(1))).
		Build()
	Expect(err).ToNot(HaveOccurred())

	return f
}

func expectConsistent(f *FTL) {
	valid := 0

	for i := 0; i < f.NumBlocks(); i++ {
		b := f.Block(i)
		if b.valid != nil {
			Expect(b.valid.count()).To(Equal(b.ValidPages))
		}

		valid += b.ValidPages
	}

	Expect(valid).To(Equal(len(f.l2p)))

	for lpn, ppn := range f.l2p {
		b := f.Block(int(ppn / uint64(f.geometry.PagesPerBlock)))
		page := int(ppn % uint64(f.geometry.PagesPerBlock))

		Expect(b.IsValid(page)).To(BeTrue())
		Expect(b.p2l[page]).To(Equal(lpn))
	}
}

var _ = Describe("FTL", func() {
	It("should expose the over-provisioned capacity", func() {
		f := buildSmall(GCGreedy, 0.25)

		Expect(f.LogicalPages()).To(Equal(uint64(96)))
		Expect(f.LogicalCapacity()).To(Equal(uint64(96 * 4096)))
	})

	It("should reject bad parameters", func() {
		_, err := MakeBuilder().WithOverProvisioning(1).Build()
		Expect(err).To(HaveOccurred())

		_, err = MakeBuilder().WithGCPolicy("LRU").Build()
		Expect(err).To(HaveOccurred())

		_, err = MakeBuilder().WithGCThreshold(-0.1).Build()
		Expect(err).To(HaveOccurred())
	})

	It("should read zeros from unwritten pages", func() {
		f := buildSmall(GCGreedy, 0.25)

		done := f.Read(0, 3)

		Expect(done).To(Equal(timing.VTime(100)))
		Expect(f.ReadData(3, 0, 4)).To(Equal([]byte{0, 0, 0, 0}))
		Expect(f.Stats().UnmappedReads).To(Equal(uint64(1)))
	})

	It("should write out of place", func() {
		f := buildSmall(GCGreedy, 0.25)

		done, err := f.Program(0, 5, 0, []byte{1, 2})
		Expect(err).ToNot(HaveOccurred())
		Expect(done).To(Equal(timing.VTime(1000)))

		first, found := f.Translate(5)
		Expect(found).To(BeTrue())

		_, err = f.Program(done, 5, 1, []byte{9})
		Expect(err).ToNot(HaveOccurred())

		second, _ := f.Translate(5)
		Expect(second).ToNot(Equal(first))
		Expect(f.ReadData(5, 0, 2)).To(Equal([]byte{1, 9}))
		Expect(f.Stats().HostPrograms).To(Equal(uint64(2)))

		expectConsistent(f)
	})

	It("should open the least worn free block", func() {
		f := buildSmall(GCGreedy, 0.25)
		f.Block(0).EraseCount = 3

		_, err := f.Program(0, 0, 0, nil)
		Expect(err).ToNot(HaveOccurred())

		a, _ := f.Translate(0)
		Expect(a.Block).To(Equal(1))
	})

	for _, policy := range []GCPolicy{GCGreedy, GCRGA, GCRandom, GCFIFO} {
		policy := policy

		It("should collect garbage with "+string(policy), func() {
			f := buildSmall(policy, 0.25)
			now := timing.VTime(0)

			for round := 0; round < 10; round++ {
				for lpn := uint64(0); lpn < f.LogicalPages(); lpn++ {
					done, err := f.Program(now, lpn, 0, []byte{byte(round)})
					Expect(err).ToNot(HaveOccurred())
					now = done
				}
			}

			s := f.Stats()
			Expect(s.GCExecutions).To(BeNumerically(">", 0))
			Expect(s.Erases).To(Equal(s.GCExecutions))
			Expect(s.GCTimeNS).To(BeNumerically(">", 0))
			Expect(s.WriteAmplification()).To(BeNumerically(">=", 1))
			Expect(f.ReadData(42, 0, 1)).To(Equal([]byte{9}))
			expectConsistent(f)
		})
	}

	It("should keep erase counts within a bounded spread", func() {
		f := buildSmall(GCGreedy, 0.25)
		now := timing.VTime(0)

		for round := 0; round < 10; round++ {
			for lpn := uint64(0); lpn < f.LogicalPages(); lpn++ {
				now, _ = f.Program(now, lpn, 0, nil)
			}
		}

		lo, hi := f.EraseCountRange()
		Expect(hi).To(BeNumerically(">", 0))
		Expect(hi - lo).To(BeNumerically("<=", 4))
	})

	It("should report when no page can be freed", func() {
		f := buildSmall(GCGreedy, 0)

		for lpn := uint64(0); lpn < 128; lpn++ {
			_, err := f.Program(0, lpn, 0, nil)
			Expect(err).ToNot(HaveOccurred())
		}

		_, err := f.Program(0, 0, 0, nil)

		Expect(err).To(MatchError(ErrNoFreePage))
		Expect(f.Stats().GCStalls).To(Equal(uint64(1)))
		expectConsistent(f)
	})

	It("should reset counters without touching the mapping", func() {
		f := buildSmall(GCGreedy, 0.25)
		_, _ = f.Program(0, 1, 0, nil)

		f.ResetStats()

		Expect(f.Stats()).To(Equal(Stats{}))
		_, found := f.Translate(1)
		Expect(found).To(BeTrue())
	})
})
