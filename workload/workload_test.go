package workload_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/babyworm/MQSim-CXL/mem/prefetch"
	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/trafficgen"
	"github.com/babyworm/MQSim-CXL/workload"
)

func spec(p workload.Pattern) workload.Spec {
	s := workload.DefaultSpec()
	s.Pattern = p
	s.Count = 64
	s.Range = 1 << 20

	return s
}

var _ = Describe("Generate", func() {
	It("should reject unknown patterns", func() {
		_, err := workload.Generate(spec("zigzag"))

		Expect(err).To(MatchError(workload.ErrInvalidSpec))
	})

	It("should reject a range smaller than a request", func() {
		s := spec(workload.Random)
		s.Range = 64

		_, err := workload.Generate(s)

		Expect(err).To(MatchError(workload.ErrInvalidSpec))
	})

	It("should accept lower case pattern names", func() {
		ops, err := workload.Generate(spec("sequential"))

		Expect(err).ToNot(HaveOccurred())
		Expect(ops).To(HaveLen(64))
	})

	It("should produce consecutive addresses for sequential reads", func() {
		s := spec(workload.Sequential)
		s.BaseAddress = 0x100000

		ops, err := workload.Generate(s)
		Expect(err).ToNot(HaveOccurred())

		for i, op := range ops {
			Expect(op.Kind).To(Equal(trafficgen.Read))
			Expect(op.Address).To(Equal(0x100000 + uint64(i)*4096))
			Expect(op.IssueTime).To(Equal(timing.VTime(i) * 100))
		}
	})

	It("should wrap sequential addresses inside the range", func() {
		s := spec(workload.Sequential)
		s.Count = 300

		ops, err := workload.Generate(s)
		Expect(err).ToNot(HaveOccurred())

		for _, op := range ops {
			Expect(op.Address + uint64(op.Size)).To(
				BeNumerically("<=", s.Range))
		}
	})

	DescribeTable("should stay inside the range",
		func(p workload.Pattern) {
			s := spec(p)
			s.BaseAddress = 1 << 20
			s.RequestSize = 64

			ops, err := workload.Generate(s)
			Expect(err).ToNot(HaveOccurred())
			Expect(ops).ToNot(BeEmpty())

			for _, op := range ops {
				Expect(op.Address).To(BeNumerically(">=", s.BaseAddress))
				Expect(op.Address + uint64(op.Size)).To(
					BeNumerically("<=", s.BaseAddress+s.Range))
				Expect(op.Address % 64).To(BeZero())

				if op.Kind == trafficgen.Write {
					Expect(op.Data).To(HaveLen(64))
				}
			}
		},
		Entry("sequential", workload.Sequential),
		Entry("random", workload.Random),
		Entry("write back", workload.WriteBack),
		Entry("read modify write", workload.ReadModifyWrite),
		Entry("mixed", workload.Mixed),
		Entry("burst", workload.Burst),
		Entry("hotspot", workload.Hotspot),
	)

	It("should be deterministic for a seed", func() {
		a, err := workload.Generate(spec(workload.Mixed))
		Expect(err).ToNot(HaveOccurred())
		b, err := workload.Generate(spec(workload.Mixed))
		Expect(err).ToNot(HaveOccurred())

		Expect(a).To(Equal(b))
	})

	It("should pair reads and dependent writes", func() {
		ops, err := workload.Generate(spec(workload.ReadModifyWrite))
		Expect(err).ToNot(HaveOccurred())

		Expect(ops).To(HaveLen(128))
		for i := 0; i < len(ops); i += 2 {
			Expect(ops[i].Kind).To(Equal(trafficgen.Read))
			Expect(ops[i+1].Kind).To(Equal(trafficgen.Write))
			Expect(ops[i+1].Address).To(Equal(ops[i].Address))
			Expect(ops[i+1].AfterPrevious).To(BeTrue())
		}
	})

	It("should respect the read ratio", func() {
		s := spec(workload.Mixed)
		s.Count = 2000
		s.ReadRatio = 0.8

		ops, err := workload.Generate(s)
		Expect(err).ToNot(HaveOccurred())

		reads := 0
		for _, op := range ops {
			if op.Kind == trafficgen.Read {
				reads++
			}
		}

		Expect(reads).To(BeNumerically("~", 1600, 100))
	})

	It("should issue bursts at the same time", func() {
		s := spec(workload.Burst)
		s.BurstSize = 8
		s.BurstGapNS = 5000

		ops, err := workload.Generate(s)
		Expect(err).ToNot(HaveOccurred())

		for i, op := range ops {
			Expect(op.IssueTime).To(Equal(timing.VTime(i/8) * 5000))
		}
	})

	It("should concentrate hotspot accesses", func() {
		s := spec(workload.Hotspot)
		s.Count = 1000

		ops, err := workload.Generate(s)
		Expect(err).ToNot(HaveOccurred())

		counts := make(map[uint64]int)
		for _, op := range ops {
			counts[op.Address]++
		}

		Expect(counts[s.BaseAddress]).To(BeNumerically(">", 100))
	})
})

var _ = Describe("Runner", func() {
	var (
		g    *trafficgen.TrafficGenerator
		done []trafficgen.Completion
	)

	BeforeEach(func() {
		c := trafficgen.DefaultConfig()
		c.Prefetcher = prefetch.KindNone

		var err error
		g, err = trafficgen.MakeBuilder().WithConfig(c).Build()
		Expect(err).ToNot(HaveOccurred())

		done = nil
	})

	newRunner := func() *workload.Runner {
		r := workload.NewRunner(g)
		r.OnComplete = func(c trafficgen.Completion) {
			done = append(done, c)
		}

		return r
	}

	It("should run a workload to the end", func() {
		ops, err := workload.Generate(spec(workload.Sequential))
		Expect(err).ToNot(HaveOccurred())

		submitted := 0
		r := newRunner()
		r.OnSubmit = func(workload.Op) { submitted++ }

		res, err := r.Run(ops)

		Expect(err).ToNot(HaveOccurred())
		Expect(res.Finished).To(BeTrue())
		Expect(res.Submitted).To(Equal(64))
		Expect(submitted).To(Equal(64))
		Expect(res.Completed).To(Equal(64))
		Expect(done).To(HaveLen(64))
		Expect(g.HasPendingRequests()).To(BeFalse())

		for i, c := range done {
			Expect(c.SubmitTime).To(Equal(ops[i].IssueTime))
		}
	})

	It("should issue dependent writes after their reads", func() {
		ops, err := workload.Generate(spec(workload.ReadModifyWrite))
		Expect(err).ToNot(HaveOccurred())

		res, err := newRunner().Run(ops)

		Expect(err).ToNot(HaveOccurred())
		Expect(res.Finished).To(BeTrue())

		completeTimes := make(map[trafficgen.RequestID]timing.VTime)
		for _, c := range done {
			completeTimes[c.ID] = c.CompleteTime
		}

		for _, c := range done {
			if c.Kind == trafficgen.Write {
				Expect(c.SubmitTime).To(BeNumerically(">=",
					completeTimes[c.ID-1]))
			}
		}
	})

	It("should stop at the time limit", func() {
		ops, err := workload.Generate(spec(workload.Sequential))
		Expect(err).ToNot(HaveOccurred())

		r := newRunner()
		r.MaxTime = 1000

		res, err := r.Run(ops)

		Expect(err).ToNot(HaveOccurred())
		Expect(res.Finished).To(BeFalse())
		Expect(res.Submitted).To(Equal(11))
		Expect(res.EndTime).To(Equal(timing.VTime(1000)))
	})

	It("should wrap time steps", func() {
		ops, err := workload.Generate(spec(workload.Random))
		Expect(err).ToNot(HaveOccurred())

		steps := 0
		r := newRunner()
		r.Step = func(f func()) {
			steps++
			f()
		}

		_, err = r.Run(ops)

		Expect(err).ToNot(HaveOccurred())
		Expect(steps).To(BeNumerically(">=", len(ops)))
	})

	It("should report submission errors", func() {
		ops := []workload.Op{{
			Kind:    trafficgen.Read,
			Address: g.Capacity(),
			Size:    64,
		}}

		res, err := newRunner().Run(ops)

		Expect(err).To(MatchError(trafficgen.ErrOutOfRange))
		Expect(res.Submitted).To(Equal(0))
	})
})
