package flash_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/babyworm/MQSim-CXL/mem/flash"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

var _ = Describe("Geometry", func() {
	It("should compute the default capacity", func() {
		g := flash.DefaultGeometry()

		Expect(g.Validate()).To(Succeed())
		Expect(g.NumPlanes()).To(Equal(256))
		Expect(g.Capacity()).To(Equal(uint64(256) * 512 * 512 * 16384))
	})

	It("should reject empty dimensions", func() {
		g := flash.DefaultGeometry()
		g.PagesPerBlock = 0

		Expect(g.Validate()).To(MatchError(ContainSubstring("pages per block")))
	})

	It("should stripe over channels first", func() {
		g := flash.DefaultGeometry()

		a0 := g.PlaneAddress(g.StripePlane(0))
		a1 := g.PlaneAddress(g.StripePlane(1))
		a8 := g.PlaneAddress(g.StripePlane(8))
		a64 := g.PlaneAddress(g.StripePlane(64))

		Expect(a0.Channel).To(Equal(0))
		Expect(a1.Channel).To(Equal(1))
		Expect(a8.Channel).To(Equal(0))
		Expect(a8.Chip).To(Equal(1))
		Expect(a64.Plane).To(Equal(1))
		Expect(g.StripePlane(256)).To(Equal(g.StripePlane(0)))
	})

	It("should convert plane indices both ways", func() {
		g := flash.DefaultGeometry()

		for i := 0; i < g.NumPlanes(); i += 7 {
			Expect(g.PlaneIndex(g.PlaneAddress(i))).To(Equal(i))
		}
	})
})

var _ = Describe("Technology", func() {
	It("should give SLC latencies", func() {
		l, err := flash.DefaultLatencies(flash.SLC)

		Expect(err).ToNot(HaveOccurred())
		Expect(l.Read).To(Equal(3 * timing.Microsecond))
		Expect(l.Program).To(Equal(100 * timing.Microsecond))
		Expect(l.Erase).To(Equal(timing.Millisecond))
	})

	It("should apply overrides", func() {
		l, err := flash.Resolve(flash.TLC, flash.Latencies{Read: 10})

		Expect(err).ToNot(HaveOccurred())
		Expect(l.Read).To(Equal(timing.VTime(10)))
		Expect(l.Program).To(Equal(1000 * timing.Microsecond))
	})

	It("should reject unknown technologies", func() {
		_, err := flash.DefaultLatencies("QLC")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("TimingModel", func() {
	var (
		g flash.Geometry
		m *flash.TimingModel
	)

	BeforeEach(func() {
		g = flash.DefaultGeometry()
		m = flash.NewTimingModel(g,
			flash.Latencies{Read: 100, Program: 1000, Erase: 5000}, 10)
	})

	It("should serialize operations on the same die", func() {
		a := flash.PhysicalAddress{Channel: 1}

		Expect(m.Read(a, 0)).To(Equal(timing.VTime(110)))
		Expect(m.Read(a, 0)).To(Equal(timing.VTime(210)))
	})

	It("should overlap operations on different channels", func() {
		Expect(m.Read(flash.PhysicalAddress{Channel: 0}, 0)).
			To(Equal(timing.VTime(110)))
		Expect(m.Read(flash.PhysicalAddress{Channel: 1}, 0)).
			To(Equal(timing.VTime(110)))
	})

	It("should charge transfer before program", func() {
		a := flash.PhysicalAddress{Channel: 2}

		Expect(m.Program(a, 50)).To(Equal(timing.VTime(1060)))
		Expect(m.Erase(a, 0)).To(Equal(timing.VTime(6060)))
		Expect(m.DieFreeAt(a)).To(Equal(timing.VTime(6060)))
	})

	It("should reset", func() {
		a := flash.PhysicalAddress{}
		m.Erase(a, 0)
		m.Reset()

		Expect(m.DieFreeAt(a)).To(Equal(timing.VTime(0)))
	})
})
