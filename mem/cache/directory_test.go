package cache

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Directory", func() {
	var (
		d *Directory
	)

	BeforeEach(func() {
		d = NewDirectory(4, 4, 64, NewLRUVictimFinder())
	})

	It("should map lines to sets by modulo", func() {
		_, setID := d.GetSet(0x40 * 5)
		Expect(setID).To(Equal(1))
		Expect(d.TotalSize()).To(Equal(uint64(4 * 4 * 64)))
	})

	It("should miss on an empty directory", func() {
		_, found := d.Lookup(0x100)
		Expect(found).To(BeFalse())
	})

	It("should prefer empty ways", func() {
		block, found := d.FindVictim(0x0, DemandFill)
		Expect(found).To(BeTrue())
		Expect(block.IsValid).To(BeFalse())
		Expect(block.WayID).To(Equal(0))
	})

	It("should install and look up a line", func() {
		block, _ := d.FindVictim(0x104, DemandFill)
		d.Install(block, 0x104, []byte{1, 2, 3}, false, DemandFill)

		found, hit := d.Lookup(0x13f)
		Expect(hit).To(BeTrue())
		Expect(found).To(BeIdenticalTo(block))
		Expect(d.ReadData(found, 1, 2)).To(Equal([]byte{2, 3}))
		Expect(d.NumValid()).To(Equal(1))
	})

	It("should read zeros from a line without data", func() {
		block, _ := d.FindVictim(0x0, DemandFill)
		d.Install(block, 0x0, nil, false, DemandFill)

		Expect(d.ReadData(block, 0, 4)).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should mark written lines dirty", func() {
		block, _ := d.FindVictim(0x0, DemandFill)
		d.Install(block, 0x0, nil, false, DemandFill)

		d.WriteData(block, 8, []byte{9})

		Expect(block.IsDirty).To(BeTrue())
		Expect(d.ReadData(block, 8, 1)).To(Equal([]byte{9}))
	})

	It("should evict the least recently used line of a full set", func() {
		setStride := uint64(4 * 64)
		for i := uint64(0); i < 4; i++ {
			block, _ := d.FindVictim(i*setStride, DemandFill)
			d.Install(block, i*setStride, nil, false, DemandFill)
		}

		first, _ := d.Lookup(0)
		d.Visit(first)

		victim, found := d.FindVictim(4*setStride, DemandFill)
		Expect(found).To(BeTrue())
		Expect(victim.Tag).To(Equal(d.LineAddr(setStride)))
	})

	It("should hand back dirty data on eviction", func() {
		block, _ := d.FindVictim(0x0, DemandFill)
		d.Install(block, 0x0, nil, false, DemandFill)
		d.WriteData(block, 0, []byte{7})

		eviction, evicted := d.Evict(block)

		Expect(evicted).To(BeTrue())
		Expect(eviction.Dirty).To(BeTrue())
		Expect(eviction.Data[0]).To(Equal(byte(7)))
		Expect(block.IsValid).To(BeFalse())
	})

	It("should flag unused prefetched lines on eviction", func() {
		block, _ := d.FindVictim(0x0, PrefetchFill)
		d.Install(block, 0x0, nil, false, PrefetchFill)

		eviction, _ := d.Evict(block)

		Expect(eviction.UnusedPrefetch).To(BeTrue())
	})

	It("should never pick a locked way", func() {
		for i := uint64(0); i < 4; i++ {
			addr := i * 4 * 64
			block, _ := d.FindVictim(addr, DemandFill)
			d.Reserve(block, addr, DemandFill)
		}

		_, found := d.FindVictim(16*64, DemandFill)
		Expect(found).To(BeFalse())
	})

	It("should panic when evicting a locked way", func() {
		block, _ := d.FindVictim(0x0, DemandFill)
		d.Reserve(block, 0x0, DemandFill)

		Expect(func() { d.Evict(block) }).To(Panic())
	})

	It("should unlock after the last pending fill", func() {
		block, _ := d.FindVictim(0x0, DemandFill)
		d.Reserve(block, 0x0, DemandFill)
		d.AddPendingFill(block)

		reserved, found := d.FindReserved(0x10)
		Expect(found).To(BeTrue())
		Expect(reserved).To(BeIdenticalTo(block))

		d.CompleteFill(block, []byte{5})
		Expect(block.IsValid).To(BeTrue())
		Expect(block.IsLocked).To(BeTrue())

		d.CompleteFill(block, []byte{6})
		Expect(block.IsLocked).To(BeFalse())
		Expect(block.Data[0]).To(Equal(byte(5)))
	})

	It("should keep the content of a refilled line", func() {
		block, _ := d.FindVictim(0x0, DemandFill)
		d.Install(block, 0x0, []byte{7}, true, DemandFill)

		d.Refill(block)
		Expect(block.IsLocked).To(BeTrue())
		Expect(func() { d.Evict(block) }).To(Panic())

		d.CompleteFill(block, []byte{8})
		Expect(block.IsLocked).To(BeFalse())
		Expect(block.IsDirty).To(BeTrue())
		Expect(block.Data[0]).To(Equal(byte(7)))
	})

	It("should panic when refilling a line that is not cached", func() {
		block, _ := d.FindVictim(0x0, DemandFill)

		Expect(func() { d.Refill(block) }).To(Panic())
	})

	It("should invalidate a line", func() {
		block, _ := d.FindVictim(0x0, DemandFill)
		d.Install(block, 0x0, nil, false, DemandFill)

		_, evicted := d.Invalidate(0x0)
		Expect(evicted).To(BeTrue())

		_, found := d.Lookup(0x0)
		Expect(found).To(BeFalse())

		_, evicted = d.Invalidate(0x0)
		Expect(evicted).To(BeFalse())
	})

	Context("when mix mode is off", func() {
		BeforeEach(func() {
			d = NewDirectory(1, 8, 64, NewLRUVictimFinder())
			d.MixMode = false
		})

		It("should keep prefetched lines in the last quarter of ways", func() {
			block, _ := d.FindVictim(0x0, PrefetchFill)
			Expect(block.WayID).To(Equal(6))

			block, _ = d.FindVictim(0x0, DemandFill)
			Expect(block.WayID).To(Equal(0))
		})

		It("should not let prefetches evict demand lines", func() {
			for i := uint64(0); i < 2; i++ {
				block, _ := d.FindVictim(i*64, PrefetchFill)
				d.Install(block, i*64, nil, false, PrefetchFill)
			}

			victim, found := d.FindVictim(2*64, PrefetchFill)
			Expect(found).To(BeTrue())
			Expect(victim.WayID).To(BeNumerically(">=", 6))
			Expect(victim.IsValid).To(BeTrue())
		})
	})
})
