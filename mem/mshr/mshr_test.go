package mshr_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/babyworm/MQSim-CXL/mem/mshr"
)

var _ = Describe("MSHR", func() {
	var (
		m *mshr.MSHR
	)

	BeforeEach(func() {
		m = mshr.NewMSHR(4)
	})

	It("should add an entry", func() {
		_, err := m.Add(0x10)
		Expect(err).ToNot(HaveOccurred())

		_, found := m.Query(0x10)
		Expect(found).To(BeTrue())

		m.Complete(0x10)
		_, found = m.Query(0x10)
		Expect(found).To(BeFalse())
	})

	It("should panic if adding a line that is already in MSHR", func() {
		_, _ = m.Add(0x10)

		Expect(func() { _, _ = m.Add(0x10) }).To(Panic())
	})

	It("should error if adding to a full MSHR", func() {
		for i := uint64(0); i < 3; i++ {
			_, _ = m.Add(i)
		}

		Expect(m.IsFull()).To(BeFalse())

		_, _ = m.Add(3)

		Expect(m.IsFull()).To(BeTrue())

		_, err := m.Add(4)
		Expect(err).To(MatchError("trying to add to a full MSHR"))
	})

	It("should merge onto an in-flight line", func() {
		first, isNew, err := m.LookupOrAllocate(0x20)
		Expect(err).ToNot(HaveOccurred())
		Expect(isNew).To(BeTrue())

		second, isNew, err := m.LookupOrAllocate(0x20)
		Expect(err).ToNot(HaveOccurred())
		Expect(isNew).To(BeFalse())
		Expect(second).To(BeIdenticalTo(first))
		Expect(m.Len()).To(Equal(1))
	})

	It("should release all merged requests on completion", func() {
		_, _ = m.Add(0x20)
		m.AddRequest(0x20, "a")
		m.AddRequest(0x20, "b")

		e := m.Complete(0x20)

		Expect(e.Requests).To(Equal([]interface{}{"a", "b"}))
		Expect(m.Len()).To(Equal(0))
	})

	It("should keep allocation order", func() {
		_, _ = m.Add(3)
		_, _ = m.Add(1)
		_, _ = m.Add(2)
		m.Complete(1)

		entries := m.Entries()
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].LineAddr).To(Equal(uint64(3)))
		Expect(entries[1].LineAddr).To(Equal(uint64(2)))
	})

	It("should panic when completing an unknown line", func() {
		Expect(func() { m.Complete(0x99) }).To(Panic())
	})

	It("should reset", func() {
		_, _ = m.Add(1)
		m.Reset()
		Expect(m.Len()).To(Equal(0))
	})
})
