package flit_test

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/babyworm/MQSim-CXL/flit"
)

func sampleData(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(0x78 + i*13)
	}

	return b
}

var _ = Describe("Flit", func() {
	It("should lay out the header little-endian", func() {
		f := flit.NewMemRead(0x0102030405060708, 4096, 0x100)
		raw := f.Encode()

		Expect(raw).To(HaveLen(flit.Size))
		Expect(raw[0]).To(Equal(byte(0x2)))
		Expect(raw[1]).To(Equal(byte(0x00)))
		Expect(raw[2:4]).To(Equal([]byte{0x00, 0x01}))
		Expect(raw[4:12]).To(Equal(
			[]byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}))
		Expect(raw[12:14]).To(Equal([]byte{0x00, 0x10}))
	})

	It("should round trip a memory write", func() {
		for _, n := range []int{0, 1, 64, 239, 240} {
			data := sampleData(n)

			f, err := flit.NewMemWrite(0x2000, data, 0x42)
			Expect(err).ToNot(HaveOccurred())

			f.CacheID = 3
			f.Flags = flit.FlagPrefetch

			raw, err := f.MarshalBinary()
			Expect(err).ToNot(HaveOccurred())

			decoded, err := flit.Decode(raw)
			Expect(err).ToNot(HaveOccurred())
			Expect(decoded.Header).To(Equal(f.Header))
			Expect(decoded.Opcode).To(Equal(flit.MemWr))
			Expect(decoded.Length).To(Equal(uint16(n)))
			Expect(decoded.Data()).To(Equal(data))
		}
	})

	It("should reject oversized payloads", func() {
		_, err := flit.NewMemWrite(0, sampleData(241), 0)
		Expect(err).To(MatchError(flit.ErrPayloadTooLarge))
	})

	It("should reject short buffers", func() {
		_, err := flit.Decode(make([]byte, 100))
		Expect(err).To(MatchError(flit.ErrShortBuffer))
	})

	It("should put snoops on CXL.cache", func() {
		f := flit.NewSnoopInvalidate(0x40, 7)
		Expect(f.Protocol).To(Equal(flit.ProtocolCache))
		Expect(f.Protocol.String()).To(Equal("CXL.cache"))

		d, err := flit.NewSnoopData(0x40, []byte{1}, 7)
		Expect(err).ToNot(HaveOccurred())
		Expect(d.Protocol).To(Equal(flit.ProtocolCache))
	})

	It("should name opcodes", func() {
		Expect(flit.MemDataNXM.String()).To(Equal("MEM_DATA_NXM"))
		Expect(flit.Opcode(0x99).String()).To(Equal("RESERVED"))

		op, err := flit.ParseOpcode("CPL_DATA")
		Expect(err).ToNot(HaveOccurred())
		Expect(op).To(Equal(flit.CplData))

		_, err = flit.ParseOpcode("NOP")
		Expect(err).To(HaveOccurred())
	})

	It("should dump the header and bytes", func() {
		f := flit.NewCompletion(0x100)

		var buf bytes.Buffer
		f.Dump(&buf, "CPL")

		Expect(buf.String()).To(ContainSubstring("Opcode:      0x30 (CPL)"))
		Expect(buf.String()).To(ContainSubstring("00f0: "))
		Expect(f.String()).To(ContainSubstring("CXL.mem CPL"))
	})
})
