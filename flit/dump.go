package flit

import (
	"fmt"
	"io"
	"strings"
)

// HexString renders the wire form, bytesPerLine bytes per row, each row
// prefixed with its offset.
func (f *Flit) HexString(bytesPerLine int) string {
	if bytesPerLine <= 0 {
		bytesPerLine = 16
	}

	raw := f.Encode()

	var sb strings.Builder

	for i, b := range raw {
		if i%bytesPerLine == 0 {
			fmt.Fprintf(&sb, "\n  %04x: ", i)
		}

		fmt.Fprintf(&sb, "%02x ", b)
	}

	return sb.String()
}

// DumpHeader prints the decoded header fields.
func (f *Flit) DumpHeader(w io.Writer) {
	fmt.Fprintf(w, "\n--- CXL Flit Header ---\n")
	fmt.Fprintf(w, "  Protocol ID: 0x%x (%s)\n", uint8(f.Protocol), f.Protocol)
	fmt.Fprintf(w, "  Opcode:      0x%x (%s)\n", uint8(f.Opcode), f.Opcode)
	fmt.Fprintf(w, "  Tag:         0x%x\n", f.Tag)
	fmt.Fprintf(w, "  Address:     0x%016x\n", f.Address)
	fmt.Fprintf(w, "  Length:      %d bytes\n", f.Length)
	fmt.Fprintf(w, "  Cache ID:    %d\n", f.CacheID)
	fmt.Fprintf(w, "  Flags:       0x%x\n", f.Flags)
}

// Dump prints the header and the hex form of the flit.
func (f *Flit) Dump(w io.Writer, title string) {
	f.DumpHeader(w)
	fmt.Fprintf(w, "\n=== %s (%d bytes) ===%s\n", title, Size, f.HexString(16))
}

func (f Flit) String() string {
	return fmt.Sprintf("%s %s tag=0x%x addr=0x%x len=%d",
		f.Protocol, f.Opcode, f.Tag, f.Address, f.Length)
}
