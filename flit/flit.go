// Package flit encodes and decodes 256-byte CXL flits.
//
// A flit is a 16-byte header followed by 240 bytes of payload. Multi-byte
// header fields are little-endian:
//
//	byte  0      protocol id
//	byte  1      opcode
//	bytes 2-3    tag
//	bytes 4-11   address
//	bytes 12-13  length
//	byte  14     cache id
//	byte  15     flags
//	bytes 16-255 payload
package flit

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Sizes of a flit and its parts, in bytes.
const (
	Size        = 256
	HeaderSize  = 16
	PayloadSize = Size - HeaderSize
)

// ErrPayloadTooLarge is returned when data does not fit in one flit.
var ErrPayloadTooLarge = errors.New("payload exceeds flit capacity")

// ErrShortBuffer is returned when decoding fewer than Size bytes.
var ErrShortBuffer = errors.New("buffer shorter than a flit")

// Protocol identifies the CXL sub-protocol of a flit.
type Protocol uint8

// CXL sub-protocols.
const (
	ProtocolIO    Protocol = 0x0
	ProtocolCache Protocol = 0x1
	ProtocolMem   Protocol = 0x2
)

func (p Protocol) String() string {
	switch p {
	case ProtocolIO:
		return "CXL.io"
	case ProtocolCache:
		return "CXL.cache"
	case ProtocolMem:
		return "CXL.mem"
	default:
		return "Unknown"
	}
}

// Opcode is the operation carried by a flit.
type Opcode uint8

// Opcodes.
const (
	MemRd      Opcode = 0x00
	MemRdData  Opcode = 0x01
	MemWr      Opcode = 0x10
	MemWrPtl   Opcode = 0x11
	MemData    Opcode = 0x20
	MemDataNXM Opcode = 0x21
	Cpl        Opcode = 0x30
	CplData    Opcode = 0x31
	SnpData    Opcode = 0x40
	SnpInv     Opcode = 0x41
	Reserved   Opcode = 0xFF
)

var opcodeNames = map[Opcode]string{
	MemRd:      "MEM_RD",
	MemRdData:  "MEM_RD_DATA",
	MemWr:      "MEM_WR",
	MemWrPtl:   "MEM_WR_PTL",
	MemData:    "MEM_DATA",
	MemDataNXM: "MEM_DATA_NXM",
	Cpl:        "CPL",
	CplData:    "CPL_DATA",
	SnpData:    "SNP_DATA",
	SnpInv:     "SNP_INV",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}

	return "RESERVED"
}

// ParseOpcode returns the opcode with the given name.
func ParseOpcode(name string) (Opcode, error) {
	for o, n := range opcodeNames {
		if n == name {
			return o, nil
		}
	}

	return Reserved, fmt.Errorf("unknown opcode %q", name)
}

// Flags.
const (
	// FlagPrefetch marks traffic issued by the device prefetcher.
	FlagPrefetch uint8 = 0x01
)

// Header is the first 16 bytes of a flit.
type Header struct {
	Protocol Protocol
	Opcode   Opcode
	Tag      uint16
	Address  uint64
	Length   uint16
	CacheID  uint8
	Flags    uint8
}

// A Flit is one 256-byte transfer unit.
type Flit struct {
	Header
	Payload [PayloadSize]byte
}

// Data returns the payload bytes covered by the length field.
func (f *Flit) Data() []byte {
	n := int(f.Length)
	if n > PayloadSize {
		n = PayloadSize
	}

	out := make([]byte, n)
	copy(out, f.Payload[:n])

	return out
}

// SetPayload copies data into the payload.
func (f *Flit) SetPayload(data []byte) error {
	if len(data) > PayloadSize {
		return fmt.Errorf("%w: %d > %d bytes",
			ErrPayloadTooLarge, len(data), PayloadSize)
	}

	f.Payload = [PayloadSize]byte{}
	copy(f.Payload[:], data)

	return nil
}

// Encode writes the flit into its wire form.
func (f *Flit) Encode() [Size]byte {
	var b [Size]byte

	b[0] = byte(f.Protocol)
	b[1] = byte(f.Opcode)
	binary.LittleEndian.PutUint16(b[2:4], f.Tag)
	binary.LittleEndian.PutUint64(b[4:12], f.Address)
	binary.LittleEndian.PutUint16(b[12:14], f.Length)
	b[14] = f.CacheID
	b[15] = f.Flags
	copy(b[HeaderSize:], f.Payload[:])

	return b
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (f *Flit) MarshalBinary() ([]byte, error) {
	b := f.Encode()
	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Flit) UnmarshalBinary(b []byte) error {
	if len(b) < Size {
		return fmt.Errorf("%w: got %d bytes", ErrShortBuffer, len(b))
	}

	f.Protocol = Protocol(b[0])
	f.Opcode = Opcode(b[1])
	f.Tag = binary.LittleEndian.Uint16(b[2:4])
	f.Address = binary.LittleEndian.Uint64(b[4:12])
	f.Length = binary.LittleEndian.Uint16(b[12:14])
	f.CacheID = b[14]
	f.Flags = b[15]
	copy(f.Payload[:], b[HeaderSize:Size])

	return nil
}

// Decode parses the wire form of a flit.
func Decode(b []byte) (Flit, error) {
	var f Flit
	err := f.UnmarshalBinary(b)

	return f, err
}
