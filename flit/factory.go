package flit

// New creates a flit with any header and payload.
func New(h Header, data []byte) (Flit, error) {
	f := Flit{Header: h}
	if err := f.SetPayload(data); err != nil {
		return Flit{}, err
	}

	return f, nil
}

func memFlit(op Opcode, addr uint64, length uint16, tag uint16) Flit {
	return Flit{Header: Header{
		Protocol: ProtocolMem,
		Opcode:   op,
		Address:  addr,
		Length:   length,
		Tag:      tag,
	}}
}

func withData(f Flit, data []byte) (Flit, error) {
	if err := f.SetPayload(data); err != nil {
		return Flit{}, err
	}

	f.Length = uint16(len(data))

	return f, nil
}

// NewMemRead creates a MEM_RD request for size bytes.
func NewMemRead(addr uint64, size uint16, tag uint16) Flit {
	return memFlit(MemRd, addr, size, tag)
}

// NewMemReadData creates a MEM_RD_DATA request that carries data.
func NewMemReadData(addr uint64, data []byte, tag uint16) (Flit, error) {
	return withData(memFlit(MemRdData, addr, 0, tag), data)
}

// NewMemWrite creates a MEM_WR request.
func NewMemWrite(addr uint64, data []byte, tag uint16) (Flit, error) {
	return withData(memFlit(MemWr, addr, 0, tag), data)
}

// NewMemWritePartial creates a MEM_WR_PTL request.
func NewMemWritePartial(addr uint64, data []byte, tag uint16) (Flit, error) {
	return withData(memFlit(MemWrPtl, addr, 0, tag), data)
}

// NewMemData creates a MEM_DATA response.
func NewMemData(addr uint64, data []byte, tag uint16) (Flit, error) {
	return withData(memFlit(MemData, addr, 0, tag), data)
}

// NewMemDataNXM creates a response for a non-existent address.
func NewMemDataNXM(addr uint64, tag uint16) Flit {
	return memFlit(MemDataNXM, addr, 0, tag)
}

// NewCompletion creates a CPL without data.
func NewCompletion(tag uint16) Flit {
	return memFlit(Cpl, 0, 0, tag)
}

// NewCompletionWithData creates a CPL_DATA.
func NewCompletionWithData(data []byte, tag uint16) (Flit, error) {
	return withData(memFlit(CplData, 0, 0, tag), data)
}

// NewSnoopData creates a SNP_DATA on CXL.cache.
func NewSnoopData(addr uint64, data []byte, tag uint16) (Flit, error) {
	f := memFlit(SnpData, addr, 0, tag)
	f.Protocol = ProtocolCache

	return withData(f, data)
}

// NewSnoopInvalidate creates a SNP_INV on CXL.cache.
func NewSnoopInvalidate(addr uint64, tag uint16) Flit {
	f := memFlit(SnpInv, addr, 0, tag)
	f.Protocol = ProtocolCache

	return f
}
