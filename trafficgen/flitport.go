package trafficgen

import (
	"fmt"
	"log"

	"github.com/babyworm/MQSim-CXL/flit"
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// Responder receives the response flit of a request submitted as a flit.
type Responder func(resp flit.Flit, c Completion)

// SubmitFlit turns a CXL.mem request flit into a request. Reads are answered
// with MEM_DATA, writes and snoop invalidations with CPL. A request outside
// the device, or longer than the payload of one flit, is answered with
// MEM_DATA_NXM at the current time, and ErrOutOfRange is returned.
func (g *TrafficGenerator) SubmitFlit(
	f flit.Flit,
	respond Responder,
) (RequestID, error) {
	if g.closed {
		return 0, ErrGeneratorClosed
	}

	tag := f.Tag

	switch f.Opcode {
	case flit.MemRd, flit.MemRdData:
		if err := g.checkFlit(f); err != nil {
			g.respondNXM(f, respond)
			return 0, err
		}

		return g.SubmitRead(f.Address, uint32(f.Length),
			func(c Completion) {
				resp, err := flit.NewMemData(c.Address, c.Data, tag)
				if err != nil {
					log.Panic(err)
				}

				respond(resp, c)
			})

	case flit.MemWr, flit.MemWrPtl:
		if err := g.checkFlit(f); err != nil {
			g.respondNXM(f, respond)
			return 0, err
		}

		return g.SubmitWrite(f.Address, uint32(f.Length), f.Data(),
			func(c Completion) {
				respond(flit.NewCompletion(tag), c)
			})

	case flit.SnpInv:
		if _, err := g.Invalidate(f.Address); err != nil {
			g.respondNXM(f, respond)
			return 0, err
		}

		now := g.engine.Now()
		done := now + g.hitLatency
		g.schedule(done, func(t timing.VTime) {
			respond(flit.NewCompletion(tag), Completion{
				Address:      f.Address,
				SubmitTime:   now,
				CompleteTime: t,
				LatencyNS:    t - now,
			})
		})

		return 0, nil

	default:
		return 0, fmt.Errorf("opcode %s cannot be served by the device",
			f.Opcode)
	}
}

func (g *TrafficGenerator) checkFlit(f flit.Flit) error {
	if f.Length > flit.PayloadSize {
		return fmt.Errorf("%w: %d bytes do not fit the %d-byte flit payload",
			ErrOutOfRange, f.Length, flit.PayloadSize)
	}

	return g.checkRange(f.Address, uint32(f.Length))
}

func (g *TrafficGenerator) respondNXM(f flit.Flit, respond Responder) {
	now := g.engine.Now()
	addr, tag := f.Address, f.Tag

	g.schedule(now, func(t timing.VTime) {
		respond(flit.NewMemDataNXM(addr, tag), Completion{
			Address:      addr,
			SubmitTime:   now,
			CompleteTime: t,
		})
	})
}
