package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/babyworm/MQSim-CXL/config"
	"github.com/babyworm/MQSim-CXL/flit"
	"github.com/babyworm/MQSim-CXL/trafficgen"
)

type flitOptions struct {
	opcode  string
	address uint64
	size    uint16
	tag     uint16
	fill    uint8
	send    bool
}

var flitOpts flitOptions

var flitCmd = &cobra.Command{
	Use:   "flit",
	Short: "Encode a CXL flit and optionally send it to the device.",
	Long: "`flit --op MEM_WR --addr 0x1000 --size 64 --send` prints the " +
		"write flit, sends it to a fresh device and prints the response.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := buildFlit(flitOpts)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		f.Dump(out, "Request")

		if !flitOpts.send {
			return nil
		}

		c, err := config.Load(configPath)
		if err != nil {
			return err
		}

		return sendFlit(c, f, out)
	},
}

func init() {
	rootCmd.AddCommand(flitCmd)

	f := flitCmd.Flags()
	f.StringVar(&flitOpts.opcode, "op", "MEM_RD", "opcode name")
	f.Uint64Var(&flitOpts.address, "addr", 0, "target address")
	f.Uint16Var(&flitOpts.size, "size", 64, "bytes to read or write")
	f.Uint16Var(&flitOpts.tag, "tag", 0, "transaction tag")
	f.Uint8Var(&flitOpts.fill, "fill", 0xA5, "first byte of the write payload")
	f.BoolVar(&flitOpts.send, "send", false, "send the flit to a device")
}

func payload(opts flitOptions) []byte {
	data := make([]byte, min(int(opts.size), flit.PayloadSize))
	for i := range data {
		data[i] = opts.fill + byte(i)
	}

	return data
}

func buildFlit(opts flitOptions) (flit.Flit, error) {
	op, err := flit.ParseOpcode(opts.opcode)
	if err != nil {
		return flit.Flit{}, err
	}

	switch op {
	case flit.MemRd:
		return flit.NewMemRead(opts.address, opts.size, opts.tag), nil
	case flit.MemRdData:
		return flit.NewMemReadData(opts.address, payload(opts), opts.tag)
	case flit.MemWr:
		return flit.NewMemWrite(opts.address, payload(opts), opts.tag)
	case flit.MemWrPtl:
		return flit.NewMemWritePartial(opts.address, payload(opts), opts.tag)
	case flit.SnpInv:
		return flit.NewSnoopInvalidate(opts.address, opts.tag), nil
	default:
		return flit.Flit{}, fmt.Errorf("cannot build a %s request", op)
	}
}

func sendFlit(c trafficgen.Config, f flit.Flit, out io.Writer) error {
	g, err := trafficgen.MakeBuilder().WithConfig(c).Build()
	if err != nil {
		return err
	}
	defer g.Close()

	var responses []flit.Flit

	_, err = g.SubmitFlit(f, func(resp flit.Flit, _ trafficgen.Completion) {
		responses = append(responses, resp)
	})
	if err != nil {
		fmt.Fprintf(out, "Request rejected: %v\n", err)
	}

	// Snoop and NXM answers are events that no pending request waits for.
	if err := g.Engine().Run(); err != nil {
		return err
	}

	for _, resp := range responses {
		resp.Dump(out, fmt.Sprintf("Response at %d ns", g.CurrentTimeNS()))
	}

	return nil
}
