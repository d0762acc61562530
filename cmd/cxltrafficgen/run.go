package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/babyworm/MQSim-CXL/config"
	"github.com/babyworm/MQSim-CXL/datarecording"
	"github.com/babyworm/MQSim-CXL/monitoring"
	"github.com/babyworm/MQSim-CXL/sim/timing"
	"github.com/babyworm/MQSim-CXL/tracing"
	"github.com/babyworm/MQSim-CXL/trafficgen"
	"github.com/babyworm/MQSim-CXL/workload"
)

type runOptions struct {
	workload workload.Spec
	maxTime  timing.VTime
	verbose  bool

	reportPath string

	tracePath  string
	traceStart timing.VTime
	traceEnd   timing.VTime

	monitor     bool
	monitorPort int
	openMonitor bool
}

var runOpts = runOptions{workload: workload.DefaultSpec()}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a synthetic workload and print a YAML report.",
	Long: "`run --pattern RANDOM --count 10000` runs ten thousand random " +
		"reads on the device described by --config.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if runOpts.reportPath != "" && runOpts.reportPath != "-" {
			f, err := os.Create(runOpts.reportPath)
			if err != nil {
				return err
			}
			defer f.Close()

			out = f
		}

		return runSimulation(c, runOpts, out)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	w := &runOpts.workload

	f.StringVar((*string)(&w.Pattern), "pattern", string(w.Pattern),
		"access pattern: SEQUENTIAL, RANDOM, WRITE_BACK, "+
			"READ_MODIFY_WRITE, MIXED, BURST or HOTSPOT")
	f.IntVar(&w.Count, "count", w.Count, "number of requests")
	f.Uint64Var(&w.BaseAddress, "base", w.BaseAddress, "first address")
	f.Uint64Var(&w.Range, "range", w.Range, "bytes the workload may touch")
	f.Uint32Var(&w.RequestSize, "size", w.RequestSize, "bytes per request")
	f.Uint64Var(&w.Stride, "stride", w.Stride,
		"distance between sequential requests, 0 for the request size")
	f.Uint64Var((*uint64)(&w.InterArrivalNS), "interval",
		uint64(w.InterArrivalNS), "ns between requests")
	f.Float64Var(&w.ReadRatio, "read-ratio", w.ReadRatio,
		"share of reads in the MIXED pattern")
	f.IntVar(&w.BurstSize, "burst", w.BurstSize, "requests per burst")
	f.Uint64Var((*uint64)(&w.BurstGapNS), "burst-gap",
		uint64(w.BurstGapNS), "ns between bursts")
	f.Float64Var(&w.ZipfS, "zipf", w.ZipfS, "skew of the HOTSPOT pattern")
	f.Int64Var(&w.Seed, "seed", w.Seed, "workload seed")

	f.Uint64Var((*uint64)(&runOpts.maxTime), "max-time", 0,
		"simulated ns after which the run stops, 0 for no limit")
	f.BoolVarP(&runOpts.verbose, "verbose", "v", false, "log every event")
	f.StringVarP(&runOpts.reportPath, "report", "o", "-",
		"where to write the YAML report")

	f.StringVar(&runOpts.tracePath, "trace", "",
		"record request and fill tasks into this SQLite database "+
			"(without the .sqlite3 suffix)")
	f.Uint64Var((*uint64)(&runOpts.traceStart), "trace-start", 0,
		"first simulated ns to trace")
	f.Uint64Var((*uint64)(&runOpts.traceEnd), "trace-end", 0,
		"last simulated ns to trace, 0 for no limit")

	f.BoolVar(&runOpts.monitor, "monitor", false,
		"serve the monitoring page while running")
	f.IntVar(&runOpts.monitorPort, "monitor-port", 0,
		"port of the monitoring page, 0 for a random port")
	f.BoolVar(&runOpts.openMonitor, "open-monitor", false,
		"open the monitoring page in a browser")
}

func runSimulation(c trafficgen.Config, opts runOptions, out io.Writer) error {
	if opts.verbose {
		c.Verbose = true
	}

	ops, err := workload.Generate(opts.workload)
	if err != nil {
		return err
	}

	g, err := trafficgen.MakeBuilder().WithConfig(c).Build()
	if err != nil {
		return err
	}
	defer g.Close()

	runner := workload.NewRunner(g)
	runner.MaxTime = opts.maxTime

	if opts.tracePath != "" {
		finish := attachTracer(g, c, opts)
		defer finish()
	}

	if opts.monitor || opts.openMonitor {
		stop, err := attachMonitor(g, runner, len(ops), opts)
		if err != nil {
			return err
		}
		defer stop()
	}

	res, err := runner.Run(ops)
	if err != nil {
		return err
	}

	return writeReport(out, makeReport(c, opts.workload, res, g.Statistics()))
}

func attachTracer(
	g *trafficgen.TrafficGenerator,
	c trafficgen.Config,
	opts runOptions,
) func() {
	recorder := datarecording.New(opts.tracePath)

	run := datarecording.NewRunRecorder(recorder)
	run.Start()
	run.Set("Pattern", string(opts.workload.Pattern))
	run.Set("Count", strconv.Itoa(opts.workload.Count))
	run.Set("Replacement Policy", string(c.ReplacementPolicy))
	run.Set("Prefetcher", string(c.Prefetcher))

	tracer := tracing.NewDBTracer(g.Engine(), recorder)
	tracer.SetTimeRange(opts.traceStart, opts.traceEnd)
	tracing.CollectTrace(g, tracer)

	return func() {
		tracer.Terminate()
		run.End()

		if err := recorder.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to close trace: %v\n", err)
		}
	}
}

func attachMonitor(
	g *trafficgen.TrafficGenerator,
	runner *workload.Runner,
	total int,
	opts runOptions,
) (func(), error) {
	m := monitoring.NewMonitor()
	if opts.monitorPort != 0 {
		m.WithPortNumber(opts.monitorPort)
	}

	m.RegisterTimeTeller(g.Engine())
	m.RegisterComponent(g)

	bar := m.CreateProgressBar("Requests", uint64(total))
	runner.Step = m.Do
	runner.OnSubmit = func(_ workload.Op) {
		bar.IncrementInProgress(1)
	}
	runner.OnComplete = func(_ trafficgen.Completion) {
		bar.MoveInProgressToFinished(1)
	}

	url := m.StartServer()

	stop := func() {
		m.CompleteProgressBar(bar)

		if err := m.StopServer(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stop monitor: %v\n", err)
		}
	}

	if opts.openMonitor {
		if err := browser.OpenURL(url); err != nil {
			stop()
			return nil, err
		}
	}

	return stop, nil
}
