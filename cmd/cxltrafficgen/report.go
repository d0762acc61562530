package main

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/babyworm/MQSim-CXL/trafficgen"
	"github.com/babyworm/MQSim-CXL/workload"
)

type deviceReport struct {
	DRAMSize          uint64 `yaml:"dram_size"`
	CacheLineSize     int    `yaml:"cache_line_size"`
	Associativity     int    `yaml:"associativity"`
	Sets              int    `yaml:"sets"`
	ReplacementPolicy string `yaml:"replacement_policy"`
	Prefetcher        string `yaml:"prefetcher"`
	MSHR              bool   `yaml:"mshr"`
	Technology        string `yaml:"technology"`
	GCPolicy          string `yaml:"gc_policy"`
}

type workloadReport struct {
	Pattern     string `yaml:"pattern"`
	Count       int    `yaml:"count"`
	RequestSize uint32 `yaml:"request_size"`
	Seed        int64  `yaml:"seed"`
}

type runReport struct {
	Submitted int    `yaml:"submitted"`
	Completed int    `yaml:"completed"`
	Finished  bool   `yaml:"finished"`
	EndTimeNS uint64 `yaml:"end_time_ns"`
}

type metricsReport struct {
	HitRate          float64 `yaml:"hit_rate"`
	AvgLatencyNS     float64 `yaml:"avg_latency_ns"`
	PrefetchAccuracy float64 `yaml:"prefetch_accuracy"`
	PrefetchCoverage float64 `yaml:"prefetch_coverage"`
}

type report struct {
	Device     deviceReport          `yaml:"device"`
	Workload   workloadReport        `yaml:"workload"`
	Run        runReport             `yaml:"run"`
	Statistics trafficgen.Statistics `yaml:"statistics"`
	Metrics    metricsReport         `yaml:"metrics"`
}

func makeReport(
	c trafficgen.Config,
	w workload.Spec,
	res workload.Result,
	s trafficgen.Statistics,
) report {
	return report{
		Device: deviceReport{
			DRAMSize:          c.DRAMSize,
			CacheLineSize:     c.CacheLineSize,
			Associativity:     c.Associativity,
			Sets:              c.NumSets(),
			ReplacementPolicy: string(c.ReplacementPolicy),
			Prefetcher:        string(c.Prefetcher),
			MSHR:              c.EnableMSHR,
			Technology:        string(c.Technology),
			GCPolicy:          string(c.GCPolicy),
		},
		Workload: workloadReport{
			Pattern:     string(w.Pattern),
			Count:       w.Count,
			RequestSize: w.RequestSize,
			Seed:        w.Seed,
		},
		Run: runReport{
			Submitted: res.Submitted,
			Completed: res.Completed,
			Finished:  res.Finished,
			EndTimeNS: uint64(res.EndTime),
		},
		Statistics: s,
		Metrics: metricsReport{
			HitRate:          s.HitRate(),
			AvgLatencyNS:     s.AvgLatencyNS(),
			PrefetchAccuracy: s.PrefetchAccuracy(),
			PrefetchCoverage: s.PrefetchCoverage(),
		},
	}
}

func writeReport(out io.Writer, r report) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)

	if err := enc.Encode(r); err != nil {
		return err
	}

	return enc.Close()
}
