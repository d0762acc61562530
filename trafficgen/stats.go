package trafficgen

import (
	"github.com/babyworm/MQSim-CXL/sim/timing"
)

// Statistics is a snapshot of the counters of a traffic generator.
type Statistics struct {
	TotalRequests     uint64 `yaml:"total_requests"`
	ReadRequests      uint64 `yaml:"read_requests"`
	WriteRequests     uint64 `yaml:"write_requests"`
	CompletedRequests uint64 `yaml:"completed_requests"`

	CacheHits      uint64 `yaml:"cache_hits"`
	CacheMisses    uint64 `yaml:"cache_misses"`
	MSHRHits       uint64 `yaml:"mshr_hits"`
	MSHRStalls     uint64 `yaml:"mshr_stalls"`
	DemandMisses   uint64 `yaml:"demand_misses"`
	CacheEvictions uint64 `yaml:"cache_evictions"`
	DirtyEvictions uint64 `yaml:"dirty_evictions"`
	CacheBypasses  uint64 `yaml:"cache_bypasses"`

	PrefetchIssued    uint64 `yaml:"prefetch_issued"`
	PrefetchHits      uint64 `yaml:"prefetch_hits"`
	PrefetchLate      uint64 `yaml:"prefetch_late"`
	PrefetchDropped   uint64 `yaml:"prefetch_dropped"`
	PrefetchPollution uint64 `yaml:"prefetch_pollution"`

	FlashReads    uint64 `yaml:"flash_reads"`
	FlashWrites   uint64 `yaml:"flash_writes"`
	FlashErases   uint64 `yaml:"flash_erases"`
	GCExecutions  uint64 `yaml:"gc_executions"`
	GCRelocations uint64 `yaml:"gc_relocations"`
	GCTimeNS      uint64 `yaml:"gc_time_ns"`
	GCStalls      uint64 `yaml:"gc_stalls"`
	StalledWrites uint64 `yaml:"stalled_writes"`

	WriteAmplification float64 `yaml:"write_amplification"`
	EraseCountMin      int     `yaml:"erase_count_min"`
	EraseCountMax      int     `yaml:"erase_count_max"`

	MinLatencyNS   uint64 `yaml:"min_latency_ns"`
	MaxLatencyNS   uint64 `yaml:"max_latency_ns"`
	TotalLatencyNS uint64 `yaml:"total_latency_ns"`

	CurrentTimeNS timing.VTime `yaml:"current_time_ns"`
}

// HitRate returns the share of completed requests served by the cache.
func (s Statistics) HitRate() float64 {
	return ratio(s.CacheHits, s.CacheHits+s.CacheMisses)
}

// AvgLatencyNS returns the mean latency of completed requests.
func (s Statistics) AvgLatencyNS() float64 {
	return ratio(s.TotalLatencyNS, s.CompletedRequests)
}

// PrefetchAccuracy returns the share of issued prefetches used by demand.
func (s Statistics) PrefetchAccuracy() float64 {
	return ratio(s.PrefetchHits, s.PrefetchIssued)
}

// PrefetchCoverage returns the share of would-be demand misses that a
// prefetch turned into hits.
func (s Statistics) PrefetchCoverage() float64 {
	return ratio(s.PrefetchHits, s.PrefetchHits+s.DemandMisses)
}

func ratio(a, b uint64) float64 {
	if b == 0 {
		return 0
	}

	return float64(a) / float64(b)
}

// recordCompletion folds one finished request into the latency counters.
func (s *Statistics) recordCompletion(latency uint64, hit bool) {
	if s.CompletedRequests == 0 || latency < s.MinLatencyNS {
		s.MinLatencyNS = latency
	}

	if latency > s.MaxLatencyNS {
		s.MaxLatencyNS = latency
	}

	s.CompletedRequests++
	s.TotalLatencyNS += latency

	if hit {
		s.CacheHits++
	} else {
		s.CacheMisses++
	}
}
